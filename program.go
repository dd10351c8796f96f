package drawbar

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

type (
	// Program is a stored registration, recalled with a MIDI program change.
	// Settings are parameter assignments; the special key "name" gives the
	// display name of the program.
	Program struct {
		Index    int
		Name     string
		Settings []ConfigLine
	}

	// ProgramTable is a list of programs, sorted by Index, each index
	// appearing at most once.
	ProgramTable struct {
		Programs []Program
	}
)

// ProgramKey is the configuration directive loading a program table file.
const ProgramKey = "program.read"

// MaxProgram is the largest program index: 128 banks of 128 programs.
const MaxProgram = 128*128 - 1

// ReadPrograms parses a program table. The format is a sequence of blocks
//
//	<index> { key=value, key=value, ... }
//
// where a block may span several lines and '#' starts a comment running to
// the end of the line. Malformed blocks and settings are reported and
// skipped.
func ReadPrograms(r io.Reader, name string) (ProgramTable, ConfigErrors) {
	var text strings.Builder
	var lineStarts []int
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s := scanner.Text()
		if i := strings.IndexByte(s, '#'); i >= 0 {
			s = s[:i]
		}
		lineStarts = append(lineStarts, text.Len())
		text.WriteString(s)
		text.WriteByte('\n')
	}
	var errs ConfigErrors
	if err := scanner.Err(); err != nil {
		errs = append(errs, ConfigError{File: name, Err: err})
	}
	lineOf := func(pos int) int {
		i, found := slices.BinarySearch(lineStarts, pos)
		if !found {
			i--
		}
		return i + 1
	}
	p := programParser{s: text.String()}
	var table ProgramTable
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		start := p.pos
		prog, err := p.block()
		if err != nil {
			errs = append(errs, ConfigError{File: name, Line: lineOf(start), Err: err})
			p.skipBlock()
			continue
		}
		for _, s := range prog.settings {
			line := ConfigLine{Key: s.key, Value: s.value, File: name, Line: lineOf(s.pos)}
			if s.err != nil {
				errs = append(errs, ConfigError{File: name, Line: line.Line, Err: s.err})
				continue
			}
			if line.Key == "name" {
				prog.Name = line.Value
				continue
			}
			prog.Settings = append(prog.Settings, line)
		}
		table.Set(prog.Program)
	}
	return table, errs
}

// LoadProgramFile reads a program table file. err is non-nil only if the file
// cannot be read.
func LoadProgramFile(path string) (ProgramTable, ConfigErrors, error) {
	f, err := os.Open(path)
	if err != nil {
		return ProgramTable{}, nil, fmt.Errorf("cannot read program table: %w", err)
	}
	defer f.Close()
	t, errs := ReadPrograms(f, path)
	return t, errs, nil
}

// Set adds the program to the table, replacing a program with the same index.
func (t *ProgramTable) Set(p Program) {
	i, found := slices.BinarySearchFunc(t.Programs, p.Index, func(a Program, b int) int { return a.Index - b })
	if found {
		t.Programs[i] = p
		return
	}
	t.Programs = slices.Insert(t.Programs, i, p)
}

// Get returns the program with the given index.
func (t ProgramTable) Get(index int) (Program, bool) {
	i, found := slices.BinarySearchFunc(t.Programs, index, func(a Program, b int) int { return a.Index - b })
	if !found {
		return Program{}, false
	}
	return t.Programs[i], true
}

// Merge adds all the programs of o to the table, o taking precedence.
func (t *ProgramTable) Merge(o ProgramTable) {
	for _, p := range o.Programs {
		t.Set(p)
	}
}

// Format writes the table in the format read by ReadPrograms.
func (t ProgramTable) Format(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, p := range t.Programs {
		fmt.Fprintf(bw, "%d {", p.Index)
		sep := " "
		if p.Name != "" {
			fmt.Fprintf(bw, "%sname=%s", sep, p.Name)
			sep = ", "
		}
		for _, s := range p.Settings {
			fmt.Fprintf(bw, "%s%s=%s", sep, s.Key, s.Value)
			sep = ", "
		}
		bw.WriteString(" }\n")
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("cannot write program table: %w", err)
	}
	return nil
}

type (
	programParser struct {
		s   string
		pos int
	}

	parsedProgram struct {
		Program
		settings []parsedSetting
	}

	parsedSetting struct {
		key, value string
		pos        int
		err        error
	}
)

func (p *programParser) eof() bool { return p.pos >= len(p.s) }

func (p *programParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.s[p.pos])) {
		p.pos++
	}
}

func (p *programParser) skipBlock() {
	if i := strings.IndexByte(p.s[p.pos:], '}'); i >= 0 {
		p.pos += i + 1
		return
	}
	p.pos = len(p.s)
}

func (p *programParser) block() (ret parsedProgram, err error) {
	start := p.pos
	for !p.eof() && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return ret, fmt.Errorf("expected program number, got %q", p.s[p.pos:min(p.pos+10, len(p.s))])
	}
	ret.Index, err = strconv.Atoi(p.s[start:p.pos])
	if err != nil || ret.Index > MaxProgram {
		return ret, fmt.Errorf("program number %s out of range [0, %d]", p.s[start:p.pos], MaxProgram)
	}
	p.skipSpace()
	if p.eof() || p.s[p.pos] != '{' {
		return ret, fmt.Errorf("program %d: expected '{'", ret.Index)
	}
	p.pos++
	end := strings.IndexByte(p.s[p.pos:], '}')
	if end < 0 {
		return ret, fmt.Errorf("program %d: missing '}'", ret.Index)
	}
	body := p.s[p.pos : p.pos+end]
	bodyStart := p.pos
	p.pos += end + 1
	offset := 0
	for _, item := range strings.FieldsFunc(body, func(r rune) bool { return r == ',' || r == '\n' }) {
		offset = strings.Index(body[offset:], item) + offset
		s := parsedSetting{pos: bodyStart + offset}
		offset += len(item)
		var line ConfigLine
		var ok bool
		line, ok, s.err = ParseConfigLine(item)
		if !ok && s.err == nil {
			continue
		}
		s.key, s.value = line.Key, line.Value
		ret.settings = append(ret.settings, s)
	}
	return ret, nil
}
