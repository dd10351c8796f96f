package drawbar

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type (
	// ConfigLine is one key=value assignment. File and Line tell where the
	// assignment came from, for diagnostics; they are empty for assignments
	// that did not come from a file.
	ConfigLine struct {
		Key   string
		Value string
		File  string
		Line  int
	}

	// ConfigError is a diagnostic about a single assignment. Configuration is
	// applied best effort: an erroneous assignment is skipped, and processing
	// continues with the next one.
	ConfigError struct {
		File string
		Line int
		Err  error
	}

	// ConfigErrors collects the diagnostics of reading or applying a
	// configuration.
	ConfigErrors []ConfigError
)

// IncludeKey is the configuration directive including another file. Relative
// paths are resolved against the directory of the including file.
const IncludeKey = "config.read"

// MaxIncludeDepth limits the nesting of included files.
const MaxIncludeDepth = 8

// ErrIncludeDepth is reported when includes nest deeper than MaxIncludeDepth.
var ErrIncludeDepth = errors.New("configuration includes nested too deep")

func (l ConfigLine) String() string { return l.Key + "=" + l.Value }

// Where returns the file:line position of the line, or "" if unknown.
func (l ConfigLine) Where() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Errorf returns a diagnostic about the line.
func (l ConfigLine) Errorf(err error) ConfigError {
	return ConfigError{File: l.File, Line: l.Line, Err: fmt.Errorf("%s: %w", l.Key, err)}
}

func (e ConfigError) Error() string {
	if e.File == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e ConfigError) Unwrap() error { return e.Err }

func (e ConfigErrors) Error() string {
	switch len(e) {
	case 0:
		return "no errors"
	case 1:
		return e[0].Error()
	}
	return fmt.Sprintf("%v (and %d more errors)", e[0], len(e)-1)
}

// Err returns nil if there are no diagnostics, otherwise e itself.
func (e ConfigErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ParseConfigLine parses a single line of a configuration file. ok is false
// for blank lines and comments.
func ParseConfigLine(s string) (line ConfigLine, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#") {
		return ConfigLine{}, false, nil
	}
	key, value, found := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return ConfigLine{}, false, fmt.Errorf("malformed assignment %q, expected key=value", s)
	}
	return ConfigLine{Key: key, Value: strings.TrimSpace(value)}, true, nil
}

// ReadConfig reads assignments from r. Malformed lines are reported and
// skipped. Include directives are returned as they are; see LoadConfigFile.
func ReadConfig(r io.Reader, name string) ([]ConfigLine, ConfigErrors) {
	var lines []ConfigLine
	var errs ConfigErrors
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line, ok, err := ParseConfigLine(scanner.Text())
		if err != nil {
			errs = append(errs, ConfigError{File: name, Line: n, Err: err})
			continue
		}
		if !ok {
			continue
		}
		line.File, line.Line = name, n
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, ConfigError{File: name, Err: err})
	}
	return lines, errs
}

// LoadConfigFile reads a configuration file, replacing include directives with
// the contents of the included files. err is non-nil only if the file itself
// cannot be read; problems within the file and its includes are returned as
// diagnostics.
func LoadConfigFile(path string) ([]ConfigLine, ConfigErrors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read configuration: %w", err)
	}
	defer f.Close()
	lines, errs := ReadConfig(f, path)
	lines, errs = ExpandIncludes(lines, filepath.Dir(path), 1, errs)
	return lines, errs, nil
}

// ExpandIncludes replaces the include directives in lines with the contents of
// the included files, resolving relative paths against dir. depth is the
// nesting level of lines.
func ExpandIncludes(lines []ConfigLine, dir string, depth int, errs ConfigErrors) ([]ConfigLine, ConfigErrors) {
	var ret []ConfigLine
	for _, l := range lines {
		if l.Key != IncludeKey {
			ret = append(ret, l)
			continue
		}
		if depth >= MaxIncludeDepth {
			errs = append(errs, l.Errorf(ErrIncludeDepth))
			continue
		}
		path := l.Value
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			errs = append(errs, l.Errorf(err))
			continue
		}
		included, inclErrs := ReadConfig(f, path)
		f.Close()
		errs = append(errs, inclErrs...)
		included, errs = ExpandIncludes(included, filepath.Dir(path), depth+1, errs)
		ret = append(ret, included...)
	}
	return ret, errs
}

// WriteConfig writes the assignments in the line oriented format, one per
// line, preceded by the given comment lines.
func WriteConfig(w io.Writer, lines []ConfigLine, comments ...string) error {
	bw := bufio.NewWriter(w)
	for _, c := range comments {
		fmt.Fprintf(bw, "# %s\n", c)
	}
	for _, l := range lines {
		fmt.Fprintf(bw, "%s=%s\n", l.Key, l.Value)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("cannot write configuration: %w", err)
	}
	return nil
}
