package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/midicc"
)

const consoleHelp = `key=value             apply an assignment, e.g. reverb.mix=0.2
load <file>           load a configuration file
program <file>        load a program table
save <file>           save the running state
save-programs <file>  save the program table
reset                 go back to the startup configuration
purge                 drop assignments that restate the defaults
learn <function> [invert]
                      bind the next controller moved to a function
cancel                stop learning
unbind <manual> <cc>  remove a controller binding
panic                 release every note
state                 print the running state
bindings              print the controller bindings
`

// readConsole sends the lines read from r until r ends or ctx is done.
func readConsole(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// console runs one command line. Requests to the worker are not waited for;
// their outcome arrives as an alert.
func console(s *core.Session, line string, w io.Writer) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if strings.Contains(line, "=") {
		return s.Request(core.CommandSetConfigLine, line)
	}
	fields := strings.Fields(line)
	arg := func(i int) (string, error) {
		if len(fields) <= i {
			return "", fmt.Errorf("%s: missing argument", fields[0])
		}
		return fields[i], nil
	}
	file := func(c core.Command) error {
		f, err := arg(1)
		if err != nil {
			return err
		}
		return s.Request(c, f)
	}
	switch fields[0] {
	case "help", "?":
		_, err := io.WriteString(w, consoleHelp)
		return err
	case "load":
		return file(core.CommandLoadConfig)
	case "program":
		return file(core.CommandLoadProgram)
	case "save":
		return file(core.CommandSaveConfig)
	case "save-programs":
		return file(core.CommandSaveProgram)
	case "reset":
		return s.Request(core.CommandReset, "")
	case "purge":
		return s.Request(core.CommandPurge, "")
	case "panic":
		return s.Panic()
	case "learn":
		name, err := arg(1)
		if err != nil {
			return err
		}
		fn, ok := midicc.FunctionByName(name)
		if !ok {
			return fmt.Errorf("%s: %w", name, midicc.ErrUnknownFunction)
		}
		if err := s.ArmLearn(fn, len(fields) > 2 && fields[2] == "invert"); err != nil {
			return err
		}
		fmt.Fprintf(w, "move a controller to bind it to %s\n", fn)
		return nil
	case "cancel":
		return s.CancelLearn()
	case "unbind":
		m, cc, err := parseController(fields)
		if err != nil {
			return err
		}
		return s.Unbind(m, cc)
	case "state":
		return drawbar.WriteConfig(w, s.State())
	case "bindings":
		for _, b := range s.Bindings() {
			fmt.Fprintln(w, b)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q, type help for the commands", fields[0])
}

func parseController(fields []string) (midicc.Manual, uint8, error) {
	if len(fields) != 3 {
		return 0, 0, errors.New("usage: unbind <manual> <cc>")
	}
	m, ok := midicc.ParseManual(fields[1])
	if !ok {
		return 0, 0, fmt.Errorf("unknown manual %q", fields[1])
	}
	cc, err := strconv.ParseUint(fields[2], 10, 7)
	if err != nil {
		return 0, 0, fmt.Errorf("bad controller number %q", fields[2])
	}
	return m, uint8(cc), nil
}
