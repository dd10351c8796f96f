package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/vsariola/drawbar/core"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
)

// PrintAlert prints an alert on one line, colored by its priority.
func PrintAlert(w io.Writer, a core.Alert) {
	switch a.Priority {
	case core.Error:
		red.Fprintf(w, "✗ %s\n", a.Message)
	case core.Warning:
		yellow.Fprintf(w, "⚠ %s\n", a.Message)
	default:
		if a.Name == core.AlertRequestDone {
			green.Fprintf(w, "✓ %s\n", a.Message)
		} else {
			fmt.Fprintln(w, a.Message)
		}
	}
}

// PrintError prints a fatal error and returns it, for returning from cobra
// commands that silence their own error printing.
func PrintError(w io.Writer, err error) error {
	red.Fprintf(w, "%v\n", err)
	return err
}
