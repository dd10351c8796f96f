package cmd_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/vsariola/drawbar/cmd"
	"github.com/vsariola/drawbar/core"
)

func TestPrintAlert(t *testing.T) {
	color.NoColor = true
	var b bytes.Buffer
	cmd.PrintAlert(&b, core.Alert{Name: core.AlertRequestDone, Message: "saved"})
	cmd.PrintAlert(&b, core.Alert{Name: core.AlertConfig, Message: "bad line", Priority: core.Warning})
	cmd.PrintAlert(&b, core.Alert{Name: core.AlertLoadFailed, Message: "load failed", Priority: core.Error})
	cmd.PrintAlert(&b, core.Alert{Name: "Other", Message: "hello"})
	assert.Equal(t, "✓ saved\n⚠ bad line\n✗ load failed\nhello\n", b.String())
}
