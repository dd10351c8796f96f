package core

import (
	"encoding/binary"
	"fmt"
)

type (
	// WorkItem is a request for the worker and, once completed, its result.
	// It is a plain value with the message stored inline, so it can be copied
	// through the rings without allocating.
	WorkItem struct {
		Command Command
		Status  Status
		Seq     uint32 // request the item belongs to
		msgLen  uint16
		msg     [MaxMessage]byte
	}

	Command uint8
	Status  uint8
)

const (
	CommandPurge Command = iota
	CommandReset
	CommandLoadProgram
	CommandLoadConfig
	CommandSaveProgram
	CommandSaveConfig
	CommandSetConfigLine
	CommandFree
	numCommands
)

const (
	StatusPending Status = iota
	StatusOK
	StatusFailed
	StatusBusy
)

// MaxMessage is the capacity of the inline message of a WorkItem. Longer
// messages are truncated.
const MaxMessage = 256

const (
	workItemHeader = 8
	workItemSize   = workItemHeader + MaxMessage
)

var commandNames = [numCommands]string{"purge", "reset", "load program", "load config", "save program", "save config", "set config line", "free"}

var statusNames = [...]string{"pending", "ok", "failed", "busy"}

func (c Command) String() string {
	if c >= numCommands {
		return fmt.Sprintf("command(%d)", int(c))
	}
	return commandNames[c]
}

// Swaps reports whether a successful command replaces the live instance.
func (c Command) Swaps() bool {
	switch c {
	case CommandReset, CommandLoadProgram, CommandLoadConfig, CommandSetConfigLine:
		return true
	}
	return false
}

func (s Status) String() string {
	if int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// NewWorkItem returns a pending work item. msg is the argument of the
// command, e.g. a path or a configuration line.
func NewWorkItem(c Command, msg string) WorkItem {
	w := WorkItem{Command: c}
	w.SetMessage(msg)
	return w
}

// Message returns the inline message.
func (w *WorkItem) Message() string { return string(w.msg[:w.msgLen]) }

// SetMessage replaces the message, truncating it to MaxMessage bytes.
func (w *WorkItem) SetMessage(s string) {
	w.msgLen = uint16(copy(w.msg[:], s))
}

// Complete sets the status and the message of the item.
func (w *WorkItem) Complete(s Status, format string, args ...any) {
	w.Status = s
	w.SetMessage(fmt.Sprintf(format, args...))
}

func (w *WorkItem) encode(b *[workItemSize]byte) []byte {
	b[0] = byte(w.Command)
	b[1] = byte(w.Status)
	binary.LittleEndian.PutUint16(b[2:], w.msgLen)
	binary.LittleEndian.PutUint32(b[4:], w.Seq)
	copy(b[workItemHeader:], w.msg[:w.msgLen])
	return b[:workItemHeader+int(w.msgLen)]
}

func (w *WorkItem) decode(p []byte) bool {
	if len(p) < workItemHeader {
		return false
	}
	w.Command = Command(p[0])
	w.Status = Status(p[1])
	w.Seq = binary.LittleEndian.Uint32(p[4:])
	w.msgLen = uint16(copy(w.msg[:], p[workItemHeader:]))
	return w.Command < numCommands
}
