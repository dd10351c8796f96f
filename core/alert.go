package core

import (
	"fmt"
	"log/slog"
)

type (
	// Alert is a short, one line message for the user.
	Alert struct {
		Name     string
		Message  string
		Priority AlertPriority
	}

	AlertPriority int
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

// Alert names, for recognizing alerts without parsing the message.
const (
	AlertBusy         = "Busy"
	AlertLoadFailed   = "LoadFailed"
	AlertSaveFailed   = "SaveFailed"
	AlertRequestDone  = "RequestDone"
	AlertConfig       = "ConfigError"
	AlertDropped      = "MessagesDropped"
	AlertLatency      = "LatencyRejected"
	AlertRequestError = "RequestFailed"
)

func (p AlertPriority) String() string {
	switch p {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

func (p AlertPriority) level() slog.Level {
	switch p {
	case Warning:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (a Alert) String() string { return a.Priority.String() + ": " + a.Message }
