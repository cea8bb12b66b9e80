package fluxkit

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
)

//***************************************************************************
// Level
//***************************************************************************

// Level defines different level warnings for giving
// log events.
type Level uint8

// constants of log levels this package respect.
// They are capitalize to ensure no naming conflict.
const (
	INFO Level = 1 << iota
	DEBUG
	WARN
	ERROR
	PANIC
)

// String implements the Stringer interface.
func (l Level) String() string {
	switch l {
	case INFO:
		return "INFO"
	case ERROR:
		return "ERROR"
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case PANIC:
		return "PANIC"
	}
	return "UNKNOWN"
}

// LogMessage defines an interface which exposes a method for retrieving
// log details for giving log item.
type LogMessage interface {
	Message() string
}

// Message implements the LogMessage interface for a string.
type Message string

// Message returns the string value of giving Message.
func (m Message) Message() string {
	return string(m)
}

// Logs defines a acceptable logging interface which all elements and sub packages
// will respect and use to deliver logs for different parts and ops, this frees
// this package from specifying or locking a giving implementation and contaminating
// import paths. Implement this and pass in to elements that provide for it.
type Logs interface {
	Emit(Level, LogMessage)
}

//*****************************************************************
// DrainLog
//*****************************************************************

// DrainLog implements the Logs interface.
type DrainLog struct{}

// Emit does nothing with provided arguments, it implements
// Logs Emit method.
func (DrainLog) Emit(_ Level, _ LogMessage) {}

//*****************************************************************
// LogrusLogs
//*****************************************************************

// LogrusLogs implements the Logs interface on top of a logrus logger.
// Messages JSON encoded by LogEvent are decoded back into logrus fields,
// the "message" field becoming the entry message. Any other message is
// written as is.
type LogrusLogs struct {
	Logger *logrus.Logger
}

// NewLogrusLogs returns a LogrusLogs using the logrus standard logger.
func NewLogrusLogs() *LogrusLogs {
	return &LogrusLogs{Logger: logrus.StandardLogger()}
}

// Emit implements the Logs interface.
func (l *LogrusLogs) Emit(level Level, msg LogMessage) {
	logger := l.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	entry, text := logrusEntry(logger, msg.Message())

	switch level {
	case DEBUG:
		entry.Debug(text)
	case WARN:
		entry.Warn(text)
	case ERROR, PANIC:
		entry.Error(text)
	default:
		entry.Info(text)
	}
}

func logrusEntry(logger *logrus.Logger, message string) (*logrus.Entry, string) {
	if !strings.HasPrefix(message, "{") {
		return logrus.NewEntry(logger), message
	}

	var fields logrus.Fields
	if err := json.Unmarshal([]byte(message), &fields); err != nil {
		return logrus.NewEntry(logger), message
	}

	text, _ := fields["message"].(string)
	delete(fields, "message")
	return logger.WithFields(fields), text
}
