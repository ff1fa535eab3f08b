package domain

import "time"

type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarn    LogLevel = "warn"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// LogLine is one line of the operator console.
type LogLine struct {
	Time  time.Time `json:"time"`
	Level LogLevel  `json:"level"`
	Text  string    `json:"text"`
}

// LogSink receives console lines as a pipeline progresses.
type LogSink func(line string)

// NopSink discards every line.
func NopSink(string) {}
