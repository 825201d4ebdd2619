package room

import (
	"fmt"
	"sync/atomic"
	"time"
)

// LogType classifies a log line for client-side styling only.
type LogType string

const (
	LogNeutral LogType = "neutral"
	LogWarning LogType = "warning"
	LogDanger  LogType = "danger"
	LogSuccess LogType = "success"
)

// LogEntry is one line of the room's append-only action log.
type LogEntry struct {
	ID   string  `json:"id"`
	Text string  `json:"text"`
	Type LogType `json:"type"`
}

var logSeq uint64

// newLogID derives a unique, roughly time-ordered log entry ID. The
// counter suffix keeps IDs unique when two entries land in the same
// nanosecond tick.
func newLogID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), atomic.AddUint64(&logSeq, 1))
}

// Log appends a line to the room's action log.
func (s *State) Log(logType LogType, text string) {
	s.Logs = append(s.Logs, LogEntry{ID: newLogID(), Text: text, Type: logType})
}

// Logf appends a formatted line to the room's action log.
func (s *State) Logf(logType LogType, format string, args ...any) {
	s.Log(logType, fmt.Sprintf(format, args...))
}
