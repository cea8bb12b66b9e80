package internal

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gokit/fluxkit"
)

// TEntry is a log line captured by TLog.
type TEntry struct {
	Level   fluxkit.Level
	Message string
}

// TLog implements the fluxkit.Logs interface, capturing every emitted
// line for later assertions. With Print set lines are also printed.
type TLog struct {
	Print bool

	ml      sync.Mutex
	entries []TEntry
}

// Emit captures giving log message, it implements fluxkit.Logs Emit method.
func (t *TLog) Emit(l fluxkit.Level, e fluxkit.LogMessage) {
	msg := e.Message()

	t.ml.Lock()
	t.entries = append(t.entries, TEntry{Level: l, Message: msg})
	t.ml.Unlock()

	if t.Print {
		fmt.Printf("[%s : %s] %s\n", time.Now().Format(time.RFC3339), l, msg)
	}
}

// Entries returns a copy of the captured lines.
func (t *TLog) Entries() []TEntry {
	t.ml.Lock()
	defer t.ml.Unlock()
	return append([]TEntry(nil), t.entries...)
}

// Contains returns true/false if a line at level contains fragment.
func (t *TLog) Contains(level fluxkit.Level, fragment string) bool {
	for _, entry := range t.Entries() {
		if entry.Level == level && strings.Contains(entry.Message, fragment) {
			return true
		}
	}
	return false
}
