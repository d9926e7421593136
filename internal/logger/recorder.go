package logger

import (
	"fmt"
	"sync"
)

// Entry is one formatted log line captured by a Recorder.
type Entry struct {
	Level   LogLevel
	Message string
}

// Recorder is a Logger that keeps every entry in memory. Handlers under
// test log into it so assertions can count failures.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) add(lvl LogLevel, msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: lvl, Message: fmt.Sprintf(msg, args...)})
}

func (r *Recorder) Debug(msg string, args ...any) { r.add(DEBUG, msg, args...) }
func (r *Recorder) Info(msg string, args ...any)  { r.add(INFO, msg, args...) }
func (r *Recorder) Warn(msg string, args ...any)  { r.add(WARN, msg, args...) }
func (r *Recorder) Error(msg string, args ...any) { r.add(ERROR, msg, args...) }

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many entries were recorded at lvl.
func (r *Recorder) Count(lvl LogLevel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == lvl {
			n++
		}
	}
	return n
}

// Messages returns the formatted messages recorded at lvl.
func (r *Recorder) Messages(lvl LogLevel) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.Level == lvl {
			out = append(out, e.Message)
		}
	}
	return out
}
