// Package journal keeps an append-only JSONL trail of every result event
// the engines process. It is an audit surface, not a recovery log: mission
// state is durable in the store, so the journal is never replayed to
// rebuild state, only read back for inspection.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rangeops/missiond/pkg/types"
)

var (
	// ErrJournalClosed is returned after Close.
	ErrJournalClosed = errors.New("journal is closed")
)

// Entry is one journalled result with its processing timestamp.
type Entry struct {
	RecordedAt time.Time         `json:"recorded_at"`
	Event      types.ResultEvent `json:"event"`
}

// Journal appends result events to a single JSONL file. Safe for
// concurrent appenders; each entry is one line, written whole.
type Journal struct {
	mu     sync.Mutex
	f      *os.File
	closed bool
}

// Open opens (creating if needed) the journal file for appending.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{f: f}, nil
}

// Append writes one entry. A failed append is an infrastructure fault for
// the calling engine.
func (j *Journal) Append(event types.ResultEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	line, err := json.Marshal(Entry{RecordedAt: time.Now(), Event: event})
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := j.f.Write(line); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.f.Close()
}

// Read loads every entry from a journal file, oldest first.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("parse journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}
