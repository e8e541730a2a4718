// Package journal keeps an append-only record of capture sessions.
//
// Each finished session becomes one JSON line holding what was collected,
// what was skipped or left unset, and how the session ended. The file is the
// hand-off to whatever charts or stores the readings downstream.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/vitalvoice/internal/dialogue"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Record is a single journal line.
type Record struct {
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	Form      string                 `json:"form"`
	Language  types.Language         `json:"language"`
	Outcome   string                 `json:"outcome"`
	Values    map[string]types.Value `json:"values"`
	Skipped   []string               `json:"skipped,omitempty"`
	Bypassed  []string               `json:"bypassed,omitempty"`
	Unset     []string               `json:"unset,omitempty"`

	// AbortedField names the required field that ran out of attempts.
	AbortedField string `json:"aborted_field,omitempty"`
	Error        string `json:"error,omitempty"`
}

// FromResult builds the record for a session that ended with res and err.
func FromResult(res dialogue.Result, err error) Record {
	rec := Record{
		Timestamp: time.Now().UTC(),
		SessionID: res.SessionID,
		Form:      res.Form,
		Language:  res.Language,
		Outcome:   dialogue.Outcome(err),
		Values:    res.Values,
		Skipped:   res.Skipped,
		Bypassed:  res.Bypassed,
		Unset:     res.Unset,
	}
	if rec.Values == nil {
		rec.Values = map[string]types.Value{}
	}
	if err != nil {
		rec.Error = err.Error()
	}
	var abort *dialogue.AbortError
	if errors.As(err, &abort) {
		rec.AbortedField = abort.Field
	}
	return rec
}

// Journal persists session records.
type Journal interface {
	Append(rec Record) error
}

// FileStore appends records as JSON lines to a local file.
// Safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Journal = (*FileStore)(nil)

// NewFileStore returns a FileStore writing to path. The file and its parent
// directory are created on the first append.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("journal: path must not be empty")
	}
	return &FileStore{path: path}, nil
}

// Path returns the journal file path.
func (fs *FileStore) Path() string { return fs.path }

// Append writes rec as one line.
func (fs *FileStore) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("journal: create directory: %w", err)
	}
	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("journal: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest records, oldest first. A missing
// file yields no records.
func (fs *FileStore) Recent(n int) ([]Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	defer f.Close()

	recs, err := Decode(f)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	return recs, nil
}

// Decode reads JSON-lines records from r. Blank lines are ignored.
func Decode(r io.Reader) ([]Record, error) {
	var recs []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("journal: line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: read: %w", err)
	}
	return recs, nil
}

// Discard drops every record.
type Discard struct{}

// Append implements [Journal].
func (Discard) Append(Record) error { return nil }
