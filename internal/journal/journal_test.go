package journal_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/vitalvoice/internal/dialogue"
	"github.com/MrWong99/vitalvoice/internal/journal"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

func TestFromResult(t *testing.T) {
	t.Parallel()

	res := dialogue.Result{
		SessionID: "s1",
		Form:      "vitals",
		Language:  types.Swahili,
		Values:    map[string]types.Value{"glucose": types.NumberValue(125)},
		Bypassed:  []string{"meal_type"},
	}

	tests := []struct {
		name        string
		err         error
		wantOutcome string
		wantField   string
	}{
		{"completed", nil, dialogue.OutcomeCompleted, ""},
		{"aborted", &dialogue.AbortError{Field: "context", Attempts: 3, Cause: dialogue.ErrParseFailed}, dialogue.OutcomeAborted, "context"},
		{"cancelled", fmt.Errorf("run: %w", dialogue.ErrCancelled), dialogue.OutcomeCancelled, ""},
		{"failed", errors.New("boom"), dialogue.OutcomeFailed, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := journal.FromResult(res, tc.err)
			if rec.Outcome != tc.wantOutcome {
				t.Errorf("Outcome = %q, want %q", rec.Outcome, tc.wantOutcome)
			}
			if rec.AbortedField != tc.wantField {
				t.Errorf("AbortedField = %q, want %q", rec.AbortedField, tc.wantField)
			}
			if (tc.err != nil) != (rec.Error != "") {
				t.Errorf("Error = %q for err %v", rec.Error, tc.err)
			}
			if rec.SessionID != "s1" || rec.Language != types.Swahili || rec.Values["glucose"].Number != 125 {
				t.Errorf("record = %+v", rec)
			}
		})
	}
}

func TestFromResult_NilValuesBecomeEmptyObject(t *testing.T) {
	t.Parallel()

	rec := journal.FromResult(dialogue.Result{}, nil)
	if rec.Values == nil {
		t.Fatal("Values is nil")
	}
}

func TestFileStore_AppendAndRecent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	fs, err := journal.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	recs, err := fs.Recent(10)
	if err != nil || len(recs) != 0 {
		t.Fatalf("Recent on missing file = %v, %v", recs, err)
	}

	for i := range 3 {
		rec := journal.FromResult(dialogue.Result{
			SessionID: fmt.Sprintf("s%d", i),
			Values:    map[string]types.Value{"arm": types.OptionValue("Left")},
		}, nil)
		if err := fs.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Errorf("file has %d lines, want 3", lines)
	}

	recs, err = fs.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 || recs[0].SessionID != "s1" || recs[1].SessionID != "s2" {
		t.Fatalf("Recent(2) = %+v", recs)
	}
	if recs[1].Values["arm"] != types.OptionValue("Left") {
		t.Errorf("values = %+v", recs[1].Values)
	}
}

func TestFileStore_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	fs, err := journal.NewFileStore(filepath.Join(t.TempDir(), "journal.jsonl"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fs.Append(journal.Record{SessionID: fmt.Sprint(i)}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	recs, err := fs.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 20 {
		t.Errorf("got %d records, want 20", len(recs))
	}
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := journal.NewFileStore(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDecode_BadLine(t *testing.T) {
	t.Parallel()

	_, err := journal.Decode(strings.NewReader("{\"session_id\":\"a\"}\n\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("err = %v, want line 3 error", err)
	}
}
