package dialogue

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/MrWong99/vitalvoice/pkg/form"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Result is what a finished session hands back to its caller.
type Result struct {
	SessionID string                 `json:"session_id"`
	Form      string                 `json:"form"`
	Language  types.Language         `json:"language"`
	Values    map[string]types.Value `json:"values"`

	// Skipped lists optional fields the user asked to skip.
	Skipped []string `json:"skipped,omitempty"`

	// Bypassed lists fields whose dependency was not met.
	Bypassed []string `json:"bypassed,omitempty"`

	// Unset lists optional fields that ran out of attempts.
	Unset []string `json:"unset,omitempty"`
}

// Snapshot is a copy of a session's progress.
type Snapshot struct {
	ID        string                 `json:"id"`
	Form      string                 `json:"form"`
	Language  types.Language         `json:"language"`
	State     State                  `json:"state"`
	Field     string                 `json:"field,omitempty"`
	Index     int                    `json:"index"`
	Total     int                    `json:"total"`
	Attempt   int                    `json:"attempt"`
	Pending   *types.Value           `json:"pending,omitempty"`
	Collected map[string]types.Value `json:"collected"`
	StartedAt time.Time              `json:"started_at"`
}

// SessionState is the mutable state of one capture session. Only the
// [Machine] running the session mutates it.
type SessionState struct {
	ID        string
	Form      form.Form
	Language  types.Language
	StartedAt time.Time

	mu        sync.Mutex
	state     State
	index     int
	attempt   int
	pending   *types.Value
	collected map[string]types.Value
	skipped   []string
	bypassed  []string
	unset     []string
	active    bool
	cancel    context.CancelFunc
}

func newSession(id string, f form.Form, lang types.Language, cancel context.CancelFunc) *SessionState {
	return &SessionState{
		ID:        id,
		Form:      f,
		Language:  lang,
		StartedAt: time.Now(),
		state:     StateIdle,
		collected: make(map[string]types.Value, len(f.Fields)),
		active:    true,
		cancel:    cancel,
	}
}

// fire applies event to the current state.
func (s *SessionState) fire(event Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Transition(s.state, event)
	if err != nil {
		return s.state, err
	}
	s.state = next
	return next, nil
}

// State returns the current state.
func (s *SessionState) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether the session is still allowed to speak and listen.
func (s *SessionState) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Cancel clears the active flag and cancels the session context. Any
// in-flight recording stops and nothing more is spoken.
func (s *SessionState) Cancel() {
	s.mu.Lock()
	s.active = false
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *SessionState) begin(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = index
	s.attempt = 0
	s.pending = nil
}

func (s *SessionState) setAttempt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = n
}

func (s *SessionState) setPending(v *types.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = v
}

func (s *SessionState) store(field string, v types.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collected[field] = v
	s.pending = nil
}

func (s *SessionState) markSkipped(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped = append(s.skipped, field)
}

func (s *SessionState) markBypassed(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bypassed = append(s.bypassed, field)
}

func (s *SessionState) markUnset(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unset = append(s.unset, field)
}

// collectedCopy returns a copy of the values accepted so far.
func (s *SessionState) collectedCopy() map[string]types.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.collected)
}

// end deactivates the session and drops its transient state.
func (s *SessionState) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.pending = nil
	s.attempt = 0
	s.cancel = nil
}

// Snapshot copies the session's progress.
func (s *SessionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.ID,
		Form:      s.Form.Name,
		Language:  s.Language,
		State:     s.state,
		Index:     s.index,
		Total:     len(s.Form.Fields),
		Attempt:   s.attempt,
		Collected: maps.Clone(s.collected),
		StartedAt: s.StartedAt,
	}
	if s.index < len(s.Form.Fields) {
		snap.Field = s.Form.Fields[s.index].Name
	}
	if s.pending != nil {
		v := *s.pending
		snap.Pending = &v
	}
	return snap
}

func (s *SessionState) result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{
		SessionID: s.ID,
		Form:      s.Form.Name,
		Language:  s.Language,
		Values:    maps.Clone(s.collected),
		Skipped:   append([]string(nil), s.skipped...),
		Bypassed:  append([]string(nil), s.bypassed...),
		Unset:     append([]string(nil), s.unset...),
	}
}
