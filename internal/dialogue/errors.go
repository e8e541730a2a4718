package dialogue

import (
	"errors"
	"fmt"
)

// Retry reasons. Each is recovered locally by re-prompting, at the cost of
// one attempt from the field's budget.
var (
	ErrNoAudio             = errors.New("dialogue: no audio captured")
	ErrTranscriptionFailed = errors.New("dialogue: transcription failed")
	ErrParseFailed         = errors.New("dialogue: answer not recognised")
	ErrOutOfRange          = errors.New("dialogue: value out of range")
	ErrRequiredSkip        = errors.New("dialogue: required field cannot be skipped")
)

var (
	// ErrBudgetExhausted is the cause of an [AbortError].
	ErrBudgetExhausted = errors.New("dialogue: retry budget exhausted")

	// ErrCancelled is wrapped by the error Run returns when the session was
	// cancelled by its caller.
	ErrCancelled = errors.New("dialogue: session cancelled")

	// ErrSessionActive is returned by Run while another session is running
	// on the same Machine.
	ErrSessionActive = errors.New("dialogue: a session is already active")
)

// AbortError ends a session whose required field ran out of attempts. The
// field has to be filled in manually.
type AbortError struct {
	Field    string
	Attempts int
	Cause    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("dialogue: field %q aborted after %d attempts: %v", e.Field, e.Attempts, e.Cause)
}

func (e *AbortError) Unwrap() error { return e.Cause }

// reasonLabel names a retry cause for metrics and logs.
func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoAudio):
		return "no_audio"
	case errors.Is(err, ErrTranscriptionFailed):
		return "transcription_failed"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrRequiredSkip):
		return "required_skip"
	case errors.Is(err, ErrParseFailed):
		return "parse_failed"
	default:
		return "other"
	}
}
