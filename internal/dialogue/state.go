package dialogue

import "fmt"

// State is a step of the per-field turn or a terminal session state.
type State string

const (
	StateIdle       State = "idle"
	StateAnnounce   State = "announce"
	StateListening  State = "listening"
	StateParsing    State = "parsing"
	StateValidating State = "validating"
	StateConfirming State = "confirming"

	// Resolved states: the turn for the current field has been decided.
	StateAccept State = "accept"
	StateRetry  State = "retry"
	StateSkip   State = "skip"
	StateUnset  State = "unset"

	StateComplete  State = "complete"
	StateAborted   State = "aborted"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateAborted || s == StateCancelled
}

// Event drives a [Transition].
type Event string

const (
	EventStart               Event = "start"
	EventPrompted            Event = "prompted"
	EventBypass              Event = "bypass"
	EventCaptured            Event = "captured"
	EventNoAudio             Event = "no_audio"
	EventTranscribed         Event = "transcribed"
	EventTranscriptionFailed Event = "transcription_failed"
	EventSkipRequested       Event = "skip_requested"
	EventSkipRefused         Event = "skip_refused"
	EventValid               Event = "valid"
	EventNeedsConfirmation   Event = "needs_confirmation"
	EventInvalid             Event = "invalid"
	EventConfirmed           Event = "confirmed"
	EventRejected            Event = "rejected"
	EventAutoConfirmed       Event = "auto_confirmed"
	EventRetry               Event = "retry"
	EventGiveUp              Event = "give_up"
	EventAbort               Event = "abort"
	EventNext                Event = "next"
	EventFinish              Event = "finish"
	EventCancel              Event = "cancel"
)

// Transition returns the state reached from current on event. Cancellation
// is legal from every non-terminal state.
func Transition(current State, event Event) (State, error) {
	if event == EventCancel && !current.Terminal() {
		return StateCancelled, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateAnnounce, nil
		case EventFinish:
			return StateComplete, nil
		}
	case StateAnnounce:
		switch event {
		case EventPrompted:
			return StateListening, nil
		case EventBypass:
			return StateSkip, nil
		}
	case StateListening:
		switch event {
		case EventCaptured:
			return StateParsing, nil
		case EventNoAudio:
			return StateRetry, nil
		}
	case StateParsing:
		switch event {
		case EventTranscribed:
			return StateValidating, nil
		case EventTranscriptionFailed, EventSkipRefused:
			return StateRetry, nil
		case EventSkipRequested:
			return StateSkip, nil
		}
	case StateValidating:
		switch event {
		case EventValid:
			return StateAccept, nil
		case EventNeedsConfirmation:
			return StateConfirming, nil
		case EventInvalid:
			return StateRetry, nil
		}
	case StateConfirming:
		switch event {
		case EventConfirmed, EventAutoConfirmed:
			return StateAccept, nil
		case EventRejected, EventNoAudio:
			return StateRetry, nil
		}
	case StateRetry:
		switch event {
		case EventRetry:
			return StateAnnounce, nil
		case EventGiveUp:
			return StateUnset, nil
		case EventAbort:
			return StateAborted, nil
		}
	case StateAccept, StateSkip, StateUnset:
		switch event {
		case EventNext:
			return StateAnnounce, nil
		case EventFinish:
			return StateComplete, nil
		}
	case StateComplete, StateAborted, StateCancelled:
	default:
		return current, fmt.Errorf("dialogue: unknown state %q", current)
	}
	return current, invalidTransition(current, event)
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("dialogue: invalid transition: %s --(%s)--> ?", state, event)
}
