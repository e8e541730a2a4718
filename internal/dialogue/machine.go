// Package dialogue walks a form field by field, asking for each value by
// voice and deciding whether to accept, retry, skip or give up.
//
// Every field takes one or more turns:
//
//	Announce → Listening → Parsing → Validating → (Confirming) → Resolved
//
// where Resolved is one of Accept, Retry, Skip or, once the retry budget is
// spent, Unset (optional fields) or Aborted (required fields). Fields whose
// dependency is not met are bypassed without a turn. The legal moves are the
// pure [Transition] table; [Machine] performs the I/O between them.
//
// A session is strictly sequential and half duplex: the machine speaks, then
// records, then transcribes, and never overlaps the three.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/vitalvoice/internal/observe"
	"github.com/MrWong99/vitalvoice/internal/speech"
	"github.com/MrWong99/vitalvoice/internal/transcript"
	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/form"
	"github.com/MrWong99/vitalvoice/pkg/numparse"
	"github.com/MrWong99/vitalvoice/pkg/options"
	"github.com/MrWong99/vitalvoice/pkg/provider/stt"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Session outcomes recorded on [observe.Metrics.Sessions] and in the journal.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Config holds the retry and recording policy.
type Config struct {
	// RecordCap is the hard limit on recording an answer.
	RecordCap time.Duration

	// ConfirmRecordCap is the hard limit on recording a yes/no reply.
	ConfirmRecordCap time.Duration

	// RequiredAttempts and OptionalAttempts are the per-field budgets.
	RequiredAttempts int
	OptionalAttempts int

	// AutoConfirmOnFailure accepts the pending value when the confirmation
	// reply cannot be transcribed. When false the field is retried instead.
	AutoConfirmOnFailure bool
}

// DefaultConfig returns the standard policy: 3 attempts for required fields,
// 2 for optional ones, 6 s answers and 4 s confirmations.
func DefaultConfig() Config {
	return Config{
		RecordCap:            6 * time.Second,
		ConfirmRecordCap:     4 * time.Second,
		RequiredAttempts:     3,
		OptionalAttempts:     2,
		AutoConfirmOnFailure: true,
	}
}

// Validate checks that every limit is positive.
func (c Config) Validate() error {
	var errs []error
	if c.RecordCap <= 0 {
		errs = append(errs, fmt.Errorf("dialogue: record cap must be positive, got %s", c.RecordCap))
	}
	if c.ConfirmRecordCap <= 0 {
		errs = append(errs, fmt.Errorf("dialogue: confirm record cap must be positive, got %s", c.ConfirmRecordCap))
	}
	if c.RequiredAttempts < 1 {
		errs = append(errs, fmt.Errorf("dialogue: required attempts must be at least 1, got %d", c.RequiredAttempts))
	}
	if c.OptionalAttempts < 1 {
		errs = append(errs, fmt.Errorf("dialogue: optional attempts must be at least 1, got %d", c.OptionalAttempts))
	}
	return errors.Join(errs...)
}

func (c Config) budget(required bool) int {
	if required {
		return c.RequiredAttempts
	}
	return c.OptionalAttempts
}

// Option configures a [Machine].
type Option func(*Machine)

// WithConfig replaces [DefaultConfig].
func WithConfig(cfg Config) Option {
	return func(m *Machine) { m.cfg = cfg }
}

// WithNumberParser replaces the default spoken-number parser.
func WithNumberParser(p *numparse.Parser) Option {
	return func(m *Machine) { m.numbers = p }
}

// WithOptionMapper replaces the default spoken-option mapper.
func WithOptionMapper(om *options.Mapper) Option {
	return func(m *Machine) { m.options = om }
}

// WithClassifier replaces the default skip and yes/no classifier.
func WithClassifier(c *transcript.Classifier) Option {
	return func(m *Machine) { m.intents = c }
}

// WithPrompts replaces [DefaultPrompts].
func WithPrompts(p Prompts) Option {
	return func(m *Machine) { m.prompts = p }
}

// WithMetrics records on met instead of [observe.DefaultMetrics].
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Machine) { m.metrics = met }
}

// WithTranscriberName labels transcription metrics. Default: "stt".
func WithTranscriberName(name string) Option {
	return func(m *Machine) { m.sttName = name }
}

// WithIDGenerator overrides the xid-based session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Machine) { m.newID = fn }
}

// WithObserver registers fn to receive a [Snapshot] after every state
// change. fn runs on the session goroutine and must not block.
func WithObserver(fn func(Snapshot)) Option {
	return func(m *Machine) { m.observer = fn }
}

// Machine runs capture sessions, one at a time.
type Machine struct {
	recorder    audio.Recorder
	transcriber stt.Provider
	speaker     speech.Speaker

	numbers  *numparse.Parser
	options  *options.Mapper
	intents  *transcript.Classifier
	prompts  Prompts
	cfg      Config
	metrics  *observe.Metrics
	sttName  string
	newID    func() string
	observer func(Snapshot)

	mu      sync.Mutex
	current *SessionState
}

// New returns a Machine. recorder, transcriber and speaker are required.
func New(recorder audio.Recorder, transcriber stt.Provider, speaker speech.Speaker, opts ...Option) (*Machine, error) {
	if recorder == nil {
		return nil, errors.New("dialogue: recorder must not be nil")
	}
	if transcriber == nil {
		return nil, errors.New("dialogue: transcriber must not be nil")
	}
	if speaker == nil {
		return nil, errors.New("dialogue: speaker must not be nil")
	}
	m := &Machine{
		recorder:    recorder,
		transcriber: transcriber,
		speaker:     speaker,
		cfg:         DefaultConfig(),
		sttName:     "stt",
		newID:       func() string { return xid.New().String() },
	}
	for _, o := range opts {
		o(m)
	}
	if err := m.cfg.Validate(); err != nil {
		return nil, err
	}
	if m.numbers == nil {
		m.numbers = numparse.New()
	}
	if m.options == nil {
		m.options = options.NewMapper()
	}
	if m.intents == nil {
		m.intents = transcript.New()
	}
	if m.prompts == nil {
		m.prompts = DefaultPrompts()
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m, nil
}

// Current returns a snapshot of the running session, if any.
func (m *Machine) Current() (Snapshot, bool) {
	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()
	if sess == nil {
		return Snapshot{}, false
	}
	return sess.Snapshot(), true
}

// Cancel stops the running session. It reports whether one was running.
func (m *Machine) Cancel() bool {
	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()
	if sess == nil {
		return false
	}
	sess.Cancel()
	return true
}

// Run captures every field of f in lang.
//
// On success the error is nil. A required field that runs out of attempts
// ends the session with an [*AbortError]; cancellation via ctx or
// [Machine.Cancel] returns an error wrapping [ErrCancelled]. In both cases
// the Result holds what was collected up to that point.
func (m *Machine) Run(ctx context.Context, f form.Form, lang types.Language) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, fmt.Errorf("dialogue: invalid form: %w", err)
	}
	if !lang.IsValid() {
		return Result{}, fmt.Errorf("dialogue: unsupported language %q", lang)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := newSession(m.newID(), f, lang, cancel)
	if err := m.attach(sess); err != nil {
		return Result{}, err
	}
	defer m.detach(sess)

	ctx = observe.WithSession(ctx, sess.ID)
	ctx, span := observe.StartSpan(ctx, "dialogue.session", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("form", f.Name),
		attribute.String("language", lang.String()),
	))
	m.metrics.ActiveSessions.Add(ctx, 1)
	defer m.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	log := observe.Logger(ctx)
	log.Info("dialogue: session started", "form", f.Name, "language", lang, "fields", len(f.Fields))

	err := m.run(ctx, sess)
	res := sess.result()
	sess.end()

	outcome := Outcome(err)
	m.metrics.RecordSession(context.WithoutCancel(ctx), outcome)
	observe.EndSpan(span, err)
	log.Info("dialogue: session finished",
		"outcome", outcome,
		"collected", len(res.Values),
		"skipped", len(res.Skipped),
		"bypassed", len(res.Bypassed),
		"unset", len(res.Unset),
		"elapsed", time.Since(sess.StartedAt),
	)
	return res, err
}

// Outcome classifies the error returned by [Machine.Run] as one of the
// Outcome* constants.
func Outcome(err error) string {
	var abort *AbortError
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.As(err, &abort):
		return OutcomeAborted
	case errors.Is(err, ErrCancelled):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

func (m *Machine) attach(sess *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return ErrSessionActive
	}
	m.current = sess
	return nil
}

func (m *Machine) detach(sess *SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == sess {
		m.current = nil
	}
}

func (m *Machine) run(ctx context.Context, sess *SessionState) error {
	if err := m.fire(sess, EventStart); err != nil {
		return err
	}
	for i, f := range sess.Form.Fields {
		if i > 0 {
			if err := m.fire(sess, EventNext); err != nil {
				return err
			}
		}
		sess.begin(i)
		if err := m.checkActive(ctx, sess); err != nil {
			return err
		}

		if d := f.DependsOn; d != nil && !d.SatisfiedBy(sess.collectedCopy()) {
			if err := m.fire(sess, EventBypass); err != nil {
				return err
			}
			sess.markBypassed(f.Name)
			m.metrics.RecordFieldOutcome(ctx, f.Name, observe.OutcomeBypassed)
			observe.Logger(ctx).Debug("dialogue: field bypassed", "field", f.Name, "depends_on", d.Field, "want", d.Value)
			continue
		}

		if err := m.field(ctx, sess, f); err != nil {
			return err
		}
	}

	if err := m.checkActive(ctx, sess); err != nil {
		return err
	}
	if err := m.fire(sess, EventFinish); err != nil {
		return err
	}
	// The values are final; a cancellation during the closing words does
	// not undo them.
	_ = m.say(ctx, sess, m.prompts.Completion(sess.Language))
	return nil
}

// field runs turns for f until it is resolved.
func (m *Machine) field(ctx context.Context, sess *SessionState, f form.Field) (err error) {
	ctx, span := observe.StartSpan(ctx, "dialogue.field", trace.WithAttributes(
		attribute.String("field", f.Name),
		attribute.String("kind", f.Kind.Name()),
		attribute.Bool("required", f.Required),
	))
	defer func() { observe.EndSpan(span, err) }()
	log := observe.Logger(ctx).With("field", f.Name)

	budget := m.cfg.budget(f.Required)
	var reason error
	for attempt := 1; ; attempt++ {
		sess.setAttempt(attempt)
		span.SetAttributes(attribute.Int("attempts", attempt))

		prompt := m.prompts.Announce(f, sess.Language)
		if reason != nil {
			prompt = m.prompts.Retry(f, sess.Language, reason) + " " + prompt
		}
		if err := m.say(ctx, sess, prompt); err != nil {
			return err
		}
		if err := m.fire(sess, EventPrompted); err != nil {
			return err
		}

		t, err := m.turn(ctx, sess, f)
		if err != nil {
			return err
		}

		switch t.state {
		case StateAccept:
			sess.store(f.Name, t.value)
			m.metrics.RecordFieldOutcome(ctx, f.Name, observe.OutcomeAccepted)
			log.Info("dialogue: field accepted", "value", t.value.String(), "attempt", attempt)
			return nil
		case StateSkip:
			sess.markSkipped(f.Name)
			m.metrics.RecordFieldOutcome(ctx, f.Name, observe.OutcomeSkipped)
			log.Info("dialogue: field skipped", "attempt", attempt)
			return nil
		}

		reason = t.reason
		m.metrics.RecordFieldRetry(ctx, f.Name, reasonLabel(reason))
		log.Info("dialogue: attempt rejected", "attempt", attempt, "budget", budget, "reason", reason)

		if attempt < budget {
			if err := m.fire(sess, EventRetry); err != nil {
				return err
			}
			continue
		}

		if !f.Required {
			if err := m.fire(sess, EventGiveUp); err != nil {
				return err
			}
			sess.markUnset(f.Name)
			m.metrics.RecordFieldOutcome(ctx, f.Name, observe.OutcomeUnset)
			log.Info("dialogue: optional field left unset", "attempts", attempt)
			return nil
		}

		if err := m.fire(sess, EventAbort); err != nil {
			return err
		}
		m.metrics.RecordFieldOutcome(ctx, f.Name, observe.OutcomeAborted)
		log.Warn("dialogue: required field aborted", "attempts", attempt, "last_reason", reason)
		_ = m.say(ctx, sess, m.prompts.Abort(f, sess.Language))
		return &AbortError{
			Field:    f.Name,
			Attempts: attempt,
			Cause:    fmt.Errorf("%w: %w", ErrBudgetExhausted, reason),
		}
	}
}

// turnResult is how one attempt ended: Accept with a value, Skip, or Retry
// with a reason.
type turnResult struct {
	state  State
	value  types.Value
	reason error
}

func retry(reason error) turnResult { return turnResult{state: StateRetry, reason: reason} }

// turn listens for, parses, validates and, when needed, confirms one answer.
// The returned error is only set when the session must stop.
func (m *Machine) turn(ctx context.Context, sess *SessionState, f form.Field) (turnResult, error) {
	lang := sess.Language

	clip, err := m.record(ctx, sess, m.cfg.RecordCap)
	if err != nil {
		if stop := m.checkActive(ctx, sess); stop != nil {
			return turnResult{}, stop
		}
		return m.resolve(sess, EventNoAudio, retry(err))
	}
	if err := m.fire(sess, EventCaptured); err != nil {
		return turnResult{}, err
	}

	text, err := m.transcribe(ctx, clip, lang)
	if err != nil {
		if stop := m.checkActive(ctx, sess); stop != nil {
			return turnResult{}, stop
		}
		return m.resolve(sess, EventTranscriptionFailed, retry(err))
	}

	if m.intents.IsSkip(text, lang) {
		if f.Required {
			return m.resolve(sess, EventSkipRefused, retry(ErrRequiredSkip))
		}
		return m.resolve(sess, EventSkipRequested, turnResult{state: StateSkip})
	}
	if err := m.fire(sess, EventTranscribed); err != nil {
		return turnResult{}, err
	}

	value, confirm, reason := m.interpret(text, f, lang)
	if reason != nil {
		observe.Logger(ctx).Debug("dialogue: answer rejected", "field", f.Name, "transcript", text, "reason", reason)
		return m.resolve(sess, EventInvalid, retry(reason))
	}
	if !confirm {
		return m.resolve(sess, EventValid, turnResult{state: StateAccept, value: value})
	}

	if err := m.fire(sess, EventNeedsConfirmation); err != nil {
		return turnResult{}, err
	}
	sess.setPending(&value)
	defer sess.setPending(nil)
	return m.confirm(ctx, sess, f, value)
}

// interpret parses text for f. It reports whether the value must be
// confirmed, or why it was rejected.
func (m *Machine) interpret(text string, f form.Field, lang types.Language) (types.Value, bool, error) {
	switch k := f.Kind.(type) {
	case form.Numeric:
		n, ok := m.numbers.Parse(text, lang)
		if !ok {
			return types.Value{}, false, ErrParseFailed
		}
		if !k.Contains(n) {
			return types.Value{}, false, fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, n, k.Min, k.Max)
		}
		return types.NumberValue(n), true, nil
	case form.Categorical:
		match, ok := m.options.MapWithin(text, f.Name, lang, k.Options)
		if !ok || !k.Has(match.Option) {
			return types.Value{}, false, ErrParseFailed
		}
		return types.OptionValue(match.Option), !match.Clear, nil
	default:
		return types.Value{}, false, fmt.Errorf("%w: field %q has no kind", ErrParseFailed, f.Name)
	}
}

// confirm reads value back and waits for yes or no.
func (m *Machine) confirm(ctx context.Context, sess *SessionState, f form.Field, value types.Value) (turnResult, error) {
	lang := sess.Language
	log := observe.Logger(ctx).With("field", f.Name, "value", value.String())

	if err := m.say(ctx, sess, m.prompts.Confirm(f, lang, value)); err != nil {
		return turnResult{}, err
	}
	clip, err := m.record(ctx, sess, m.cfg.ConfirmRecordCap)
	if err != nil {
		if stop := m.checkActive(ctx, sess); stop != nil {
			return turnResult{}, stop
		}
		return m.resolve(sess, EventNoAudio, retry(err))
	}

	text, err := m.transcribe(ctx, clip, lang)
	if err != nil {
		if stop := m.checkActive(ctx, sess); stop != nil {
			return turnResult{}, stop
		}
		if m.cfg.AutoConfirmOnFailure {
			log.Warn("dialogue: confirmation unreadable, accepting value", "err", err)
			return m.resolve(sess, EventAutoConfirmed, turnResult{state: StateAccept, value: value})
		}
		return m.resolve(sess, EventRejected, retry(err))
	}

	switch answer := m.intents.Confirmation(text, lang); answer {
	case transcript.Yes:
		return m.resolve(sess, EventConfirmed, turnResult{state: StateAccept, value: value})
	default:
		log.Debug("dialogue: value not confirmed", "answer", answer, "transcript", text)
		return m.resolve(sess, EventRejected, retry(ErrParseFailed))
	}
}

// resolve fires event and returns t.
func (m *Machine) resolve(sess *SessionState, event Event, t turnResult) (turnResult, error) {
	if err := m.fire(sess, event); err != nil {
		return turnResult{}, err
	}
	return t, nil
}

// record captures one answer. Any failure other than cancellation is
// reported as ErrNoAudio.
func (m *Machine) record(ctx context.Context, sess *SessionState, max time.Duration) (audio.Clip, error) {
	if err := m.checkActive(ctx, sess); err != nil {
		return audio.Clip{}, err
	}
	clip, err := m.recorder.Record(ctx, max)
	if err == nil && clip.Empty() {
		err = audio.ErrNoAudio
	}
	if err != nil {
		if ctx.Err() != nil {
			return audio.Clip{}, ctx.Err()
		}
		if !errors.Is(err, audio.ErrNoAudio) {
			observe.Logger(ctx).Warn("dialogue: recording failed", "err", err)
		}
		return audio.Clip{}, fmt.Errorf("%w: %w", ErrNoAudio, err)
	}
	m.metrics.RecordDuration.Record(ctx, clip.Duration().Seconds())
	return clip, nil
}

// transcribe converts clip to the transcription format and sends it to the
// transcriber.
func (m *Machine) transcribe(ctx context.Context, clip audio.Clip, lang types.Language) (string, error) {
	conv := audio.FormatConverter{Target: audio.TranscriptionFormat}
	clip = conv.Convert(clip)

	start := time.Now()
	res, err := m.transcriber.Transcribe(ctx, stt.Request{Audio: audio.EncodeWAV(clip), Language: lang})
	observe.ObserveSince(ctx, m.metrics.STTDuration, start, observe.Attr("provider", m.sttName))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		m.metrics.RecordProviderRequest(ctx, m.sttName, "stt", "error")
		if !errors.Is(err, stt.ErrNoTranscript) {
			m.metrics.RecordProviderError(ctx, m.sttName, "stt")
		}
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	m.metrics.RecordProviderRequest(ctx, m.sttName, "stt", "ok")

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailed, stt.ErrNoTranscript)
	}
	observe.Logger(ctx).Debug("dialogue: transcribed", "transcript", text, "confidence", res.Confidence)
	return text, nil
}

// say speaks text. A speech failure is logged and the turn continues, since
// the user can still answer from the previous prompt or the form on screen.
// Only cancellation is returned.
func (m *Machine) say(ctx context.Context, sess *SessionState, text string) error {
	if err := m.checkActive(ctx, sess); err != nil {
		return err
	}
	if err := m.speaker.Speak(ctx, text, sess.Language); err != nil {
		if stop := m.checkActive(ctx, sess); stop != nil {
			return stop
		}
		observe.Logger(ctx).Warn("dialogue: prompt not spoken", "err", err)
	}
	return nil
}

// checkActive returns a cancellation error once the session has been
// cancelled, moving it to StateCancelled.
func (m *Machine) checkActive(ctx context.Context, sess *SessionState) error {
	if sess.Active() && ctx.Err() == nil {
		return nil
	}
	if !sess.State().Terminal() {
		_ = m.fire(sess, EventCancel)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return ErrCancelled
}

// fire applies event and notifies the observer.
func (m *Machine) fire(sess *SessionState, event Event) error {
	if _, err := sess.fire(event); err != nil {
		return err
	}
	if m.observer != nil {
		m.observer(sess.Snapshot())
	}
	return nil
}
