package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/vitalvoice/internal/config"
	"github.com/MrWong99/vitalvoice/internal/dialogue"
	"github.com/MrWong99/vitalvoice/internal/journal"
	"github.com/MrWong99/vitalvoice/internal/observe"
	"github.com/MrWong99/vitalvoice/internal/speech"
	"github.com/MrWong99/vitalvoice/internal/transcript"
	"github.com/MrWong99/vitalvoice/pkg/numparse"
	"github.com/MrWong99/vitalvoice/pkg/options"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

var (
	// ErrUnknownForm is returned by Run for a form name the config does not
	// define.
	ErrUnknownForm = errors.New("app: unknown form")

	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("app: session manager closed")
)

// SessionManagerConfig holds the dependencies of a [SessionManager].
type SessionManagerConfig struct {
	Config    *config.Config
	Providers *Providers

	// Speaker overrides the TTS speaker built from Providers.TTS.
	Speaker speech.Speaker
	Journal journal.Journal
	Metrics *observe.Metrics
	NewID   func() string
}

// SessionManager runs capture sessions one at a time. A new session reads
// the config current at its start; reloads never reach a running session.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	providers *Providers
	speaker   speech.Speaker
	journal   journal.Journal
	metrics   *observe.Metrics
	newID     func() string

	mu      sync.Mutex
	cfg     *config.Config
	machine *dialogue.Machine
	cancel  context.CancelFunc
	last    *journal.Record
	closed  bool
}

// NewSessionManager validates cfg and returns a SessionManager.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if cfg.Config == nil {
		return nil, errors.New("session manager: config must not be nil")
	}
	if cfg.Providers == nil || cfg.Providers.STT == nil || cfg.Providers.Audio == nil {
		return nil, errors.New("session manager: STT and audio providers are required")
	}
	if cfg.Speaker == nil && cfg.Providers.TTS == nil {
		return nil, errors.New("session manager: a speaker or TTS provider is required")
	}
	sm := &SessionManager{
		providers: cfg.Providers,
		speaker:   cfg.Speaker,
		journal:   cfg.Journal,
		metrics:   cfg.Metrics,
		newID:     cfg.NewID,
		cfg:       cfg.Config,
	}
	if sm.journal == nil {
		sm.journal = journal.Discard{}
	}
	if sm.metrics == nil {
		sm.metrics = observe.DefaultMetrics()
	}
	return sm, nil
}

// UpdateConfig replaces the config used by the next session.
func (sm *SessionManager) UpdateConfig(cfg *config.Config) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cfg = cfg
}

// Config returns the config the next session will use.
func (sm *SessionManager) Config() *config.Config {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.cfg
}

// Run captures formName in lang and blocks until the session ends. An empty
// formName selects the first configured form; an empty lang selects the
// configured default. The outcome is appended to the journal whatever it is.
//
// Run returns [dialogue.ErrSessionActive] while another session runs.
func (sm *SessionManager) Run(ctx context.Context, formName string, lang types.Language) (dialogue.Result, error) {
	sm.mu.Lock()
	if sm.closed {
		sm.mu.Unlock()
		return dialogue.Result{}, ErrClosed
	}
	if sm.machine != nil {
		sm.mu.Unlock()
		return dialogue.Result{}, dialogue.ErrSessionActive
	}
	cfg := sm.cfg
	f, ok := cfg.FindForm(formName)
	if !ok {
		sm.mu.Unlock()
		return dialogue.Result{}, fmt.Errorf("%w: %q", ErrUnknownForm, formName)
	}
	if lang == "" {
		lang = cfg.Language()
	}
	m, err := sm.buildMachine(cfg)
	if err != nil {
		sm.mu.Unlock()
		return dialogue.Result{}, err
	}
	ctx, cancel := context.WithCancel(ctx)
	sm.machine, sm.cancel = m, cancel
	sm.mu.Unlock()

	defer func() {
		sm.mu.Lock()
		sm.machine, sm.cancel = nil, nil
		sm.mu.Unlock()
		cancel()
	}()

	res, err := m.Run(ctx, f, lang)

	rec := journal.FromResult(res, err)
	if jerr := sm.journal.Append(rec); jerr != nil {
		slog.Error("session manager: journal append failed", "session_id", res.SessionID, "err", jerr)
	}
	sm.mu.Lock()
	sm.last = &rec
	sm.mu.Unlock()
	return res, err
}

// buildMachine assembles a dialogue machine from cfg. Called with sm.mu held.
func (sm *SessionManager) buildMachine(cfg *config.Config) (*dialogue.Machine, error) {
	lex, err := cfg.LexiconStore()
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	store, err := cfg.OptionStore()
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}

	speaker := sm.speaker
	if speaker == nil {
		opts := []speech.Option{
			speech.WithMetrics(sm.metrics),
			speech.WithProviderName(providerName(sm.providers.TTSName, "tts")),
		}
		for lang, voice := range cfg.VoiceProfiles() {
			opts = append(opts, speech.WithVoice(lang, voice))
		}
		speaker, err = speech.New(sm.providers.TTS, sm.providers.Audio, opts...)
		if err != nil {
			return nil, fmt.Errorf("session manager: %w", err)
		}
	}

	mopts := []dialogue.Option{
		dialogue.WithConfig(cfg.DialoguePolicy()),
		dialogue.WithNumberParser(numparse.New(numparse.WithLexicon(lex))),
		dialogue.WithOptionMapper(options.NewMapper(options.WithStore(store))),
		dialogue.WithClassifier(transcript.New(transcript.WithEntries(cfg.IntentEntries()...))),
		dialogue.WithPrompts(cfg.PromptSet()),
		dialogue.WithMetrics(sm.metrics),
		dialogue.WithTranscriberName(providerName(sm.providers.STTName, "stt")),
	}
	if sm.newID != nil {
		mopts = append(mopts, dialogue.WithIDGenerator(sm.newID))
	}
	m, err := dialogue.New(sm.providers.Audio, sm.providers.STT, speaker, mopts...)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	return m, nil
}

func providerName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// Current returns the running session's progress.
func (sm *SessionManager) Current() (dialogue.Snapshot, bool) {
	sm.mu.Lock()
	m := sm.machine
	sm.mu.Unlock()
	if m == nil {
		return dialogue.Snapshot{}, false
	}
	return m.Current()
}

// IsActive reports whether a session is running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.machine != nil
}

// Stop cancels the running session. It reports whether one was running.
func (sm *SessionManager) Stop() bool {
	sm.mu.Lock()
	m, cancel := sm.machine, sm.cancel
	sm.mu.Unlock()
	if m == nil {
		return false
	}
	// The machine may not have attached its session yet; the context
	// covers that window.
	m.Cancel()
	cancel()
	return true
}

// Last returns the journal record of the most recent finished session.
func (sm *SessionManager) Last() (journal.Record, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.last == nil {
		return journal.Record{}, false
	}
	return *sm.last, true
}

// Close stops the running session and refuses new ones.
func (sm *SessionManager) Close() {
	sm.mu.Lock()
	sm.closed = true
	sm.mu.Unlock()
	sm.Stop()
}

// Closed reports whether Close was called.
func (sm *SessionManager) Closed() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.closed
}
