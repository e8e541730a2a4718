// Package app wires the vitalvoice subsystems into a running host.
//
// [App] owns the provider lifetimes and the [SessionManager]; the command
// line builds providers through the config registry and hands them to [New].
// Tests inject doubles through the functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/MrWong99/vitalvoice/internal/config"
	"github.com/MrWong99/vitalvoice/internal/health"
	"github.com/MrWong99/vitalvoice/internal/journal"
	"github.com/MrWong99/vitalvoice/internal/observe"
	"github.com/MrWong99/vitalvoice/internal/speech"
	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/provider/stt"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
)

// Providers holds one value per provider slot. STT and Audio are required;
// a nil TTS prints prompts to stdout instead of speaking them.
type Providers struct {
	STT     stt.Provider
	STTName string
	TTS     tts.Provider
	TTSName string
	Audio   audio.Backend
}

// App owns every subsystem lifetime.
type App struct {
	providers *Providers
	sessions  *SessionManager

	journal journal.Journal
	metrics *observe.Metrics
	speaker speech.Speaker
	newID   func() string

	// closers run in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithJournal records finished sessions in j. Default: discard.
func WithJournal(j journal.Journal) Option {
	return func(a *App) { a.journal = j }
}

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSpeaker replaces the TTS-backed speaker, e.g. with [speech.Printer].
func WithSpeaker(s speech.Speaker) Option {
	return func(a *App) { a.speaker = s }
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(a *App) { a.newID = fn }
}

// WithCloser registers fn to run during Shutdown after the audio backend is
// closed.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New creates an App from cfg and providers.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if providers == nil || providers.STT == nil {
		return nil, errors.New("app: an STT provider is required")
	}
	if providers.Audio == nil {
		return nil, errors.New("app: an audio backend is required")
	}
	a := &App{providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.journal == nil {
		a.journal = journal.Discard{}
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.speaker == nil && providers.TTS == nil {
		slog.Warn("app: no TTS provider configured, prompts will be printed")
		a.speaker = &speech.Printer{W: os.Stdout}
	}

	sm, err := NewSessionManager(SessionManagerConfig{
		Config:    cfg,
		Providers: providers,
		Speaker:   a.speaker,
		Journal:   a.journal,
		Metrics:   a.metrics,
		NewID:     a.newID,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.sessions = sm
	return a, nil
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// ApplyConfig hands a reloaded config to the session manager. The running
// session, if any, keeps its settings; the next one picks up the change.
func (a *App) ApplyConfig(old, next *config.Config) config.ConfigDiff {
	d := config.Diff(old, next)
	if d.RestartRequired {
		slog.Warn("app: provider or server settings changed; restart to apply them")
	}
	for _, fc := range d.FormChanges {
		slog.Info("app: form changed", "form", fc.Name, "added", fc.Added, "removed", fc.Removed, "modified", fc.Modified)
	}
	if d.Any() {
		a.sessions.UpdateConfig(next)
	}
	return d
}

// Checkers returns the readiness probes for the configured providers.
func (a *App) Checkers() []health.Checker {
	checkers := []health.Checker{{
		Name: "session",
		Check: func(context.Context) error {
			if a.sessions.Closed() {
				return errors.New("shutting down")
			}
			return nil
		},
	}}
	if lister, ok := a.providers.Audio.(audio.DeviceLister); ok {
		checkers = append(checkers, health.Checker{
			Name: "audio",
			Check: func(ctx context.Context) error {
				devs, err := lister.ListDevices(ctx)
				if err != nil {
					return err
				}
				for _, d := range devs {
					if d.Available {
						return nil
					}
				}
				return errors.New("no available input device")
			},
		})
	}
	return checkers
}

// SessionHandler serves GET /session with the running session's progress
// and DELETE /session to cancel it.
func (a *App) SessionHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, _ *http.Request) {
		snap, ok := a.sessions.Current()
		if !ok {
			health.WriteJSON(w, http.StatusOK, map[string]any{"active": false})
			return
		}
		health.WriteJSON(w, http.StatusOK, map[string]any{"active": true, "session": snap})
	})
	mux.HandleFunc("DELETE /session", func(w http.ResponseWriter, _ *http.Request) {
		if !a.sessions.Stop() {
			health.WriteJSON(w, http.StatusNotFound, map[string]any{"active": false})
			return
		}
		health.WriteJSON(w, http.StatusAccepted, map[string]any{"cancelled": true})
	})
	return mux
}

// Shutdown stops the running session and releases providers. Closers that
// have not run when ctx expires are skipped and ctx's error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "closers", len(a.closers))
		a.sessions.Close()

		if err := a.providers.Audio.Close(); err != nil {
			slog.Warn("app: audio close error", "err", err)
		}
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("app: shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("app: closer error", "index", i, "err", err)
			}
		}
		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}
