package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vitalvoice/internal/app"
	"github.com/MrWong99/vitalvoice/internal/config"
	"github.com/MrWong99/vitalvoice/internal/dialogue"
	"github.com/MrWong99/vitalvoice/internal/health"
	"github.com/MrWong99/vitalvoice/internal/journal"
	"github.com/MrWong99/vitalvoice/internal/observe"
	"github.com/MrWong99/vitalvoice/internal/speech"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

type captureFlags struct {
	form     string
	lang     string
	journal  string
	loop     bool
	pause    time.Duration
	textOnly bool
	watch    bool
}

func newCaptureCmd() *cobra.Command {
	var f captureFlags
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a voice capture session",
		Long: `capture speaks each field of a form, records and transcribes the answer and
stores the parsed value. With --loop it starts a new session after each one
ends, picking up configuration changes between sessions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCapture(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.form, "form", "f", "", "form to capture (default: first configured form)")
	cmd.Flags().StringVarP(&f.lang, "lang", "l", "", "session language: en or sw (default: dialogue.language)")
	cmd.Flags().StringVar(&f.journal, "journal", "", "journal file (default: journal.path)")
	cmd.Flags().BoolVar(&f.loop, "loop", false, "keep starting sessions until interrupted")
	cmd.Flags().DurationVar(&f.pause, "pause", 3*time.Second, "pause between sessions with --loop")
	cmd.Flags().BoolVar(&f.textOnly, "text", false, "print prompts instead of speaking them")
	cmd.Flags().BoolVar(&f.watch, "watch", true, "reload the config file when it changes")
	return cmd
}

func runCapture(parent context.Context, f captureFlags) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	var lang types.Language
	if f.lang != "" {
		if lang, err = types.ParseLanguage(f.lang); err != nil {
			return err
		}
	}
	initSentry(cfg)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelProvider, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	met, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	built, err := buildProviders(cfg, reg, met)
	if err != nil {
		return err
	}

	opts := []app.Option{app.WithMetrics(met)}
	for _, c := range built.closers {
		opts = append(opts, app.WithCloser(c))
	}
	if path := firstNonEmpty(f.journal, cfg.Journal.Path); path != "" {
		j, err := journal.NewFileStore(path)
		if err != nil {
			return errors.Join(err, built.close(), built.Audio.Close())
		}
		opts = append(opts, app.WithJournal(j))
	}
	if f.textOnly {
		opts = append(opts, app.WithSpeaker(&speech.Printer{W: os.Stdout}))
	}
	application, err := app.New(cfg, built.Providers, opts...)
	if err != nil {
		return errors.Join(err, built.close(), built.Audio.Close())
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	printStartupSummary(os.Stdout, cfg, built.Providers)

	// ── Run ───────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if f.watch {
		w, err := config.NewWatcher(configPath, func(old, next *config.Config) {
			d := application.ApplyConfig(old, next)
			if d.LogLevelChanged {
				applyLogLevel(d.NewLogLevel)
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			g.Go(func() error {
				<-gctx.Done()
				w.Stop()
				return nil
			})
		}
	}

	if addr := cfg.Server.ListenAddr; addr != "" {
		g.Go(func() error {
			return serveOps(gctx, addr, opsHandler(application, otelProvider.MetricsHandler(), met))
		})
	}

	g.Go(func() error {
		defer cancel()
		return captureLoop(gctx, application.Sessions(), f, lang)
	})

	return g.Wait()
}

// captureLoop runs one session, or sessions back to back with --loop.
func captureLoop(ctx context.Context, sm *app.SessionManager, f captureFlags, lang types.Language) error {
	for {
		res, err := sm.Run(ctx, f.form, lang)
		printResult(os.Stdout, res, err)

		switch dialogue.Outcome(err) {
		case dialogue.OutcomeCancelled:
			return nil
		case dialogue.OutcomeFailed:
			if errors.Is(err, app.ErrUnknownForm) || errors.Is(err, app.ErrClosed) {
				return err
			}
			reportError(err, map[string]string{"session_id": res.SessionID, "form": res.Form})
			if !f.loop {
				return err
			}
			slog.Error("capture session failed", "session_id", res.SessionID, "err", err)
		case dialogue.OutcomeAborted:
			if !f.loop {
				return err
			}
		}
		if !f.loop {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.pause):
		}
	}
}

// opsHandler assembles the ops HTTP surface behind the observe middleware.
func opsHandler(a *app.App, metrics http.Handler, met *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	health.New(a.Checkers()...).Register(mux)
	mux.Handle("GET /metrics", metrics)
	sessions := a.SessionHandler()
	mux.Handle("GET /session", sessions)
	mux.Handle("DELETE /session", sessions)
	return observe.Middleware(met)(mux)
}

// serveOps runs the ops server until ctx ends.
func serveOps(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("ops server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("ops server shutdown: %w", err)
		}
		return nil
	}
}

// ── Output ─────────────────────────────────────────────────────────────────────

func printResult(w io.Writer, res dialogue.Result, err error) {
	outcome := dialogue.Outcome(err)
	fmt.Fprintf(w, "\nsession %s (%s, %s): %s\n", res.SessionID, res.Form, res.Language, outcome)
	names := make([]string, 0, len(res.Values))
	for name := range res.Values {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %s\n", name, res.Values[name])
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "  skipped:  %s\n", strings.Join(res.Skipped, ", "))
	}
	if len(res.Unset) > 0 {
		fmt.Fprintf(w, "  unset:    %s\n", strings.Join(res.Unset, ", "))
	}
	var abort *dialogue.AbortError
	if errors.As(err, &abort) {
		fmt.Fprintf(w, "  %s needs manual entry\n", abort.Field)
	}
}

func printStartupSummary(w io.Writer, cfg *config.Config, ps *app.Providers) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║       vitalvoice: startup summary     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printProvider(w, "STT", ps.STTName, cfg.Providers.STT.Model)
	printProvider(w, "TTS", ps.TTSName, cfg.Providers.TTS.Model)
	printProvider(w, "Audio", firstNonEmpty(cfg.Providers.Audio.Name, "pulse"), "")
	fmt.Fprintf(w, "║  Language        : %-19s ║\n", cfg.Language())
	fmt.Fprintf(w, "║  Forms           : %-19d ║\n", len(cfg.FormSet()))
	if cfg.Server.ListenAddr != "" {
		fmt.Fprintf(w, "║  Ops addr        : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printProvider(w io.Writer, kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "..."
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", kind, value)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
