// Command vitalvoice captures clinical readings by voice.
//
// The capture command runs a form against the configured microphone,
// speaker and speech providers and appends the outcome to the journal. The
// remaining commands are operator tools for checking vocabulary, devices,
// voices and configuration without starting a session.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/MrWong99/vitalvoice/internal/config"
)

// Global flags shared by every command.
var (
	configPath string
	logLevel   string
	logFormat  string
)

// logLevelVar lets the config watcher change the level at runtime.
var logLevelVar = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:   "vitalvoice",
	Short: "Voice-guided capture of clinical readings in English and Swahili",
	Long: `vitalvoice walks a form of clinical readings field by field: it speaks each
prompt, records the answer, transcribes it and parses spoken numbers or
options, confirming uncertain values and retrying within a budget.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogger(config.LogLevel(logLevel), logFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "vitalvoice.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(
		newCaptureCmd(),
		newParseNumberCmd(),
		newMapOptionCmd(),
		newDevicesCmd(),
		newVoicesCmd(),
		newCheckConfigCmd(),
	)
}

func main() {
	err := rootCmd.Execute()
	if sentryEnabled {
		if err != nil {
			sentry.CaptureException(err)
		}
		sentry.Flush(2 * time.Second)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "vitalvoice: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configPath. When allowMissing is set, a missing file
// yields the built-in defaults so the operator tools work without one.
func loadConfig(allowMissing bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		applyLogLevel(cfg.Server.LogLevel)
		return cfg, nil
	}
	if allowMissing && errors.Is(err, os.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", configPath)
		return &config.Config{}, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", configPath)
	}
	return nil, err
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func setupLogger(level config.LogLevel, format string) error {
	opts := &slog.HandlerOptions{Level: logLevelVar}
	switch format {
	case "", "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	default:
		return fmt.Errorf("unknown --log-format %q (want text or json)", format)
	}
	if level != "" {
		logLevelVar.Set(slogLevel(level))
	}
	return nil
}

// applyLogLevel sets the level from config unless --log-level overrides it.
func applyLogLevel(level config.LogLevel) {
	if logLevel != "" || level == "" {
		return
	}
	logLevelVar.Set(slogLevel(level))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Sentry ─────────────────────────────────────────────────────────────────────

var sentryEnabled bool

// initSentry enables error reporting when the config names a DSN.
func initSentry(cfg *config.Config) {
	if cfg.Server.SentryDSN == "" {
		return
	}
	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Server.SentryDSN,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		Environment:      env,
	})
	if err != nil {
		slog.Warn("sentry init failed", "err", err)
		return
	}
	sentryEnabled = true
	slog.Info("sentry initialised", "environment", env)
}

// reportError forwards err to Sentry when it is enabled.
func reportError(err error, tags map[string]string) {
	if !sentryEnabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}
