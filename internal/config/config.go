// Package config provides the configuration schema, loader, provider registry
// and hot-reload watcher for vitalvoice.
package config

import (
	"github.com/MrWong99/vitalvoice/internal/dialogue"
	"github.com/MrWong99/vitalvoice/pkg/form"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig           `yaml:"server"`
	Providers  ProvidersConfig        `yaml:"providers"`
	Voices     map[string]VoiceConfig `yaml:"voices"`
	Dialogue   DialogueConfig         `yaml:"dialogue"`
	Vocabulary VocabularyConfig       `yaml:"vocabulary"`

	// Prompts overrides individual prompt templates per language. Templates
	// left empty keep the built-in wording.
	Prompts dialogue.Prompts `yaml:"prompts"`

	// Forms are the forms offered for capture. When empty the built-in
	// vitals form is used.
	Forms []form.Form `yaml:"forms"`

	Journal JournalConfig `yaml:"journal"`
}

// ServerConfig holds logging, error reporting and the ops listener.
type ServerConfig struct {
	// ListenAddr is the TCP address of the health/metrics listener
	// (e.g., ":9090"). Empty disables it.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// SentryDSN enables error reporting to Sentry when set.
	SentryDSN string `yaml:"sentry_dsn"`

	// Environment tags Sentry events (e.g., "clinic", "staging").
	Environment string `yaml:"environment"`
}

// ProvidersConfig declares which provider implementation to use for each
// stage. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`

	// STTFallbacks are tried in order when the primary transcriber fails.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	TTS          ProviderEntry   `yaml:"tts"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`

	// Audio selects the microphone/speaker backend ("pulse" or "mock").
	// Options: input, fallback.
	Audio ProviderEntry `yaml:"audio"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-2", "whisper-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// VoiceConfig selects the TTS voice for one language.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// Provider names the TTS provider the voice belongs to. Informational;
	// a mismatch with providers.tts is logged.
	Provider string `yaml:"provider"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// DialogueConfig tunes the capture dialogue. Zero values keep the defaults
// of [dialogue.DefaultConfig].
type DialogueConfig struct {
	// Language is the default session language ("en" or "sw").
	Language string `yaml:"language"`

	RecordSeconds        float64 `yaml:"record_seconds"`
	ConfirmRecordSeconds float64 `yaml:"confirm_record_seconds"`
	RequiredAttempts     int     `yaml:"required_attempts"`
	OptionalAttempts     int     `yaml:"optional_attempts"`

	// AutoConfirmOnFailure defaults to true when omitted.
	AutoConfirmOnFailure *bool `yaml:"auto_confirm_on_failure"`

	// SilenceThreshold is the RMS level, in [0, 1], below which a recording
	// counts as no audio.
	SilenceThreshold float64 `yaml:"silence_threshold"`
}

// VocabularyConfig extends the built-in word lists.
type VocabularyConfig struct {
	Numbers []NumberWord   `yaml:"numbers"`
	Options []OptionPhrase `yaml:"options"`
	Intents []IntentPhrase `yaml:"intents"`
}

// NumberWord adds one spoken number word.
type NumberWord struct {
	Language string `yaml:"language"`
	Word     string `yaml:"word"`
	Value    int    `yaml:"value"`
}

// OptionPhrase adds trigger phrases and hints for one option of one field.
type OptionPhrase struct {
	Language string   `yaml:"language"`
	Field    string   `yaml:"field"`
	Option   string   `yaml:"option"`
	Phrases  []string `yaml:"phrases"`
	Hints    []string `yaml:"hints"`
}

// IntentPhrase adds phrases for the skip, yes or no intent.
type IntentPhrase struct {
	Language string   `yaml:"language"`
	Intent   string   `yaml:"intent"`
	Phrases  []string `yaml:"phrases"`
}

// JournalConfig controls the append-only session journal.
type JournalConfig struct {
	// Path of the JSON-lines journal file. Empty disables journaling.
	Path string `yaml:"path"`
}
