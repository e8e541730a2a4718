package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/vitalvoice/internal/transcript"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":   {"whisper", "whisper-native", "deepgram", "openai", "mock"},
	"tts":   {"elevenlabs", "coqui", "openai", "mock"},
	"audio": {"pulse", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", fb.Name)
	}
	for i, fb := range cfg.Providers.TTSFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
		}
		validateProviderName("tts", fb.Name)
	}
	if cfg.Providers.STT.Name == "" && len(cfg.Providers.STTFallbacks) > 0 {
		errs = append(errs, errors.New("providers.stt_fallbacks requires providers.stt"))
	}
	if cfg.Providers.TTS.Name == "" && len(cfg.Providers.TTSFallbacks) > 0 {
		errs = append(errs, errors.New("providers.tts_fallbacks requires providers.tts"))
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; capture sessions cannot run")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; prompts will be printed instead of spoken")
	}

	// Voices
	for lang, v := range cfg.Voices {
		prefix := fmt.Sprintf("voices.%s", lang)
		if !types.Language(lang).IsValid() {
			errs = append(errs, fmt.Errorf("%s: unsupported language; valid values: en, sw", prefix))
		}
		if v.SpeedFactor != 0 && (v.SpeedFactor < 0.5 || v.SpeedFactor > 2.0) {
			errs = append(errs, fmt.Errorf("%s.speed_factor %.2f is out of range [0.5, 2.0]", prefix, v.SpeedFactor))
		}
		if v.Provider != "" && cfg.Providers.TTS.Name != "" && v.Provider != cfg.Providers.TTS.Name {
			slog.Warn("voice provider does not match configured TTS provider",
				"language", lang,
				"voice_provider", v.Provider,
				"tts_provider", cfg.Providers.TTS.Name,
			)
		}
	}

	// Dialogue
	d := cfg.Dialogue
	if d.Language != "" && !types.Language(d.Language).IsValid() {
		errs = append(errs, fmt.Errorf("dialogue.language %q is invalid; valid values: en, sw", d.Language))
	}
	if d.RecordSeconds < 0 || d.RecordSeconds > 60 {
		errs = append(errs, fmt.Errorf("dialogue.record_seconds %.1f is out of range [0, 60]", d.RecordSeconds))
	}
	if d.ConfirmRecordSeconds < 0 || d.ConfirmRecordSeconds > 60 {
		errs = append(errs, fmt.Errorf("dialogue.confirm_record_seconds %.1f is out of range [0, 60]", d.ConfirmRecordSeconds))
	}
	if d.RequiredAttempts < 0 {
		errs = append(errs, fmt.Errorf("dialogue.required_attempts %d must not be negative", d.RequiredAttempts))
	}
	if d.OptionalAttempts < 0 {
		errs = append(errs, fmt.Errorf("dialogue.optional_attempts %d must not be negative", d.OptionalAttempts))
	}
	if d.SilenceThreshold < 0 || d.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("dialogue.silence_threshold %.3f is out of range [0, 1]", d.SilenceThreshold))
	}

	// Vocabulary
	for i, n := range cfg.Vocabulary.Numbers {
		prefix := fmt.Sprintf("vocabulary.numbers[%d]", i)
		if !types.Language(n.Language).IsValid() {
			errs = append(errs, fmt.Errorf("%s.language %q is invalid", prefix, n.Language))
		}
		if n.Word == "" {
			errs = append(errs, fmt.Errorf("%s.word is required", prefix))
		}
		if n.Value < 0 {
			errs = append(errs, fmt.Errorf("%s.value %d must not be negative", prefix, n.Value))
		}
	}
	for i, o := range cfg.Vocabulary.Options {
		prefix := fmt.Sprintf("vocabulary.options[%d]", i)
		if !types.Language(o.Language).IsValid() {
			errs = append(errs, fmt.Errorf("%s.language %q is invalid", prefix, o.Language))
		}
		if o.Field == "" || o.Option == "" {
			errs = append(errs, fmt.Errorf("%s: field and option are required", prefix))
		}
		if len(o.Phrases) == 0 && len(o.Hints) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one phrase or hint is required", prefix))
		}
	}
	for i, in := range cfg.Vocabulary.Intents {
		prefix := fmt.Sprintf("vocabulary.intents[%d]", i)
		if !types.Language(in.Language).IsValid() {
			errs = append(errs, fmt.Errorf("%s.language %q is invalid", prefix, in.Language))
		}
		if _, err := transcript.ParseIntent(in.Intent); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
		if len(in.Phrases) == 0 {
			errs = append(errs, fmt.Errorf("%s.phrases must not be empty", prefix))
		}
	}
	if len(errs) == 0 {
		// Conflicts with the built-in vocabulary only show up once merged.
		if _, err := cfg.LexiconStore(); err != nil {
			errs = append(errs, err)
		}
		if _, err := cfg.OptionStore(); err != nil {
			errs = append(errs, err)
		}
	}

	// Prompts
	for lang := range cfg.Prompts {
		if !lang.IsValid() {
			errs = append(errs, fmt.Errorf("prompts.%s: unsupported language; valid values: en, sw", lang))
		}
	}

	// Forms
	formNamesSeen := make(map[string]int, len(cfg.Forms))
	for i, f := range cfg.Forms {
		if err := f.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("forms[%d]: %w", i, err))
			continue
		}
		if prev, ok := formNamesSeen[f.Name]; ok {
			errs = append(errs, fmt.Errorf("forms[%d].name %q is a duplicate of forms[%d]", i, f.Name, prev))
		}
		formNamesSeen[f.Name] = i
	}
	if len(cfg.Forms) == 0 {
		slog.Debug("no forms configured; using the built-in vitals form")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
