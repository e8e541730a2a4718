package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/vitalvoice/internal/config"
)

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "log level",
			yaml:    "server: { log_level: bananas }",
			wantErr: "server.log_level",
		},
		{
			name:    "dialogue language",
			yaml:    "dialogue: { language: fr }",
			wantErr: "dialogue.language",
		},
		{
			name:    "record seconds",
			yaml:    "dialogue: { record_seconds: 120 }",
			wantErr: "dialogue.record_seconds",
		},
		{
			name:    "negative attempts",
			yaml:    "dialogue: { required_attempts: -1 }",
			wantErr: "dialogue.required_attempts",
		},
		{
			name:    "silence threshold",
			yaml:    "dialogue: { silence_threshold: 2 }",
			wantErr: "dialogue.silence_threshold",
		},
		{
			name:    "voice language",
			yaml:    "voices: { de: { voice_id: x } }",
			wantErr: "voices.de",
		},
		{
			name:    "voice speed",
			yaml:    "voices: { en: { voice_id: x, speed_factor: 3 } }",
			wantErr: "voices.en.speed_factor",
		},
		{
			name:    "fallback without primary",
			yaml:    "providers: { stt_fallbacks: [ { name: whisper } ] }",
			wantErr: "providers.stt_fallbacks requires providers.stt",
		},
		{
			name:    "fallback without name",
			yaml:    "providers: { tts: { name: coqui }, tts_fallbacks: [ { model: x } ] }",
			wantErr: "providers.tts_fallbacks[0].name",
		},
		{
			name:    "number word language",
			yaml:    "vocabulary: { numbers: [ { language: xx, word: foo, value: 1 } ] }",
			wantErr: "vocabulary.numbers[0].language",
		},
		{
			name:    "number word conflicts with built-in",
			yaml:    "vocabulary: { numbers: [ { language: en, word: ten, value: 11 } ] }",
			wantErr: "vocabulary.numbers",
		},
		{
			name:    "option without phrases",
			yaml:    "vocabulary: { options: [ { language: en, field: arm, option: Left } ] }",
			wantErr: "vocabulary.options[0]",
		},
		{
			name:    "unknown intent",
			yaml:    "vocabulary: { intents: [ { language: en, intent: maybe, phrases: [perhaps] } ] }",
			wantErr: "vocabulary.intents[0]",
		},
		{
			name:    "prompt language",
			yaml:    "prompts: { fr: { completion: merci } }",
			wantErr: "prompts.fr",
		},
		{
			name: "duplicate form",
			yaml: `
forms:
  - { name: a, fields: [ { name: x, kind: numeric, min: 1, max: 2 } ] }
  - { name: a, fields: [ { name: y, kind: numeric, min: 1, max: 2 } ] }
`,
			wantErr: "duplicate of forms[0]",
		},
		{
			name:    "form without fields",
			yaml:    "forms: [ { name: empty } ]",
			wantErr: "forms[0]",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:   config.ServerConfig{LogLevel: "verbose"},
		Dialogue: config.DialogueConfig{Language: "fr", OptionalAttempts: -2},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.log_level", "dialogue.language", "dialogue.optional_attempts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error does not mention %q: %v", want, err)
		}
	}
}

func TestValidate_UnknownProviderNameIsOnlyAWarning(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			STT: config.ProviderEntry{Name: "my-custom-asr"},
		},
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("unknown provider name should not fail validation: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"stt", "tts", "audio"} {
		names, ok := config.ValidProviderNames[kind]
		if !ok || len(names) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}
