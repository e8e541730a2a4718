package config

import (
	"fmt"
	"time"

	"github.com/MrWong99/vitalvoice/internal/dialogue"
	"github.com/MrWong99/vitalvoice/internal/transcript"
	"github.com/MrWong99/vitalvoice/pkg/form"
	"github.com/MrWong99/vitalvoice/pkg/lexicon"
	"github.com/MrWong99/vitalvoice/pkg/options"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Language returns the configured default session language, English when unset.
func (c *Config) Language() types.Language {
	if c.Dialogue.Language == "" {
		return types.English
	}
	return types.Language(c.Dialogue.Language)
}

// DialoguePolicy merges the dialogue section over [dialogue.DefaultConfig].
func (c *Config) DialoguePolicy() dialogue.Config {
	out := dialogue.DefaultConfig()
	d := c.Dialogue
	if d.RecordSeconds > 0 {
		out.RecordCap = seconds(d.RecordSeconds)
	}
	if d.ConfirmRecordSeconds > 0 {
		out.ConfirmRecordCap = seconds(d.ConfirmRecordSeconds)
	}
	if d.RequiredAttempts > 0 {
		out.RequiredAttempts = d.RequiredAttempts
	}
	if d.OptionalAttempts > 0 {
		out.OptionalAttempts = d.OptionalAttempts
	}
	if d.AutoConfirmOnFailure != nil {
		out.AutoConfirmOnFailure = *d.AutoConfirmOnFailure
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LexiconStore returns the built-in number lexicon extended with
// vocabulary.numbers.
func (c *Config) LexiconStore() (*lexicon.Store, error) {
	base := lexicon.Default()
	if len(c.Vocabulary.Numbers) == 0 {
		return base, nil
	}
	entries := make([]lexicon.Entry, 0, len(c.Vocabulary.Numbers))
	for _, n := range c.Vocabulary.Numbers {
		entries = append(entries, lexicon.Entry{Language: types.Language(n.Language), Word: n.Word, Value: n.Value})
	}
	s, err := base.With(entries...)
	if err != nil {
		return nil, fmt.Errorf("vocabulary.numbers: %w", err)
	}
	return s, nil
}

// OptionStore returns the built-in option keywords extended with
// vocabulary.options.
func (c *Config) OptionStore() (*options.Store, error) {
	base := options.Default()
	if len(c.Vocabulary.Options) == 0 {
		return base, nil
	}
	entries := make([]options.Entry, 0, len(c.Vocabulary.Options))
	for _, o := range c.Vocabulary.Options {
		entries = append(entries, options.Entry{
			Language: types.Language(o.Language),
			Field:    o.Field,
			Option:   o.Option,
			Phrases:  o.Phrases,
			Hints:    o.Hints,
		})
	}
	s, err := base.With(entries...)
	if err != nil {
		return nil, fmt.Errorf("vocabulary.options: %w", err)
	}
	return s, nil
}

// IntentEntries converts vocabulary.intents for [transcript.WithEntries].
// Entries with an unknown intent are dropped; [Validate] rejects them.
func (c *Config) IntentEntries() []transcript.Entry {
	out := make([]transcript.Entry, 0, len(c.Vocabulary.Intents))
	for _, in := range c.Vocabulary.Intents {
		intent, err := transcript.ParseIntent(in.Intent)
		if err != nil {
			continue
		}
		out = append(out, transcript.Entry{Language: types.Language(in.Language), Intent: intent, Phrases: in.Phrases})
	}
	return out
}

// PromptSet returns the built-in prompts with the configured overrides.
func (c *Config) PromptSet() dialogue.Prompts {
	return dialogue.DefaultPrompts().Merge(c.Prompts)
}

// FormSet returns the configured forms, or the built-in vitals form when
// none are configured.
func (c *Config) FormSet() []form.Form {
	if len(c.Forms) == 0 {
		return []form.Form{form.Vitals()}
	}
	return c.Forms
}

// FindForm returns the form called name. An empty name selects the first
// form.
func (c *Config) FindForm(name string) (form.Form, bool) {
	forms := c.FormSet()
	if name == "" {
		return forms[0], true
	}
	for _, f := range forms {
		if f.Name == name {
			return f, true
		}
	}
	return form.Form{}, false
}

// VoiceProfiles returns a voice per configured language.
func (c *Config) VoiceProfiles() map[types.Language]tts.VoiceProfile {
	out := make(map[types.Language]tts.VoiceProfile, len(c.Voices))
	for lang, v := range c.Voices {
		provider := v.Provider
		if provider == "" {
			provider = c.Providers.TTS.Name
		}
		out[types.Language(lang)] = tts.VoiceProfile{
			ID:          v.VoiceID,
			Provider:    provider,
			Language:    types.Language(lang),
			SpeedFactor: v.SpeedFactor,
		}
	}
	return out
}
