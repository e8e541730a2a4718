package dialogue

import (
	"errors"
	"strconv"
	"strings"

	"github.com/MrWong99/vitalvoice/pkg/form"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Catalog holds the prompt templates for one language. Templates use the
// placeholders {label}, {min}, {max}, {unit}, {options} and {value}.
type Catalog struct {
	Ask              string `yaml:"ask"`
	RequiredNote     string `yaml:"required_note"`
	OptionalNote     string `yaml:"optional_note"`
	NumericHint      string `yaml:"numeric_hint"`
	OptionsHint      string `yaml:"options_hint"`
	NoAudio          string `yaml:"no_audio"`
	TranscriptFailed string `yaml:"transcription_failed"`
	ParseFailed      string `yaml:"parse_failed"`
	OutOfRange       string `yaml:"out_of_range"`
	RequiredSkip     string `yaml:"required_skip"`
	Confirm          string `yaml:"confirm"`
	Completion       string `yaml:"completion"`
	Abort            string `yaml:"abort"`
}

// Prompts maps each language to its catalog.
type Prompts map[types.Language]Catalog

// DefaultPrompts returns the built-in English and Swahili catalogs.
func DefaultPrompts() Prompts {
	return Prompts{
		types.English: {
			Ask:              "Please say your {label}.",
			RequiredNote:     "This one is required and cannot be skipped.",
			OptionalNote:     "You can say skip to leave it out.",
			NumericHint:      "Say a number between {min} and {max} {unit}.",
			OptionsHint:      "You can say {options}.",
			NoAudio:          "I did not hear anything.",
			TranscriptFailed: "Sorry, I could not understand that.",
			ParseFailed:      "I did not catch a valid answer.",
			OutOfRange:       "The {label} must be between {min} and {max} {unit}.",
			RequiredSkip:     "The {label} is required and cannot be skipped.",
			Confirm:          "You said {value} {unit}. Is that correct? Say yes or no.",
			Completion:       "Thank you. All readings have been captured.",
			Abort:            "I could not capture your {label}. Please fill it in manually.",
		},
		types.Swahili: {
			Ask:              "Tafadhali taja {label}.",
			RequiredNote:     "Hii ni lazima na haiwezi kurukwa.",
			OptionalNote:     "Unaweza kusema ruka kuiacha.",
			NumericHint:      "Taja namba kati ya {min} na {max} {unit}.",
			OptionsHint:      "Unaweza kusema {options}.",
			NoAudio:          "Sikusikia chochote.",
			TranscriptFailed: "Samahani, sikuelewa.",
			ParseFailed:      "Sikupata jibu sahihi.",
			OutOfRange:       "{label} lazima iwe kati ya {min} na {max} {unit}.",
			RequiredSkip:     "{label} ni lazima na haiwezi kurukwa.",
			Confirm:          "Umesema {value} {unit}. Je, ni sahihi? Sema ndiyo au hapana.",
			Completion:       "Asante. Vipimo vyote vimehifadhiwa.",
			Abort:            "Sikuweza kupata {label}. Tafadhali jaza kwa mkono.",
		},
	}
}

// Merge returns p with every non-empty template of override applied.
func (p Prompts) Merge(override Prompts) Prompts {
	out := make(Prompts, len(p))
	for lang, c := range p {
		out[lang] = c
	}
	for lang, o := range override {
		c := out[lang]
		for _, pair := range [][2]*string{
			{&c.Ask, &o.Ask}, {&c.RequiredNote, &o.RequiredNote}, {&c.OptionalNote, &o.OptionalNote},
			{&c.NumericHint, &o.NumericHint}, {&c.OptionsHint, &o.OptionsHint}, {&c.NoAudio, &o.NoAudio},
			{&c.TranscriptFailed, &o.TranscriptFailed}, {&c.ParseFailed, &o.ParseFailed},
			{&c.OutOfRange, &o.OutOfRange}, {&c.RequiredSkip, &o.RequiredSkip}, {&c.Confirm, &o.Confirm},
			{&c.Completion, &o.Completion}, {&c.Abort, &o.Abort},
		} {
			if *pair[1] != "" {
				*pair[0] = *pair[1]
			}
		}
		out[lang] = c
	}
	return out
}

func (p Prompts) catalog(lang types.Language) Catalog {
	if c, ok := p[lang]; ok {
		return c
	}
	return p[types.English]
}

// Announce is spoken at the start of every attempt at f.
func (p Prompts) Announce(f form.Field, lang types.Language) string {
	c := p.catalog(lang)
	parts := []string{c.Ask}
	switch k := f.Kind.(type) {
	case form.Numeric:
		parts = append(parts, c.NumericHint)
	case form.Categorical:
		if len(k.Options) > 0 {
			parts = append(parts, c.OptionsHint)
		}
	}
	if f.Required {
		parts = append(parts, c.RequiredNote)
	} else {
		parts = append(parts, c.OptionalNote)
	}
	return render(strings.Join(parts, " "), f, lang, "")
}

// Retry explains why the previous attempt at f was rejected.
func (p Prompts) Retry(f form.Field, lang types.Language, reason error) string {
	c := p.catalog(lang)
	tmpl := c.ParseFailed
	switch {
	case errors.Is(reason, ErrNoAudio):
		tmpl = c.NoAudio
	case errors.Is(reason, ErrTranscriptionFailed):
		tmpl = c.TranscriptFailed
	case errors.Is(reason, ErrOutOfRange):
		tmpl = c.OutOfRange
	case errors.Is(reason, ErrRequiredSkip):
		tmpl = c.RequiredSkip
	}
	return render(tmpl, f, lang, "")
}

// Confirm reads value back for f.
func (p Prompts) Confirm(f form.Field, lang types.Language, v types.Value) string {
	return render(p.catalog(lang).Confirm, f, lang, v.String())
}

// Completion is spoken once every field has been handled.
func (p Prompts) Completion(lang types.Language) string {
	return p.catalog(lang).Completion
}

// Abort tells the user to complete f by hand.
func (p Prompts) Abort(f form.Field, lang types.Language) string {
	return render(p.catalog(lang).Abort, f, lang, "")
}

func render(tmpl string, f form.Field, lang types.Language, value string) string {
	var minS, maxS, unit, opts string
	switch k := f.Kind.(type) {
	case form.Numeric:
		minS, maxS, unit = strconv.Itoa(k.Min), strconv.Itoa(k.Max), k.Unit
	case form.Categorical:
		opts = joinOptions(k.Options, lang)
	}
	out := strings.NewReplacer(
		"{label}", f.LabelFor(lang),
		"{min}", minS,
		"{max}", maxS,
		"{unit}", unit,
		"{options}", opts,
		"{value}", value,
	).Replace(tmpl)
	// An empty {unit} leaves a space before the punctuation.
	out = strings.ReplaceAll(out, " .", ".")
	return strings.Join(strings.Fields(out), " ")
}

// joinOptions lists options as "a, b or c" ("a, b au c").
func joinOptions(opts []string, lang types.Language) string {
	switch len(opts) {
	case 0:
		return ""
	case 1:
		return opts[0]
	}
	or := "or"
	if lang == types.Swahili {
		or = "au"
	}
	return strings.Join(opts[:len(opts)-1], ", ") + " " + or + " " + opts[len(opts)-1]
}
