package tts

import "github.com/MrWong99/vitalvoice/pkg/types"

// VoiceProfile describes the voice prompts are spoken with.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Language is the language the voice is used for. Multilingual backends
	// use it as a pronunciation hint.
	Language types.Language

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default; 0 means
	// default).
	SpeedFactor float64

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

// Fragments returns a closed channel holding parts, ready to pass to
// SynthesizeStream when the whole text is known up front.
func Fragments(parts ...string) <-chan string {
	ch := make(chan string, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return ch
}
