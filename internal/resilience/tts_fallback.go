package resilience

import (
	"context"

	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
//
// Backends may emit different PCM formats; every stream is converted to the
// primary's [tts.Provider.Format] so callers see a single format.
type TTSFallback struct {
	group  *FallbackGroup[tts.Provider]
	format audio.Format
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group:  NewFallbackGroup(primary, primaryName, cfg),
		format: primary.Format(),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the backends in the order they are tried.
func (f *TTSFallback) Names() []string { return f.group.Names() }

// Format returns the primary backend's output format.
func (f *TTSFallback) Format() audio.Format { return f.format }

// SynthesizeStream collects the text fragments, then streams them through the
// first healthy provider. Only the initial stream setup is covered by
// failover; mid-stream errors are the caller's responsibility.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	var fragments []string
	for {
		select {
		case <-ctx.Done():
			go audio.Drain(text)
			return nil, ctx.Err()
		case s, ok := <-text:
			if !ok {
				return ExecuteWithResult(f.group, func(p tts.Provider) (<-chan []byte, error) {
					ch, err := p.SynthesizeStream(ctx, replay(fragments), voice)
					if err != nil {
						return nil, err
					}
					return audio.ConvertStream(ch, p.Format(), f.format), nil
				})
			}
			fragments = append(fragments, s)
		}
	}
}

// replay returns a closed channel holding fragments.
func replay(fragments []string) <-chan string {
	ch := make(chan string, len(fragments))
	for _, s := range fragments {
		ch <- s
	}
	close(ch)
	return ch
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
