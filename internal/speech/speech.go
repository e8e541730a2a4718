// Package speech speaks dialogue prompts aloud.
//
// A [Speaker] turns one prompt into audio and blocks until the speaker has
// finished playing it, so the dialogue never listens while it is talking.
// [TTS] streams synthesis from a [tts.Provider] into an [audio.Player];
// [Nop] and [Printer] serve tests and text-only runs.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/vitalvoice/internal/observe"
	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Speaker speaks a prompt in a language. Speak returns once playback has
// drained, when ctx is cancelled (returning ctx.Err()), or on failure.
type Speaker interface {
	Speak(ctx context.Context, text string, lang types.Language) error
}

// Option configures a [TTS] speaker.
type Option func(*TTS)

// WithVoice sets the voice used for lang.
func WithVoice(lang types.Language, voice tts.VoiceProfile) Option {
	return func(s *TTS) { s.voices[lang] = voice }
}

// WithOutputFormat converts synthesised audio to f before playback. Use it
// when the playback device only accepts one format.
func WithOutputFormat(f audio.Format) Option {
	return func(s *TTS) { s.output = f }
}

// WithMetrics records speak latency on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *TTS) { s.metrics = m }
}

// WithProviderName labels provider metrics. Default: "tts".
func WithProviderName(name string) Option {
	return func(s *TTS) { s.name = name }
}

// TTS is a [Speaker] backed by a streaming TTS provider.
type TTS struct {
	provider tts.Provider
	player   audio.Player
	voices   map[types.Language]tts.VoiceProfile
	output   audio.Format
	metrics  *observe.Metrics
	name     string
}

var _ Speaker = (*TTS)(nil)

// New returns a TTS speaker. provider and player are required.
func New(provider tts.Provider, player audio.Player, opts ...Option) (*TTS, error) {
	if provider == nil {
		return nil, errors.New("speech: provider must not be nil")
	}
	if player == nil {
		return nil, errors.New("speech: player must not be nil")
	}
	s := &TTS{
		provider: provider,
		player:   player,
		voices:   make(map[types.Language]tts.VoiceProfile),
		name:     "tts",
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Voice returns the voice configured for lang. A language without its own
// voice borrows the other language's voice and keeps lang as the hint.
func (s *TTS) Voice(lang types.Language) tts.VoiceProfile {
	if v, ok := s.voices[lang]; ok {
		return v
	}
	v := s.voices[lang.Other()]
	v.Language = lang
	return v
}

// Speak implements [Speaker].
func (s *TTS) Speak(ctx context.Context, text string, lang types.Language) (err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := observe.StartSpan(ctx, "speech.speak")
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	voice := s.Voice(lang)
	chunks, err := s.provider.SynthesizeStream(ctx, tts.Fragments(text), voice)
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.name, "tts", "error")
		s.metrics.RecordProviderError(ctx, s.name, "tts")
		return fmt.Errorf("speech: synthesize: %w", err)
	}

	format := s.provider.Format()
	if s.output.SampleRate != 0 && s.output != format {
		chunks = audio.ConvertStream(chunks, format, s.output)
		format = s.output
	}

	if err := s.player.PlayStream(ctx, chunks, format); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.metrics.RecordProviderRequest(ctx, s.name, "tts", "error")
		return fmt.Errorf("speech: play: %w", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.name, "tts", "ok")
	observe.ObserveSince(ctx, s.metrics.TTSDuration, start, observe.Attr("provider", s.name))
	observe.Logger(ctx).Debug("speech: prompt spoken", "language", lang, "voice", voice.ID, "elapsed", time.Since(start))
	return ctx.Err()
}

// Nop speaks nothing.
type Nop struct{}

// Speak implements [Speaker].
func (Nop) Speak(ctx context.Context, _ string, _ types.Language) error { return ctx.Err() }

// Printer writes each prompt as a line to W. It backs text-only runs where
// the operator reads prompts from the terminal.
type Printer struct {
	mu sync.Mutex
	W  io.Writer
}

// Speak implements [Speaker].
func (p *Printer) Speak(ctx context.Context, text string, lang types.Language) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.W, "[%s] %s\n", lang, text)
	return err
}
