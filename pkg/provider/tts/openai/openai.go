// Package openai provides a TTS provider backed by the OpenAI speech API.
//
// The whole prompt is collected from the text channel and sent as one
// request with the "pcm" response format (24 kHz mono s16le); the response
// body is streamed to the caller as it arrives.
package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
)

// DefaultModel is the default OpenAI speech model.
const DefaultModel = oai.SpeechModelTTS1

// pcmRate is the fixed sample rate of the "pcm" response format.
const pcmRate = 24000

const chunkSize = 4096

// builtinVoices are the voices the speech endpoint accepts.
var builtinVoices = []string{"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI TTS Provider.
// If model is empty, DefaultModel (tts-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() audio.Format {
	return audio.Format{SampleRate: pcmRate, Channels: 1}
}

// ListVoices implements tts.Provider. The catalogue is fixed.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	voices := make([]tts.VoiceProfile, 0, len(builtinVoices))
	for _, v := range builtinVoices {
		voices = append(voices, tts.VoiceProfile{
			ID:       v,
			Name:     v,
			Provider: "openai",
			Metadata: map[string]string{"model": p.model},
		})
	}
	return voices, nil
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("openai tts: voice.ID must not be empty")
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)

		input, ok := collect(ctx, text)
		if !ok || input == "" {
			return
		}

		params := oai.AudioSpeechNewParams{
			Input:          input,
			Model:          p.model,
			Voice:          oai.AudioSpeechNewParamsVoice(voice.ID),
			ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
		}
		if voice.SpeedFactor > 0 {
			params.Speed = oai.Float(min(max(voice.SpeedFactor, 0.25), 4.0))
		}
		resp, err := p.client.Audio.Speech.New(ctx, params)
		if err != nil {
			slog.Warn("openai tts: synthesize", "err", err)
			return
		}
		defer resp.Body.Close()
		streamBody(ctx, resp.Body, out)
	}()
	return out, nil
}

// collect joins all fragments from text. It reports false when ctx ends
// first.
func collect(ctx context.Context, text <-chan string) (string, bool) {
	var b strings.Builder
	for {
		select {
		case fragment, ok := <-text:
			if !ok {
				return strings.TrimSpace(b.String()), true
			}
			if b.Len() > 0 && fragment != "" {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(fragment))
		case <-ctx.Done():
			return "", false
		}
	}
}

// streamBody copies r to out in sample-aligned chunks.
func streamBody(ctx context.Context, r io.Reader, out chan<- []byte) {
	buf := make([]byte, chunkSize)
	var carry []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			even := len(data) &^ 1
			chunk := append([]byte(nil), data[:even]...)
			carry = append([]byte(nil), data[even:]...)
			if len(chunk) > 0 {
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				slog.Warn("openai tts: read body", "err", err)
			}
			return
		}
	}
}
