// Package mock provides a test double for the tts.Provider interface.
//
// Provider collects the text of every synthesis request, so dialogue tests
// can assert on what was spoken, and emits controlled audio chunks.
//
// Example:
//
//	p := &mock.Provider{SynthesizeChunks: [][]byte{{0, 0}, {1, 0}}}
//	ch, _ := p.SynthesizeStream(ctx, tts.Fragments("Say your pulse."), voice)
//	// after draining ch: p.Spoken() == []string{"Say your pulse."}
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
)

// SynthesizeStreamCall records a single invocation of SynthesizeStream.
type SynthesizeStreamCall struct {
	// Text is the concatenation of every fragment received.
	Text string
	// Voice is the VoiceProfile passed to SynthesizeStream.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// SynthesizeChunks is the sequence of audio byte slices emitted on the
	// channel returned by SynthesizeStream.
	SynthesizeChunks [][]byte

	// SynthesizeErr, if non-nil, is returned as the error from SynthesizeStream
	// instead of starting a channel.
	SynthesizeErr error

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// OutputFormat is returned by Format. Zero means 16 kHz mono.
	OutputFormat audio.Format

	// SynthesizeStreamCalls records every completed call in order.
	SynthesizeStreamCalls []SynthesizeStreamCall

	// ListVoicesCalls counts ListVoices calls.
	ListVoicesCalls int
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeStream reads text to completion, records it and, if SynthesizeErr
// is nil, emits SynthesizeChunks on the returned channel.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	if err := p.SynthesizeErr; err != nil {
		p.mu.Unlock()
		go audio.Drain(text)
		return nil, err
	}
	chunks := make([][]byte, len(p.SynthesizeChunks))
	copy(chunks, p.SynthesizeChunks)
	p.mu.Unlock()

	ch := make(chan []byte, len(chunks))
	go func() {
		defer close(ch)
		var b strings.Builder
		for fragment := range text {
			b.WriteString(fragment)
		}
		p.mu.Lock()
		p.SynthesizeStreamCalls = append(p.SynthesizeStreamCalls, SynthesizeStreamCall{Text: b.String(), Voice: voice})
		p.mu.Unlock()

		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- chunk:
			}
		}
	}()
	return ch, nil
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListVoicesCalls++
	return p.ListVoicesResult, p.ListVoicesErr
}

// Format implements tts.Provider.
func (p *Provider) Format() audio.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OutputFormat.SampleRate == 0 {
		return audio.Format{SampleRate: 16000, Channels: 1}
	}
	return p.OutputFormat
}

// Spoken returns the text of every completed synthesis call, in order.
func (p *Provider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SynthesizeStreamCalls))
	for i, c := range p.SynthesizeStreamCalls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeStreamCalls = nil
	p.ListVoicesCalls = 0
}
