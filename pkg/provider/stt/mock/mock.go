// Package mock provides a scripted stt.Provider for unit tests.
//
// Provider replays Responses in order, one per Transcribe call, and records
// every request so tests can assert on what was sent.
//
// Example:
//
//	p := &mock.Provider{Responses: []mock.Response{
//	    {Text: "one hundred twenty"},
//	    {Err: errors.New("timeout")},
//	}}
//	res, err := p.Transcribe(ctx, stt.Request{Audio: wav, Language: types.English})
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/vitalvoice/pkg/provider/stt"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Response is one scripted Transcribe outcome. An empty Text with a nil Err
// yields an error wrapping stt.ErrNoTranscript, the same as a real backend
// returning an empty transcript.
type Response struct {
	Text       string
	Confidence float64
	Err        error

	// Block makes the call wait for ctx to end and return its error.
	Block bool
}

// Call records a single invocation of Provider.Transcribe.
type Call struct {
	// AudioBytes is the length of the WAV payload.
	AudioBytes int
	Language   types.Language
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Responses are consumed one per call.
	Responses []Response

	// Default is returned once Responses is exhausted.
	Default Response

	// Calls records every call to Transcribe.
	Calls []Call
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns the next scripted response.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{AudioBytes: len(req.Audio), Language: req.Language})
	resp := p.Default
	if len(p.Responses) > 0 {
		resp = p.Responses[0]
		p.Responses = p.Responses[1:]
	}
	p.mu.Unlock()

	if resp.Block {
		<-ctx.Done()
		return stt.Result{}, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}
	if resp.Err != nil {
		return stt.Result{}, resp.Err
	}
	if resp.Text == "" {
		return stt.Result{}, fmt.Errorf("mock: %w", stt.ErrNoTranscript)
	}
	return stt.Result{Text: resp.Text, Confidence: resp.Confidence}, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
