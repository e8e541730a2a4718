// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
//
// Each Transcribe call opens one live connection, streams the clip as raw
// linear16 audio, asks Deepgram to flush with a CloseStream message and
// joins every final result it receives until the server closes the socket.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/provider/stt"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-2"
	defaultLanguage  = types.English

	// chunkBytes is 100 ms of 16 kHz mono s16 audio.
	chunkBytes = 3200
)

// Keyword is a recognition hint, e.g. a number word that accented speakers
// tend to get mistranscribed.
type Keyword struct {
	Word  string
	Boost float64
}

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-2", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language used when a request does not carry one.
func WithLanguage(language types.Language) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithKeywords sets keyword boosts sent with every request.
func WithKeywords(kws ...Keyword) Option {
	return func(p *Provider) {
		p.keywords = append(p.keywords, kws...)
	}
}

// WithEndpoint overrides the WebSocket endpoint (tests, self-hosted).
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	endpoint string
	model    string
	language types.Language
	keywords []Keyword
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		endpoint: deepgramEndpoint,
		model:    defaultModel,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Result, error) {
	clip, err := audio.DecodeWAV(req.Audio)
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: decode audio: %w", err)
	}
	if clip.Empty() {
		return stt.Result{}, errors.New("deepgram: empty audio")
	}

	wsURL, err := p.buildURL(req.Language, clip.Format())
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	// The reader runs concurrently so Deepgram never stalls on a full send
	// window while we are still writing audio.
	type readResult struct {
		res stt.Result
		err error
	}
	done := make(chan readResult, 1)
	go func() {
		res, err := collectFinals(ctx, conn)
		done <- readResult{res, err}
	}()

	if err := sendClip(ctx, conn, clip.PCM); err != nil {
		return stt.Result{}, err
	}

	r := <-done
	if r.err != nil {
		return stt.Result{}, r.err
	}
	conn.Close(websocket.StatusNormalClosure, "transcription complete")
	return r.res, nil
}

// sendClip streams pcm in chunks and then asks Deepgram to flush.
func sendClip(ctx context.Context, conn *websocket.Conn, pcm []byte) error {
	for start := 0; start < len(pcm); start += chunkBytes {
		end := min(start+chunkBytes, len(pcm))
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[start:end]); err != nil {
			return fmt.Errorf("deepgram: send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("deepgram: close stream: %w", err)
	}
	return nil
}

// collectFinals reads results until the server closes the connection and
// joins the final transcripts in arrival order.
func collectFinals(ctx context.Context, conn *websocket.Conn) (stt.Result, error) {
	var (
		parts []string
		conf  float64
	)
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return stt.Result{}, fmt.Errorf("deepgram: %w", ctx.Err())
			}
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && len(parts) == 0 {
				return stt.Result{}, fmt.Errorf("deepgram: read: %w", err)
			}
			break
		}

		r, ok := parseDeepgramResponse(msg)
		if !ok {
			continue
		}
		if r.final {
			if r.done {
				break
			}
			if r.text != "" {
				parts = append(parts, r.text)
				conf += r.confidence
			}
		}
	}

	if len(parts) == 0 {
		return stt.Result{}, fmt.Errorf("deepgram: %w", stt.ErrNoTranscript)
	}
	return stt.Result{
		Text:       strings.Join(parts, " "),
		Confidence: conf / float64(len(parts)),
	}, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for one request.
func (p *Provider) buildURL(lang types.Language, f audio.Format) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", string(lang))
	q.Set("punctuate", "false")
	q.Set("numerals", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(f.SampleRate))
	q.Set("channels", strconv.Itoa(max(f.Channels, 1)))

	for _, kw := range p.keywords {
		// Deepgram keyword format: word:boost (e.g., "thelathini:2")
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Word, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results
// or Metadata event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// result is one parsed server message.
type result struct {
	text       string
	confidence float64
	final      bool

	// done marks the Metadata message Deepgram sends after flushing.
	done bool
}

// parseDeepgramResponse parses a raw Deepgram WebSocket message. It returns
// false for messages that should be ignored.
func parseDeepgramResponse(data []byte) (result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, false
	}
	switch resp.Type {
	case "Metadata":
		return result{final: true, done: true}, true
	case "Results":
	default:
		return result{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return result{}, false
	}
	alt := resp.Channel.Alternatives[0]
	return result{
		text:       strings.TrimSpace(alt.Transcript),
		confidence: alt.Confidence,
		final:      resp.IsFinal,
	}, true
}
