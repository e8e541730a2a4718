package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/provider/stt"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

func TestBuildURL(t *testing.T) {
	t.Parallel()

	p, err := New("test-key", WithModel("base"), WithLanguage(types.Swahili),
		WithKeywords(Keyword{Word: "thelathini", Boost: 2}, Keyword{Word: "hamsini", Boost: 1.5}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name     string
		lang     types.Language
		format   audio.Format
		wantLang string
		wantCh   string
	}{
		{name: "provider default language", format: audio.TranscriptionFormat, wantLang: "sw", wantCh: "1"},
		{name: "request language wins", lang: types.English, format: audio.Format{SampleRate: 48000, Channels: 2}, wantLang: "en", wantCh: "2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw, err := p.buildURL(tc.lang, tc.format)
			if err != nil {
				t.Fatalf("buildURL: %v", err)
			}
			u, err := url.Parse(raw)
			if err != nil {
				t.Fatalf("parse URL: %v", err)
			}
			q := u.Query()
			want := map[string]string{
				"model":    "base",
				"language": tc.wantLang,
				"encoding": "linear16",
				"channels": tc.wantCh,
				"numerals": "false",
			}
			for k, v := range want {
				if got := q.Get(k); got != v {
					t.Errorf("%s = %q, want %q", k, got, v)
				}
			}
			if got := q.Get("sample_rate"); got != map[int]string{16000: "16000", 48000: "48000"}[tc.format.SampleRate] {
				t.Errorf("sample_rate = %q", got)
			}
			kws := q["keywords"]
			if len(kws) != 2 || kws[0] != "thelathini:2" || kws[1] != "hamsini:1.5" {
				t.Errorf("keywords = %v", kws)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel || p.language != types.English || p.endpoint != deepgramEndpoint {
		t.Errorf("defaults = %q %q %q", p.model, p.language, p.endpoint)
	}
}

func TestParseDeepgramResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		ok   bool
		want result
	}{
		{
			name: "final",
			msg:  `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":" fifty five ","confidence":0.92}]}}`,
			ok:   true,
			want: result{text: "fifty five", confidence: 0.92, final: true},
		},
		{
			name: "interim",
			msg:  `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"fifty","confidence":0.5}]}}`,
			ok:   true,
			want: result{text: "fifty", confidence: 0.5},
		},
		{name: "metadata", msg: `{"type":"Metadata"}`, ok: true, want: result{final: true, done: true}},
		{name: "speech started", msg: `{"type":"SpeechStarted"}`},
		{name: "no alternatives", msg: `{"type":"Results","channel":{"alternatives":[]}}`},
		{name: "invalid json", msg: `{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseDeepgramResponse([]byte(tc.msg))
			if ok != tc.ok || got != tc.want {
				t.Errorf("parse = %+v, %v; want %+v, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

// fakeDeepgram accepts one live connection, counts the audio bytes until
// CloseStream and then replays replies before closing normally.
func fakeDeepgram(t *testing.T, replies []string) (endpoint string, received func() (int, http.Header)) {
	t.Helper()
	var (
		mu      sync.Mutex
		n       int
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = r.Header.Clone()
		mu.Unlock()
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		for {
			typ, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && strings.Contains(string(msg), "CloseStream") {
				break
			}
			mu.Lock()
			n += len(msg)
			mu.Unlock()
		}
		for _, reply := range replies {
			if err := conn.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), func() (int, http.Header) {
		mu.Lock()
		defer mu.Unlock()
		return n, headers
	}
}

func TestTranscribe_JoinsFinals(t *testing.T) {
	t.Parallel()

	endpoint, received := fakeDeepgram(t, []string{
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"one","confidence":0.4}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"one hundred","confidence":0.8}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"and ten","confidence":0.6}]}}`,
		`{"type":"Metadata"}`,
	})
	p, _ := New("secret", WithEndpoint(endpoint))

	clip := audio.Clip{PCM: make([]byte, 16000), SampleRate: 16000, Channels: 1}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := p.Transcribe(ctx, stt.Request{Audio: audio.EncodeWAV(clip), Language: types.English})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "one hundred and ten" {
		t.Errorf("Text = %q, want %q", res.Text, "one hundred and ten")
	}
	if res.Confidence < 0.69 || res.Confidence > 0.71 {
		t.Errorf("Confidence = %f, want mean of finals 0.7", res.Confidence)
	}
	n, headers := received()
	if n != len(clip.PCM) {
		t.Errorf("server received %d audio bytes, want %d", n, len(clip.PCM))
	}
	if got := headers.Get("Authorization"); got != "Token secret" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestTranscribe_NoFinals(t *testing.T) {
	t.Parallel()

	endpoint, _ := fakeDeepgram(t, []string{`{"type":"Metadata"}`})
	p, _ := New("secret", WithEndpoint(endpoint))
	clip := audio.Clip{PCM: make([]byte, 640), SampleRate: 16000, Channels: 1}
	_, err := p.Transcribe(context.Background(), stt.Request{Audio: audio.EncodeWAV(clip)})
	if !errors.Is(err, stt.ErrNoTranscript) {
		t.Errorf("err = %v, want ErrNoTranscript", err)
	}
}

func TestTranscribe_BadAudio(t *testing.T) {
	t.Parallel()

	p, _ := New("secret", WithEndpoint("ws://127.0.0.1:1"))
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("nope")}); err == nil {
		t.Error("expected decode error")
	}
	empty := audio.EncodeWAV(audio.Clip{SampleRate: 16000, Channels: 1})
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: empty}); err == nil {
		t.Error("expected empty audio error")
	}
}

func TestTranscribe_DialFailure(t *testing.T) {
	t.Parallel()

	p, _ := New("secret", WithEndpoint("ws://127.0.0.1:1"))
	clip := audio.Clip{PCM: make([]byte, 640), SampleRate: 16000, Channels: 1}
	_, err := p.Transcribe(context.Background(), stt.Request{Audio: audio.EncodeWAV(clip)})
	if err == nil || !strings.Contains(err.Error(), "dial") {
		t.Errorf("err = %v, want dial error", err)
	}
}
