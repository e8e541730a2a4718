package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

func TestBuildWSMessage(t *testing.T) {
	t.Parallel()

	data, err := buildWSMessage("Please say your glucose reading ", &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75, Speed: 0.9})
	if err != nil {
		t.Fatalf("buildWSMessage: %v", err)
	}
	var msg textMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.VoiceSettings == nil || msg.VoiceSettings.Speed != 0.9 {
		t.Errorf("voice settings = %+v", msg.VoiceSettings)
	}

	// ElevenLabs flush = {"text":""} with no other fields.
	flush, _ := buildWSMessage("", nil)
	if string(flush) != `{"text":""}` {
		t.Errorf("flush = %s", flush)
	}
}

func TestPcmRate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		rate int
		ok   bool
	}{
		{"pcm_16000", 16000, true},
		{"pcm_24000", 24000, true},
		{"mp3_44100_128", 0, false},
		{"pcm_", 0, false},
		{"pcm_-1", 0, false},
	}
	for _, tc := range tests {
		rate, ok := pcmRate(tc.in)
		if rate != tc.rate || ok != tc.ok {
			t.Errorf("pcmRate(%q) = %d, %v; want %d, %v", tc.in, rate, ok, tc.rate, tc.ok)
		}
	}
}

func TestFormatAndOptions(t *testing.T) {
	t.Parallel()

	p, err := New("key", WithOutputFormat("pcm_24000"), WithOutputFormat("mp3_44100_128"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f := p.Format(); f.SampleRate != 24000 || f.Channels != 1 {
		t.Errorf("Format = %+v, want 24000 mono (mp3 ignored)", f)
	}
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestStreamURL(t *testing.T) {
	t.Parallel()

	p, _ := New("key", WithModel("eleven_flash_v2_5"))
	raw := p.streamURL(tts.VoiceProfile{ID: "voice/abc", Language: types.Swahili})
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "wss" || !strings.Contains(u.EscapedPath(), "voice%2Fabc/stream-input") {
		t.Errorf("url = %s", raw)
	}
	q := u.Query()
	if q.Get("model_id") != "eleven_flash_v2_5" || q.Get("output_format") != "pcm_16000" || q.Get("language_code") != "sw" {
		t.Errorf("query = %v", q)
	}
}

func TestSettingsFor(t *testing.T) {
	t.Parallel()
	for speed, want := range map[float64]float64{0: 0, 0.5: 0.7, 0.9: 0.9, 2: 1.2} {
		if got := settingsFor(tts.VoiceProfile{SpeedFactor: speed}).Speed; got != want {
			t.Errorf("speed %v -> %v, want %v", speed, got, want)
		}
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" || r.Header.Get("xi-api-key") != "key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"voices":[
			{"voice_id":"abc","name":"Rachel","category":"premade","labels":{"accent":"american"}},
			{"voice_id":"def","name":"Zawadi","labels":{}}
		]}`))
	}))
	t.Cleanup(srv.Close)

	p, _ := New("key", WithBaseURLs("ws://unused", srv.URL+"/v1/"))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("voices = %d, want 2", len(voices))
	}
	if v := voices[0]; v.ID != "abc" || v.Provider != "elevenlabs" || v.Metadata["category"] != "premade" || v.Metadata["accent"] != "american" {
		t.Errorf("voice[0] = %+v", v)
	}
	if _, ok := voices[1].Metadata["category"]; ok {
		t.Error("empty category should not be recorded")
	}

	bad, _ := New("wrong", WithBaseURLs("ws://unused", srv.URL+"/v1"))
	if _, err := bad.ListVoices(context.Background()); err == nil {
		t.Error("expected error on 403")
	}
}

func TestSynthesizeStream(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var m map[string]any
			_ = json.Unmarshal(msg, &m)
			text, _ := m["text"].(string)
			mu.Lock()
			received = append(received, text)
			mu.Unlock()
			if text == "" {
				break
			}
		}
		for _, chunk := range []string{"\x01\x02", "\x03\x04"} {
			b, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString([]byte(chunk))})
			_ = conn.Write(ctx, websocket.MessageText, b)
		}
		b, _ := json.Marshal(audioResponse{IsFinal: true})
		_ = conn.Write(ctx, websocket.MessageText, b)
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)

	p, _ := New("key", WithBaseURLs("ws"+strings.TrimPrefix(srv.URL, "http"), srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := p.SynthesizeStream(ctx, tts.Fragments("x"), tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice ID")
	}

	ch, err := p.SynthesizeStream(ctx, tts.Fragments("Say your", "  ", "pulse"), tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var pcm []byte
	for c := range ch {
		pcm = append(pcm, c...)
	}
	if string(pcm) != "\x01\x02\x03\x04" {
		t.Errorf("pcm = %v", pcm)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{" ", "Say your ", "pulse ", ""}
	if len(received) != len(want) {
		t.Fatalf("received %q, want %q", received, want)
	}
	for i := range want {
		if received[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, received[i], want[i])
		}
	}
}
