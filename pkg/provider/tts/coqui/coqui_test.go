package coqui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

func drainAudio(ch <-chan []byte) []byte {
	var out []byte
	for c := range ch {
		out = append(out, c...)
	}
	return out
}

// wavOf returns a WAV holding n samples of value v at rate.
func wavOf(n int, v byte, rate int) []byte {
	pcm := make([]byte, n*2)
	for i := range pcm {
		pcm[i] = v
	}
	return audio.EncodeWAV(audio.Clip{PCM: pcm, SampleRate: rate, Channels: 1})
}

func mustNew(t *testing.T, serverURL string, opts ...Option) *Provider {
	t.Helper()
	p, err := New(serverURL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty server URL")
	}
	if _, err := New("http://x", WithAPIMode("bogus")); err == nil {
		t.Error("expected error for unknown api mode")
	}
	p := mustNew(t, "http://localhost:5002/", WithOutputSampleRate(-1))
	if p.serverURL != "http://localhost:5002" || p.apiMode != APIModeStandard || p.language != types.English {
		t.Errorf("defaults = %q %q %q", p.serverURL, p.apiMode, p.language)
	}
	if f := p.Format(); f != (audio.Format{SampleRate: 16000, Channels: 1}) {
		t.Errorf("Format = %+v", f)
	}
	if f := mustNew(t, "http://x", WithOutputSampleRate(24000)).Format(); f.SampleRate != 24000 {
		t.Errorf("Format = %+v", f)
	}
}

func TestSynthesizeStream_XTTS(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		reqs []ttsRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ttsEndpoint {
			http.NotFound(w, r)
			return
		}
		var body ttsRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		reqs = append(reqs, body)
		mu.Unlock()
		// Later sentences answer faster; order must still be preserved.
		if strings.HasPrefix(body.Text, "Sema") {
			time.Sleep(50 * time.Millisecond)
			_, _ = w.Write(wavOf(4, 1, 16000))
			return
		}
		_, _ = w.Write(wavOf(4, 2, 16000))
	}))
	t.Cleanup(srv.Close)

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS))
	if _, err := p.SynthesizeStream(context.Background(), tts.Fragments("x"), tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice in XTTS mode")
	}

	ch, err := p.SynthesizeStream(context.Background(),
		tts.Fragments("Sema sukari ", "yako. Asante"),
		tts.VoiceProfile{ID: "zawadi.wav", Language: types.Swahili})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	pcm := drainAudio(ch)
	want := "\x01\x01\x01\x01\x01\x01\x01\x01\x02\x02\x02\x02\x02\x02\x02\x02"
	if string(pcm) != want {
		t.Errorf("pcm = %v, want sentence order preserved", pcm)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	for _, r := range reqs {
		if r.SpeakerWav != "zawadi.wav" || r.Language != "sw" {
			t.Errorf("request = %+v", r)
		}
	}
}

func TestSynthesizeStream_StandardResamples(t *testing.T) {
	t.Parallel()

	var gotQuery sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiTTSEndpoint {
			http.NotFound(w, r)
			return
		}
		for k, v := range r.URL.Query() {
			gotQuery.Store(k, v[0])
		}
		// 100 ms at 22050 Hz.
		_, _ = w.Write(wavOf(2205, 0, 22050))
	}))
	t.Cleanup(srv.Close)

	p := mustNew(t, srv.URL)
	ch, err := p.SynthesizeStream(context.Background(), tts.Fragments("Say your pulse"), tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if got := len(drainAudio(ch)); got != 1600*2 {
		t.Errorf("pcm bytes = %d, want 100 ms at 16 kHz (3200)", got)
	}
	if v, _ := gotQuery.Load("text"); v != "Say your pulse" {
		t.Errorf("text = %v", v)
	}
	if v, _ := gotQuery.Load("language_id"); v != "en" {
		t.Errorf("language_id = %v", v)
	}
	if _, ok := gotQuery.Load("speaker_id"); ok {
		t.Error("speaker_id should be omitted without a voice ID")
	}
}

func TestSynthesizeStream_ServerErrorClosesChannel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	p := mustNew(t, srv.URL)
	ch, err := p.SynthesizeStream(context.Background(), tts.Fragments("One. Two."), tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if pcm := drainAudio(ch); len(pcm) != 0 {
		t.Errorf("pcm = %d bytes, want none", len(pcm))
	}
}

func TestSynthesizeStream_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	p := mustNew(t, srv.URL)
	text := make(chan string)
	ch, err := p.SynthesizeStream(ctx, text, tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	text <- "Hello there. "
	cancel()

	done := make(chan struct{})
	go func() {
		drainAudio(ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audio channel not closed after cancellation")
	}
}

func TestFindSentenceBoundary(t *testing.T) {
	t.Parallel()
	tests := map[string]int{
		"":                  -1,
		"no boundary":       -1,
		"Done.":             4,
		"Really? yes":       6,
		"Reading is 3.5 ok": -1,
		"Dr.X said hi!":     12,
	}
	for in, want := range tests {
		if got := findSentenceBoundary(in); got != want {
			t.Errorf("findSentenceBoundary(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	out := make(chan string, 8)
	splitSentences(context.Background(), tts.Fragments("Please say ", "your reading. Say", " skip to skip!   ", "Thanks"), out)
	var got []string
	for s := range out {
		got = append(got, s)
	}
	want := []string{"Please say your reading.", "Say skip to skip!", "Thanks"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sentences = %q, want %q", got, want)
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case studioSpeakersEndpoint:
			_, _ = w.Write([]byte(`{"Zawadi":{},"Ana":{}}`))
		case detailsEndpoint:
			if r.URL.Query().Get("single") != "" {
				_, _ = w.Write([]byte(`{"model_name":"tts_models/sw/cv/vits"}`))
				return
			}
			_, _ = w.Write([]byte(`{"model_name":"vctk","speakers":["p2","p1"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	xtts, err := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS)).ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices xtts: %v", err)
	}
	if len(xtts) != 2 || xtts[0].ID != "Ana" || xtts[0].Metadata["type"] != "studio" {
		t.Errorf("xtts voices = %+v", xtts)
	}

	std, err := mustNew(t, srv.URL).ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices standard: %v", err)
	}
	if len(std) != 2 || std[0].ID != "p1" || std[0].Metadata["model_name"] != "vctk" {
		t.Errorf("standard voices = %+v", std)
	}

	single := detailsResponse{ModelName: "tts_models/sw/cv/vits"}.profiles()
	if len(single) != 1 || single[0].Metadata["type"] != "single-speaker" {
		t.Errorf("single-speaker voices = %+v", single)
	}
	if anon := (detailsResponse{}).profiles(); anon[0].ID != "default" {
		t.Errorf("anonymous model voice = %+v", anon)
	}
}

func TestListVoices_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	if _, err := mustNew(t, srv.URL).ListVoices(context.Background()); err == nil {
		t.Error("expected error")
	}
}
