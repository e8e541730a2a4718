package speech_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/vitalvoice/internal/observe"
	"github.com/MrWong99/vitalvoice/internal/speech"
	"github.com/MrWong99/vitalvoice/pkg/audio"
	audiomock "github.com/MrWong99/vitalvoice/pkg/audio/mock"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
	ttsmock "github.com/MrWong99/vitalvoice/pkg/provider/tts/mock"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestNew_RequiresProviderAndPlayer(t *testing.T) {
	t.Parallel()
	if _, err := speech.New(nil, &audiomock.Player{}); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := speech.New(&ttsmock.Provider{}, nil); err == nil {
		t.Error("expected error for nil player")
	}
}

func TestTTS_SpeakPlaysSynthesisedAudio(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{SynthesizeChunks: [][]byte{{1, 0, 2, 0}, {3, 0}}}
	player := &audiomock.Player{}
	sw := tts.VoiceProfile{ID: "sw-voice", Language: types.Swahili}
	s, err := speech.New(provider, player,
		speech.WithVoice(types.Swahili, sw),
		speech.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Speak(context.Background(), "  Sema mapigo ya moyo.  ", types.Swahili); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if got := provider.Spoken(); len(got) != 1 || got[0] != "Sema mapigo ya moyo." {
		t.Errorf("spoken = %q, want the trimmed prompt", got)
	}
	if got := provider.SynthesizeStreamCalls[0].Voice.ID; got != "sw-voice" {
		t.Errorf("voice = %q, want sw-voice", got)
	}
	clips := player.Clips()
	if len(clips) != 1 {
		t.Fatalf("played %d clips, want 1", len(clips))
	}
	if !bytes.Equal(clips[0].PCM, []byte{1, 0, 2, 0, 3, 0}) {
		t.Errorf("played PCM = %v", clips[0].PCM)
	}
	if clips[0].SampleRate != 16000 || clips[0].Channels != 1 {
		t.Errorf("played format = %d Hz x%d, want provider format", clips[0].SampleRate, clips[0].Channels)
	}
}

func TestTTS_EmptyTextSpeaksNothing(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{}
	player := &audiomock.Player{}
	s, _ := speech.New(provider, player, speech.WithMetrics(testMetrics(t)))

	if err := s.Speak(context.Background(), "   ", types.English); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(provider.Spoken()) != 0 || len(player.Clips()) != 0 {
		t.Error("blank prompt should not reach the provider or player")
	}
}

func TestTTS_VoiceFallsBackToOtherLanguage(t *testing.T) {
	t.Parallel()

	en := tts.VoiceProfile{ID: "en-voice", Language: types.English}
	s, _ := speech.New(&ttsmock.Provider{}, &audiomock.Player{}, speech.WithVoice(types.English, en))

	v := s.Voice(types.Swahili)
	if v.ID != "en-voice" {
		t.Errorf("voice id = %q, want en-voice", v.ID)
	}
	if v.Language != types.Swahili {
		t.Errorf("voice language = %q, want sw hint", v.Language)
	}
}

func TestTTS_ConvertsToOutputFormat(t *testing.T) {
	t.Parallel()

	// 2 mono samples at 24 kHz become 4 stereo bytes per sample.
	provider := &ttsmock.Provider{
		SynthesizeChunks: [][]byte{{1, 0, 2, 0}},
		OutputFormat:     audio.Format{SampleRate: 24000, Channels: 1},
	}
	player := &audiomock.Player{}
	s, _ := speech.New(provider, player,
		speech.WithOutputFormat(audio.Format{SampleRate: 24000, Channels: 2}),
		speech.WithMetrics(testMetrics(t)),
	)

	if err := s.Speak(context.Background(), "Say your pulse.", types.English); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	clips := player.Clips()
	if len(clips) != 1 {
		t.Fatalf("played %d clips, want 1", len(clips))
	}
	if clips[0].Channels != 2 || len(clips[0].PCM) != 8 {
		t.Errorf("played %d channels, %d bytes; want stereo 8 bytes", clips[0].Channels, len(clips[0].PCM))
	}
}

func TestTTS_Errors(t *testing.T) {
	t.Parallel()

	synthErr := errors.New("quota exceeded")
	playErr := errors.New("device gone")

	tests := []struct {
		name     string
		provider *ttsmock.Provider
		player   *audiomock.Player
		want     error
	}{
		{"synthesis", &ttsmock.Provider{SynthesizeErr: synthErr}, &audiomock.Player{}, synthErr},
		{"playback", &ttsmock.Provider{SynthesizeChunks: [][]byte{{0, 0}}}, &audiomock.Player{Err: playErr}, playErr},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, _ := speech.New(tc.provider, tc.player, speech.WithMetrics(testMetrics(t)))
			err := s.Speak(context.Background(), "Say your pulse.", types.English)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTTS_CancelledContext(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{}
	s, _ := speech.New(provider, &audiomock.Player{}, speech.WithMetrics(testMetrics(t)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Speak(ctx, "Say your pulse.", types.English); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(provider.Spoken()) != 0 {
		t.Error("cancelled speak should not synthesise")
	}
}

func TestNopAndPrinter(t *testing.T) {
	t.Parallel()

	if err := (speech.Nop{}).Speak(context.Background(), "anything", types.English); err != nil {
		t.Errorf("Nop.Speak: %v", err)
	}

	var buf bytes.Buffer
	p := &speech.Printer{W: &buf}
	if err := p.Speak(context.Background(), "Sema uzito wako.", types.Swahili); err != nil {
		t.Fatalf("Printer.Speak: %v", err)
	}
	if got, want := buf.String(), "[sw] Sema uzito wako.\n"; got != want {
		t.Errorf("printed %q, want %q", got, want)
	}
}
