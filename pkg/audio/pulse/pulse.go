// Package pulse records answers from and plays prompts to a PulseAudio (or
// PipeWire-Pulse) server.
//
// A [Backend] holds one client connection for its lifetime. Each Record call
// opens a 16 kHz mono record stream on the selected source and closes it
// again before returning, so the microphone is only held while the dialogue
// is listening.
package pulse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/MrWong99/vitalvoice/pkg/audio"
)

const (
	sampleRate     = 16000
	chunkSizeBytes = 640 // 20ms @ 16kHz mono s16
	appName        = "vitalvoice"
)

// Option is a functional option for configuring a [Backend].
type Option func(*Backend)

// WithInput selects the capture source by id or description substring.
// "default" or empty uses the server default.
func WithInput(input string) Option {
	return func(b *Backend) { b.input = input }
}

// WithFallback names the source used when the input is muted or unavailable.
func WithFallback(fallback string) Option {
	return func(b *Backend) { b.fallback = fallback }
}

// WithSilenceThreshold sets the RMS level below which a recording counts as
// no audio. Default: 0 (only empty recordings).
func WithSilenceThreshold(rms float64) Option {
	return func(b *Backend) { b.silence = rms }
}

// Backend implements [audio.Backend] on a Pulse server.
type Backend struct {
	input    string
	fallback string
	silence  float64

	client *pulse.Client
	source *pulse.Source
	device audio.Device

	// mu serialises recording and playback: the dialogue is half duplex.
	mu sync.Mutex
}

var (
	_ audio.Backend      = (*Backend)(nil)
	_ audio.DeviceLister = (*Backend)(nil)
)

// New connects to the Pulse server and resolves the capture source.
func New(opts ...Option) (*Backend, error) {
	b := &Backend{}
	for _, o := range opts {
		o(b)
	}

	client, err := newClient()
	if err != nil {
		return nil, err
	}
	devices, err := listSources(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	sel, err := selectDevice(devices, b.input, b.fallback)
	if err != nil {
		client.Close()
		return nil, err
	}
	if sel.Warning != "" {
		slog.Warn("pulse: "+sel.Warning, "device", sel.Device.ID)
	}
	source, err := client.SourceByID(sel.Device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pulse: resolve source %q: %w", sel.Device.ID, err)
	}

	b.client = client
	b.source = source
	b.device = sel.Device
	slog.Info("pulse: capture source selected", "device", sel.Device.ID, "description", sel.Device.Description)
	return b, nil
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("pulse: connect server: %w", err)
	}
	return client, nil
}

// Device returns the selected capture source.
func (b *Backend) Device() audio.Device { return b.device }

// ListDevices implements [audio.DeviceLister].
func (b *Backend) ListDevices(_ context.Context) ([]audio.Device, error) {
	return listSources(b.client)
}

// Record implements [audio.Recorder]. Capture stops when max elapses, when
// max worth of samples has arrived, or when ctx ends; the record stream is
// closed before Record returns.
func (b *Backend) Record(ctx context.Context, max time.Duration) (audio.Clip, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	limit := int(max.Seconds()*sampleRate) * 2
	var (
		pmu  sync.Mutex
		pcm  []byte
		full = make(chan struct{})
		once sync.Once
	)
	onPCM := func(p []byte) (int, error) {
		pmu.Lock()
		defer pmu.Unlock()
		room := limit - len(pcm)
		if room <= 0 {
			once.Do(func() { close(full) })
			return 0, io.EOF
		}
		pcm = append(pcm, p[:min(len(p), room)]...)
		if len(p) >= room {
			once.Do(func() { close(full) })
		}
		return len(p), nil
	}

	stream, err := b.client.NewRecord(
		pulse.NewWriter(writerFunc(onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(b.source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("vitalvoice answer"),
	)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("pulse: create record stream: %w", err)
	}

	timer := time.NewTimer(max)
	defer timer.Stop()

	stream.Start()
	var ctxErr error
	select {
	case <-ctx.Done():
		ctxErr = ctx.Err()
	case <-timer.C:
	case <-full:
	}
	stream.Stop()
	stream.Close()

	if ctxErr != nil {
		return audio.Clip{}, ctxErr
	}

	pmu.Lock()
	clip := audio.Clip{PCM: slices.Clone(pcm), SampleRate: sampleRate, Channels: 1}
	pmu.Unlock()

	if clip.IsSilent(b.silence) {
		return audio.Clip{}, fmt.Errorf("pulse: record %s from %q: %w", max, b.device.ID, audio.ErrNoAudio)
	}
	return clip, nil
}

// Play implements [audio.Player].
func (b *Backend) Play(ctx context.Context, clip audio.Clip) error {
	return b.play(ctx, bytes.NewReader(clip.PCM), clip.Format())
}

// PlayStream implements [audio.Player].
func (b *Backend) PlayStream(ctx context.Context, chunks <-chan []byte, f audio.Format) error {
	pr, pw := io.Pipe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				pw.CloseWithError(ctx.Err())
				audio.Drain(chunks)
				return
			case c, ok := <-chunks:
				if !ok {
					pw.Close()
					return
				}
				if _, err := pw.Write(c); err != nil {
					audio.Drain(chunks)
					return
				}
			}
		}
	}()
	defer pr.Close()
	return b.play(ctx, pr, f)
}

func (b *Backend) play(ctx context.Context, r io.Reader, f audio.Format) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := []pulse.PlaybackOption{
		pulse.PlaybackSampleRate(f.SampleRate),
		pulse.PlaybackMediaName("vitalvoice prompt"),
	}
	if f.Channels == 2 {
		opts = append(opts, pulse.PlaybackStereo)
	} else {
		opts = append(opts, pulse.PlaybackMono)
	}

	stream, err := b.client.NewPlayback(pulse.NewReader(r, pulseproto.FormatInt16LE), opts...)
	if err != nil {
		return fmt.Errorf("pulse: create playback stream: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		stream.Start()
		stream.Drain()
	}()

	select {
	case <-done:
		err := stream.Error()
		stream.Close()
		if err != nil {
			return fmt.Errorf("pulse: playback: %w", err)
		}
		return nil
	case <-ctx.Done():
		stream.Stop()
		stream.Close()
		return ctx.Err()
	}
}

// Close releases the Pulse connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	return nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
