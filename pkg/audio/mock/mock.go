// Package mock provides scripted implementations of [audio.Recorder] and
// [audio.Player] for unit tests.
//
// All mocks are safe for concurrent use. They record every call so tests can
// assert on counts and arguments, and expose exported fields that control
// return values.
//
// Typical usage:
//
//	rec := &mock.Recorder{Results: []mock.RecordResult{
//	    {Clip: mock.Tone(time.Second)},
//	    {Err: audio.ErrNoAudio},
//	}}
//	clip, err := rec.Record(ctx, 5*time.Second)
package mock

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/MrWong99/vitalvoice/pkg/audio"
)

// RecordResult is one scripted outcome of [Recorder.Record].
type RecordResult struct {
	Clip audio.Clip
	Err  error

	// Block makes the call wait for ctx to be cancelled before returning
	// ctx.Err(), simulating a recording interrupted by cancellation.
	Block bool
}

// Recorder is a mock [audio.Recorder] that replays Results in order. Once
// Results is exhausted, Record returns a one-second tone so a dialogue never
// runs out of input.
type Recorder struct {
	mu sync.Mutex

	// Results are consumed one per Record call.
	Results []RecordResult

	// Caps records the max argument of every Record call.
	Caps []time.Duration

	// OnRecord, if set, is invoked at the start of every call with the
	// zero-based call index.
	OnRecord func(call int)
}

var _ audio.Recorder = (*Recorder)(nil)

// Record implements [audio.Recorder].
func (r *Recorder) Record(ctx context.Context, max time.Duration) (audio.Clip, error) {
	r.mu.Lock()
	call := len(r.Caps)
	r.Caps = append(r.Caps, max)
	res := RecordResult{Clip: Tone(time.Second)}
	if len(r.Results) > 0 {
		res = r.Results[0]
		r.Results = r.Results[1:]
	}
	hook := r.OnRecord
	r.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return audio.Clip{}, err
	}
	if res.Block {
		<-ctx.Done()
		return audio.Clip{}, ctx.Err()
	}
	return res.Clip, res.Err
}

// Calls returns how many times Record was called.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Caps)
}

// Player is a mock [audio.Player] that collects everything it is asked to
// play.
type Player struct {
	mu sync.Mutex

	// Err is returned by every Play and PlayStream call.
	Err error

	// Played holds every clip passed to Play and every drained stream, in
	// call order.
	Played []audio.Clip
}

var _ audio.Player = (*Player)(nil)

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Played = append(p.Played, clip)
	return p.Err
}

// PlayStream implements [audio.Player]. It drains chunks into one clip.
func (p *Player) PlayStream(ctx context.Context, chunks <-chan []byte, f audio.Format) error {
	clip := audio.Clip{SampleRate: f.SampleRate, Channels: f.Channels}
	for {
		select {
		case <-ctx.Done():
			go audio.Drain(chunks)
			return ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				return p.Play(ctx, clip)
			}
			clip.PCM = append(clip.PCM, c...)
		}
	}
}

// Clips returns a copy of everything played so far.
func (p *Player) Clips() []audio.Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audio.Clip, len(p.Played))
	copy(out, p.Played)
	return out
}

// Backend combines a Recorder and a Player into an [audio.Backend].
type Backend struct {
	*Recorder
	*Player

	mu     sync.Mutex
	closed int
}

var _ audio.Backend = (*Backend)(nil)

// NewBackend returns a Backend with empty scripts.
func NewBackend() *Backend {
	return &Backend{Recorder: &Recorder{}, Player: &Player{}}
}

// Close implements [audio.Backend].
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

// CloseCalls returns how many times Close was called.
func (b *Backend) CloseCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Tone returns a loud 16 kHz mono square wave of length d, well above any
// silence threshold.
func Tone(d time.Duration) audio.Clip {
	n := int(d.Seconds() * 16000)
	pcm := make([]byte, n*2)
	for i := range n {
		v := int16(8000)
		if (i/20)%2 == 1 {
			v = -8000
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return audio.Clip{PCM: pcm, SampleRate: 16000, Channels: 1}
}
