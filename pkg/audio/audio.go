// Package audio defines how vitalvoice captures and plays speech.
//
// The two primary abstractions are:
//
//   - [Recorder] records one bounded clip from a microphone.
//   - [Player] plays a clip or a stream of PCM chunks and returns once
//     playback has finished.
//
// Both are blocking calls: a dialogue turn reads as speak, then record, then
// transcribe, and never overlaps the three. Device-specific implementations
// live in sub-packages (audio/pulse); audio/mock provides scripted versions
// for tests.
//
// The package also holds the PCM helpers shared by providers: WAV encoding
// for upload and sample-rate/channel conversion.
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrNoAudio is returned by a [Recorder] when nothing, or only silence, was
// captured before the cap elapsed.
var ErrNoAudio = errors.New("audio: no audio captured")

// Recorder captures a single utterance.
//
// Implementations must treat max as a hard wall-clock cap: when it elapses,
// or ctx is cancelled, the device is stopped and released and whatever was
// captured so far is returned. If nothing usable was captured the error wraps
// [ErrNoAudio]. On ctx cancellation the ctx error is returned instead.
type Recorder interface {
	Record(ctx context.Context, max time.Duration) (Clip, error)
}

// Player renders audio to a speaker.
//
// Play and PlayStream block until playback has drained or ctx is cancelled.
// PlayStream consumes chunks of PCM in format f until the channel is closed.
type Player interface {
	Play(ctx context.Context, clip Clip) error
	PlayStream(ctx context.Context, chunks <-chan []byte, f Format) error
}

// Device describes one input or output device offered by the host.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// DeviceLister enumerates the host's input devices.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]Device, error)
}

// Backend bundles what the dialogue needs from an audio host.
type Backend interface {
	Recorder
	Player
	Close() error
}
