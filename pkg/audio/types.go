package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Clip is a bounded piece of 16-bit little-endian PCM audio, captured from a
// microphone or synthesised for playback.
type Clip struct {
	// PCM holds interleaved int16 samples.
	PCM []byte

	// SampleRate in Hz (16000 for transcription input).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// Format returns the clip's sample rate and channel count.
func (c Clip) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Empty reports whether the clip holds no complete sample.
func (c Clip) Empty() bool { return len(c.PCM) < 2 }

// Duration is the playback length of the clip.
func (c Clip) Duration() time.Duration {
	bytesPerSecond := c.SampleRate * max(c.Channels, 1) * 2
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(bytesPerSecond)
}

// RMS returns the root-mean-square energy of the clip in sample units
// (0 to 32767). It is 0 for an empty clip.
func (c Clip) RMS() float64 {
	n := len(c.PCM) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(c.PCM[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// IsSilent reports whether the clip is empty or its RMS energy is below
// threshold. A threshold of 0 only treats empty clips as silent.
func (c Clip) IsSilent(threshold float64) bool {
	if c.Empty() {
		return true
	}
	return threshold > 0 && c.RMS() < threshold
}

// Samples returns the clip as mono float32 in [-1, 1], averaging channels per
// frame. A trailing partial frame is dropped. Sample rate is left as is; run
// a [FormatConverter] first when the consumer needs a fixed rate.
func (c Clip) Samples() []float32 {
	channels := max(c.Channels, 1)
	frames := len(c.PCM) / (2 * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			off := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(c.PCM[off:]))) / 32768
		}
		out[i] = sum / float32(channels)
	}
	return out
}
