package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
)

// EncodeWAV wraps clip in a minimal RIFF/WAVE container (PCM, 16-bit). The
// result is suitable for direct multipart upload.
func EncodeWAV(clip Clip) []byte {
	channels := max(clip.Channels, 1)
	byteRate := clip.SampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(clip.PCM)

	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(clip.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], clip.PCM)

	return buf
}

// DecodeWAV parses a PCM16 RIFF/WAVE file. Chunks other than "fmt " and
// "data" are skipped.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, errors.New("audio: not a RIFF/WAVE file")
	}

	var (
		clip   Clip
		gotFmt bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// Streaming encoders write a placeholder size for the data chunk.
			if id != "data" {
				return Clip{}, fmt.Errorf("audio: wav chunk %q truncated", id)
			}
			end = len(data)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, errors.New("audio: wav fmt chunk too short")
			}
			if format := binary.LittleEndian.Uint16(data[body:]); format != 1 {
				return Clip{}, fmt.Errorf("audio: unsupported wav format %d (want PCM)", format)
			}
			if bits := binary.LittleEndian.Uint16(data[body+14:]); bits != bitsPerSample {
				return Clip{}, fmt.Errorf("audio: unsupported wav bit depth %d", bits)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			gotFmt = true
		case "data":
			if !gotFmt {
				return Clip{}, errors.New("audio: wav data chunk before fmt chunk")
			}
			clip.PCM = append([]byte(nil), data[body:end]...)
			return clip, nil
		}

		pos = end + size%2 // chunks are word aligned
	}
	return Clip{}, errors.New("audio: wav has no data chunk")
}
