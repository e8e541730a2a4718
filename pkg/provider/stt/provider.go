// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A provider turns one short recorded answer into text. The dialogue records
// a bounded clip per turn, so the contract is a single request/response call
// rather than a stream: the clip travels as a WAV file and the provider
// returns the best transcript it has.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/vitalvoice/pkg/types"
)

// ErrNoTranscript is returned (wrapped) when the backend answered but produced
// no usable text. Callers treat it the same as a transport failure.
var ErrNoTranscript = errors.New("stt: no transcript")

// Request is one transcription call.
type Request struct {
	// Audio is a complete RIFF/WAV file holding 16-bit PCM, normally 16 kHz
	// mono (see audio.EncodeWAV).
	Audio []byte

	// Language is the language the speaker was asked to answer in. Providers
	// forward it as a recognition hint; an empty value lets the backend
	// auto-detect when it supports that.
	Language types.Language
}

// Result is the outcome of a successful transcription.
type Result struct {
	// Text is the transcribed speech, trimmed of surrounding whitespace.
	// Never empty on success.
	Text string

	// Confidence is the backend's confidence in [0, 1], or 0 when the backend
	// does not report one.
	Confidence float64
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe sends req to the backend and waits for its answer.
	//
	// Non-success responses, network failures and timeouts are returned as
	// errors; an answer without text is returned as an error wrapping
	// ErrNoTranscript. Transcribe honours ctx cancellation.
	Transcribe(ctx context.Context, req Request) (Result, error)
}
