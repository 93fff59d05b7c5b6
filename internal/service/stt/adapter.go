// Package stt abstracts the speech-to-text providers that transcribe
// meeting call audio.
package stt

import "context"

// Callback receives transcription results for one call session. The
// call session implements it to relay partials to viewers and persist
// finals into the transcript log.
type Callback interface {
	// OnPartial is called for each interim transcript revision.
	OnPartial(text string)

	// OnFinal is called once per utterance with the settled transcript.
	OnFinal(text string, confidence float64)

	// OnError is called when the provider stream fails or ends.
	OnError(err error)
}

// Adapter is a streaming transcription session over one call's audio.
// The orchestrator creates a fresh adapter per call; Start wires the
// callback and SendAudio feeds it frames until Close.
type Adapter interface {
	Start(ctx context.Context, cb Callback) error
	SendAudio(ctx context.Context, audio []byte) error
	Close() error
}
