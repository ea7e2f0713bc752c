// Package recognize defines the local continuous speech recognizer
// boundary and a cloud JSON-over-WebSocket implementation.
//
// A recognizer delivers interim and final results for the user's own
// speech through a callback, repeatedly per utterance. It is the fast
// local stream the reconciler prefers over the remote peer's echo of the
// same audio.
package recognize

import (
	"context"

	"github.com/voicebridge/voicebridge/pkg/langid"
)

// Result is one recognition result. Interim results (Final=false) are
// subject to revision; a final result settles the utterance.
type Result struct {
	Text     string
	Language langid.Tag
	Final    bool
}

// Handler receives recognition results. Handlers are invoked from the
// recognizer's receive goroutine and must not block.
type Handler func(Result)

// Recognizer is the local continuous recognizer contract.
type Recognizer interface {
	// Start begins a recognition session for the given locale. reset
	// discards any state accumulated from the previous session instead of
	// carrying it into this one.
	Start(ctx context.Context, locale string, reset bool) error

	// Stop ends the session. The final result for the in-flight utterance
	// (if any) is delivered before Stop returns.
	Stop() error
}

// AudioWriter is implemented by recognizers that accept streamed capture
// audio from the caller rather than owning the capture device.
type AudioWriter interface {
	WriteAudio(pcm []byte) error
}
