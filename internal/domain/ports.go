package domain

import "context"

// Synthesizer converts text into speech samples. Implementations wrap a
// local TTS engine (CLI-based, ONNX, ...) or degrade to a no-op when no
// engine is installed. Synthesis is CPU-bound and may take hundreds of
// milliseconds; callers must run it off the coordinating goroutine.
type Synthesizer interface {
	// Synthesize returns 16-bit mono PCM samples and their sample rate.
	Synthesize(ctx context.Context, text string) (pcm []byte, sampleRate int, err error)
	// Available reports whether the underlying engine can produce audio.
	Available() bool
}

// Listener captures speech from the microphone and turns it into text.
// Listen blocks until the speaker falls silent; it is meant to run on its
// own goroutine. SetActive is the software mute switch: while inactive the
// microphone keeps running but everything heard is discarded.
type Listener interface {
	Listen(ctx context.Context) (string, error)
	SetActive(active bool)
}

// TokenStreamer produces an incremental chat completion. Every delta is
// passed to onToken in arrival order; the concatenated response is returned
// when the stream ends.
type TokenStreamer interface {
	Stream(ctx context.Context, messages []Message, onToken func(string)) (string, error)
}

// Retriever returns supporting context for a query, or an empty string when
// nothing relevant is indexed. Implementations must never fail a
// conversation turn: a missing index yields "".
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// AudioSink plays one artifact to completion. Play blocks until playback
// finishes or Stop is called from another goroutine.
type AudioSink interface {
	Play(ctx context.Context, a *Artifact) error
	Stop()
}
