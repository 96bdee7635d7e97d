package domain

import "errors"

// Sentinel errors used across layers.
var (
	// ErrNoAudio means a phrase produced no playable audio (degenerate
	// input, engine failure). The pipeline skips the chunk and continues.
	ErrNoAudio = errors.New("no audio produced")
	// ErrEngineUnavailable means the synthesis engine is missing or broken.
	ErrEngineUnavailable = errors.New("synthesis engine unavailable")
	// ErrCancelled means a chunk job was cancelled before it could play.
	ErrCancelled = errors.New("job cancelled")
)
