package tts

import (
	"context"

	"github.com/akarimi/nana/internal/domain"
)

// NoOp is a synthesizer that produces nothing. Used when no TTS binary is
// installed so the rest of the pipeline still runs (text-only mode).
type NoOp struct{}

// NewNoOp creates a no-op synthesizer.
func NewNoOp() *NoOp { return &NoOp{} }

// Synthesize always reports that no audio was produced.
func (NoOp) Synthesize(ctx context.Context, text string) ([]byte, int, error) {
	return nil, 0, domain.ErrNoAudio
}

// Available is always true; producing nothing never fails.
func (NoOp) Available() bool { return true }
