// Package tts synthesizes speech by shelling out to a local neural TTS
// binary (piper-compatible: text on stdin, raw 16-bit mono PCM on stdout).
// A fresh process per request keeps the engine stateless and crash-isolated.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/logger"
)

// DefaultSampleRate matches the medium-quality piper voices.
const DefaultSampleRate = 22050

// Option configures the CLIEngine.
type Option func(*CLIEngine)

// WithBinary sets the synthesis binary path. Defaults to "piper" on PATH.
func WithBinary(path string) Option {
	return func(e *CLIEngine) { e.binary = path }
}

// WithModel sets the voice model path passed to the binary.
func WithModel(path string) Option {
	return func(e *CLIEngine) { e.model = path }
}

// WithSpeed sets the length scale. Values above 1.0 slow speech down;
// Nana defaults to a gentle 1.1.
func WithSpeed(scale float64) Option {
	return func(e *CLIEngine) { e.speed = scale }
}

// WithSampleRate overrides the PCM sample rate reported for generated
// audio. Must match the voice model's native rate.
func WithSampleRate(hz int) Option {
	return func(e *CLIEngine) { e.sampleRate = hz }
}

// CLIEngine implements domain.Synthesizer over a subprocess.
type CLIEngine struct {
	binary     string
	model      string
	speed      float64
	sampleRate int
	log        *logger.Logger
}

// NewCLIEngine creates a subprocess-backed synthesizer.
func NewCLIEngine(log *logger.Logger, opts ...Option) *CLIEngine {
	e := &CLIEngine{
		binary:     "piper",
		speed:      1.1,
		sampleRate: DefaultSampleRate,
		log:        log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Synthesize runs the binary with the phrase on stdin and returns the raw
// PCM it writes to stdout. An empty phrase or empty output yields
// domain.ErrNoAudio.
func (e *CLIEngine) Synthesize(ctx context.Context, text string) ([]byte, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, domain.ErrNoAudio
	}

	args := []string{"--output-raw", "--length-scale", strconv.FormatFloat(e.speed, 'f', 2, 64)}
	if e.model != "" {
		args = append(args, "--model", e.model)
	}

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stdin = bytes.NewBufferString(text + "\n")

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}

	pcm := out.Bytes()
	if len(pcm) == 0 {
		return nil, 0, domain.ErrNoAudio
	}

	e.log.Debug("tts: synthesized %d bytes for %q", len(pcm), truncate(text, 50))
	return pcm, e.sampleRate, nil
}

// Available reports whether the binary can be invoked.
func (e *CLIEngine) Available() bool {
	return exec.Command(e.binary, "--version").Run() == nil
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
