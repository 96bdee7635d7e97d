// Package stt captures microphone audio in short chunks and transcribes
// it with a local Whisper model.
package stt

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/akarimi/nana/internal/logger"
)

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z\s]*[\)\]]`)

// Option configures the Listener.
type Option func(*Listener)

// WithChunkDuration sets how long each recording chunk lasts.
func WithChunkDuration(d time.Duration) Option {
	return func(l *Listener) { l.chunkDuration = d }
}

// WithTurnTimeout sets the maximum length of a single user turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(l *Listener) { l.turnTimeout = d }
}

// WithTempDir sets the directory for temporary recording files.
func WithTempDir(dir string) Option {
	return func(l *Listener) { l.tempDir = dir }
}

// Listener is an always-on microphone transcriber. It records fixed-size
// chunks, transcribes each one, and accumulates them into a turn until the
// user falls silent. SetActive(false) parks the microphone while speech
// is playing so Nana doesn't transcribe herself.
type Listener struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger

	chunkDuration time.Duration
	turnTimeout   time.Duration

	mu     sync.Mutex
	active bool
}

// NewListener creates a microphone listener.
//
//   - whisperBin: path to the whisper-cli executable
//   - modelPath:  path to the GGML model file
func NewListener(whisperBin, modelPath string, log *logger.Logger, opts ...Option) *Listener {
	l := &Listener{
		whisperBin:    whisperBin,
		modelPath:     modelPath,
		tempDir:       ".nana-stt",
		log:           log,
		chunkDuration: 2 * time.Second,
		turnTimeout:   15 * time.Second,
		active:        true,
	}
	for _, opt := range opts {
		opt(l)
	}

	if _, err := exec.LookPath(l.whisperBin); err != nil {
		log.Error("stt: whisper binary %q not found in PATH: %v", l.whisperBin, err)
	}
	return l
}

// SetActive enables or disables capture. While inactive, Listen idles
// without recording.
func (l *Listener) SetActive(active bool) {
	l.mu.Lock()
	l.active = active
	l.mu.Unlock()
	l.log.Debug("stt: active=%v", active)
}

func (l *Listener) isActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Listen blocks until one full user turn has been captured: chunks are
// recorded and accumulated until the user falls silent or the turn
// timeout expires. Returns an empty string only when ctx is cancelled.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	var parts []string
	var deadline <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if !l.isActive() {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		if deadline != nil {
			select {
			case <-deadline:
				l.log.Debug("stt: turn timeout reached")
				return strings.Join(parts, " "), nil
			default:
			}
		}

		chunk := l.recordChunk(ctx)

		// If playback started while we were recording, the chunk is
		// contaminated with Nana's own voice. Discard it.
		if !l.isActive() {
			l.log.Debug("stt: discarding chunk recorded across a mute")
			parts = parts[:0]
			deadline = nil
			continue
		}

		chunk = cleanTranscription(chunk)
		if chunk == "" {
			if len(parts) > 0 {
				// Silence after speech ends the turn.
				return strings.Join(parts, " "), nil
			}
			continue
		}

		l.log.Debug("stt: heard %q", chunk)
		if len(parts) == 0 {
			deadline = time.After(l.turnTimeout)
		}
		parts = append(parts, chunk)
	}
}

// recordChunk does one record-and-transcribe cycle and returns the raw
// transcription.
func (l *Listener) recordChunk(ctx context.Context) string {
	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := l.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(
		l.whisperBin,
		l.modelPath,
		l.tempDir,
		"wav",
		callback,
		verbose,
	)
	if err != nil {
		l.log.Error("stt: transcriber init failed: %v", err)
		time.Sleep(2 * time.Second)
		return ""
	}

	if err := t.Start(); err != nil {
		l.log.Error("stt: recording start failed: %v", err)
		time.Sleep(2 * time.Second)
		return ""
	}

	select {
	case <-time.After(l.chunkDuration):
	case <-ctx.Done():
		t.Stop()
		wg.Wait()
		return ""
	}

	t.Stop()
	wg.Wait()

	return result
}

// cleanTranscription normalizes whitespace and strips the junk whisper
// produces on silence or background noise. Returns "" when nothing real
// was said.
func cleanTranscription(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)

	junkPatterns := []string{
		"[BLANK_AUDIO]",
		"[BLANK AUDIO]",
		"(silence)",
		"[silence]",
		"(no speech)",
		"[no speech]",
		"[Music]",
		"(music)",
		"(breathing)",
		"(sighing)",
		"(coughing)",
		"(static)",
		"(background noise)",
		"(inaudible)",
		"(unintelligible)",
	}
	for _, j := range junkPatterns {
		s = strings.ReplaceAll(s, j, "")
		s = strings.ReplaceAll(s, strings.ToLower(j), "")
		s = strings.ReplaceAll(s, strings.ToUpper(j), "")
	}

	// Catch-all for remaining (parenthesized) or [bracketed] annotations.
	s = envAnnotation.ReplaceAllString(s, "")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)

	// Known whisper hallucinations on near-silence.
	hallucinations := []string{
		"...",
		"you",
		"Thank you.",
		"Thanks for watching!",
		"Thank you for watching.",
		"Bye.",
		"Bye!",
		"The end.",
	}
	lower := strings.ToLower(s)
	for _, h := range hallucinations {
		if strings.ToLower(h) == lower {
			return ""
		}
	}

	// Strip timestamp prefixes like "[00:00:00.000 --> 00:00:05.000]".
	if strings.HasPrefix(s, "[") {
		if idx := strings.Index(s, "]"); idx != -1 && idx < 40 {
			rest := strings.TrimSpace(s[idx+1:])
			if rest != "" {
				return rest
			}
		}
	}

	return s
}
