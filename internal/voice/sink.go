package voice

import (
	"context"
	"os/exec"
	"runtime"
	"sync"

	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/logger"
)

// ExecSink plays artifacts by handing their scratch WAV file to a system
// player binary (aplay on Linux, afplay on macOS). Fallback for machines
// where the audio device can't be opened in-process.
type ExecSink struct {
	binary string
	log    *logger.Logger

	mu     sync.Mutex
	active *exec.Cmd
}

// NewExecSink creates a subprocess-based sink. An empty binary picks a
// platform default.
func NewExecSink(binary string, log *logger.Logger) *ExecSink {
	if binary == "" {
		if runtime.GOOS == "darwin" {
			binary = "afplay"
		} else {
			binary = "aplay"
		}
	}
	return &ExecSink{binary: binary, log: log}
}

// Play runs the player binary on the artifact's scratch file and blocks
// until it exits, Stop is called, or ctx expires.
func (s *ExecSink) Play(ctx context.Context, a *domain.Artifact) error {
	if a.Path == "" {
		return domain.ErrNoAudio
	}

	cmd := exec.CommandContext(ctx, s.binary, a.Path)

	s.mu.Lock()
	s.active = cmd
	s.mu.Unlock()

	s.log.Debug("voice: %s %s", s.binary, a.Path)
	err := cmd.Run()

	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		// A killed player exits non-zero; only real failures surface.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == -1 {
			return nil
		}
		return err
	}
	return nil
}

// Stop kills the in-flight player process, if any.
func (s *ExecSink) Stop() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if active != nil && active.Process != nil {
		active.Process.Kill()
		s.log.Debug("voice: playback process killed")
	}
}
