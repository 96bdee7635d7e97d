package voice

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, io.Discard)
}

// stubSynth runs the given function for every phrase.
type stubSynth struct {
	fn func(text string) ([]byte, int, error)
}

func (s *stubSynth) Synthesize(_ context.Context, text string) ([]byte, int, error) {
	return s.fn(text)
}

func (s *stubSynth) Available() bool { return true }

// phrasePCM encodes the phrase into a fixed-size artifact so tests can
// recover it on the playback side.
func phrasePCM(text string) []byte {
	pcm := make([]byte, 256)
	copy(pcm, text)
	return pcm
}

func pcmPhrase(pcm []byte) string {
	end := 0
	for end < len(pcm) && pcm[end] != 0 {
		end++
	}
	return string(pcm[:end])
}

func echoSynth() *stubSynth {
	return &stubSynth{fn: func(text string) ([]byte, int, error) {
		return phrasePCM(text), 22050, nil
	}}
}

func TestSubmitRejectsDegeneratePhrases(t *testing.T) {
	g := NewGenerator(echoSynth(), testLogger())

	for _, text := range []string{"", "a", "...", "?!", "  ,  "} {
		if job := g.Submit(text); job != nil {
			t.Errorf("Submit(%q) accepted a degenerate phrase", text)
		}
	}
	if job := g.Submit("ok"); job == nil {
		t.Error("Submit rejected a speakable phrase")
	}
}

func TestQueueOrderSurvivesOutOfOrderCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First phrase is slow, so the second worker finishes later phrases
	// first.
	synth := &stubSynth{fn: func(text string) ([]byte, int, error) {
		if text == "first phrase" {
			time.Sleep(50 * time.Millisecond)
		}
		return phrasePCM(text), 22050, nil
	}}

	g := NewGenerator(synth, testLogger(), WithScratchDir(t.TempDir()))
	g.Start(ctx)

	submitted := []string{"first phrase", "second phrase", "third phrase"}
	for _, text := range submitted {
		if g.Submit(text) == nil {
			t.Fatalf("Submit(%q) rejected", text)
		}
	}

	for _, want := range submitted {
		job, ok := g.PopHead()
		if !ok {
			t.Fatalf("queue ran out before %q", want)
		}
		artifact, err := job.Wait(ctx)
		if err != nil {
			t.Fatalf("Wait(%q): %v", want, err)
		}
		if got := pcmPhrase(artifact.PCM); got != want {
			t.Errorf("played %q, want %q", got, want)
		}
		artifact.Discard()
	}
}

func TestCancelPendingJob(t *testing.T) {
	// No workers started: the job stays pending.
	g := NewGenerator(echoSynth(), testLogger())

	job := g.Submit("never spoken")
	if !job.Cancel() {
		t.Fatal("Cancel refused a pending job")
	}

	if _, err := job.Wait(context.Background()); !errors.Is(err, domain.ErrCancelled) {
		t.Errorf("Wait after cancel = %v, want ErrCancelled", err)
	}
	if job.Cancel() {
		t.Error("second Cancel reported success")
	}
}

func TestDrainEmptiesQueue(t *testing.T) {
	g := NewGenerator(echoSynth(), testLogger())

	g.Submit("one two")
	g.Submit("three four")
	g.Submit("five six")

	if n := g.Drain(); n != 3 {
		t.Errorf("Drain dropped %d jobs, want 3", n)
	}
	if n := g.Len(); n != 0 {
		t.Errorf("queue length %d after drain, want 0", n)
	}
	if _, ok := g.PopHead(); ok {
		t.Error("PopHead returned a job after drain")
	}
}

func TestScratchFileLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := NewGenerator(echoSynth(), testLogger(), WithScratchDir(t.TempDir()))
	g.Start(ctx)

	job := g.Submit("hello dear")
	artifact, err := job.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if artifact.Path == "" {
		t.Fatal("artifact has no scratch file")
	}
	if _, err := os.Stat(artifact.Path); err != nil {
		t.Fatalf("scratch file missing: %v", err)
	}

	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatalf("read scratch file: %v", err)
	}
	pcm, err := ExtractPCM(data)
	if err != nil {
		t.Fatalf("scratch file is not a valid WAV: %v", err)
	}
	if got := pcmPhrase(pcm); got != "hello dear" {
		t.Errorf("scratch PCM = %q, want %q", got, "hello dear")
	}

	path := artifact.Path
	artifact.Discard()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("scratch file survived Discard")
	}
	artifact.Discard() // idempotent
}
