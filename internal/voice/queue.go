// Package voice owns the speaking half of the conversation: a generation
// queue that turns phrases into audio artifacts with a small worker pool,
// and a supervised playback pipeline that plays them strictly in
// submission order while coordinating the microphone.
package voice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/logger"
)

// DefaultWorkers is the number of concurrent synthesis workers. Two keeps
// the next phrase warm while the current one plays without saturating a
// small machine.
const DefaultWorkers = 2

// JobState tracks a job through its lifetime.
type JobState int

const (
	// JobPending means the job is queued but synthesis has not started.
	JobPending JobState = iota
	// JobRunning means a worker is synthesizing the phrase.
	JobRunning
	// JobDone means the artifact is ready.
	JobDone
	// JobFailed means synthesis failed; the job carries the error.
	JobFailed
	// JobCancelled means the job was cancelled before completion.
	JobCancelled
)

// Job is one phrase on its way to becoming audio. The playback side waits
// on done; the generation side fills artifact or err and closes it.
type Job struct {
	Text string

	mu       sync.Mutex
	state    JobState
	artifact *domain.Artifact
	err      error
	done     chan struct{}
}

func newJob(text string) *Job {
	return &Job{Text: text, done: make(chan struct{})}
}

// State returns the job's current state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Cancel marks a pending or running job cancelled; a running job's
// worker notices on resolve and drops the late artifact. A finished
// job's artifact is discarded instead. Returns whether the job was
// still cancellable.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case JobPending, JobRunning:
		j.state = JobCancelled
		j.err = domain.ErrCancelled
		close(j.done)
		return true
	case JobDone:
		j.artifact.Discard()
		return false
	default:
		return false
	}
}

// Wait blocks until the job resolves or ctx expires.
func (j *Job) Wait(ctx context.Context) (*domain.Artifact, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.artifact, j.err
}

func (j *Job) resolve(a *domain.Artifact, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state == JobCancelled {
		// Lost the race with Cancel; drop the late artifact.
		a.Discard()
		return
	}
	if err != nil {
		j.state = JobFailed
		j.err = err
	} else {
		j.state = JobDone
		j.artifact = a
	}
	close(j.done)
}

func (j *Job) markRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobPending {
		return false
	}
	j.state = JobRunning
	return true
}

// GeneratorOption configures the Generator.
type GeneratorOption func(*Generator)

// WithWorkers sets the synthesis worker count.
func WithWorkers(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithScratchDir sets the directory for scratch WAV files. Defaults to the
// system temp directory.
func WithScratchDir(dir string) GeneratorOption {
	return func(g *Generator) { g.scratchDir = dir }
}

// Generator runs phrase synthesis on a worker pool while preserving
// submission order for playback. Workers may finish out of order; the
// pending list is the single source of playback ordering, so whatever the
// playback side pops is always the oldest unplayed phrase.
type Generator struct {
	synth      domain.Synthesizer
	log        *logger.Logger
	workers    int
	scratchDir string

	feed chan *Job

	mu      sync.Mutex
	pending []*Job
}

// NewGenerator creates a generator around the given synthesizer.
func NewGenerator(synth domain.Synthesizer, log *logger.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		synth:      synth,
		log:        log,
		workers:    DefaultWorkers,
		scratchDir: os.TempDir(),
		feed:       make(chan *Job, 64),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the worker pool. Non-blocking.
func (g *Generator) Start(ctx context.Context) {
	for i := 0; i < g.workers; i++ {
		go g.worker(ctx, i)
	}
	g.log.Debug("voice: %d synthesis workers started", g.workers)
}

// Submit queues a phrase for synthesis and returns its job. Degenerate
// phrases (under two characters, or bare punctuation) are rejected with a
// nil job — they waste an engine round trip and play as clicks.
func (g *Generator) Submit(text string) *Job {
	text = strings.TrimSpace(text)
	if degenerate(text) {
		g.log.Debug("voice: skipping degenerate phrase %q", text)
		return nil
	}

	job := newJob(text)

	g.mu.Lock()
	g.pending = append(g.pending, job)
	g.mu.Unlock()

	select {
	case g.feed <- job:
	default:
		// Feed full; run inline rather than drop the phrase.
		go g.runJob(context.Background(), job)
	}
	return job
}

// PopHead removes and returns the oldest unplayed job.
func (g *Generator) PopHead() (*Job, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.pending) == 0 {
		return nil, false
	}
	job := g.pending[0]
	g.pending = g.pending[1:]
	return job, true
}

// Len returns the number of unplayed jobs.
func (g *Generator) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Drain cancels every unplayed job and empties the queue. Finished jobs
// have their artifacts discarded. Returns the number of jobs dropped.
func (g *Generator) Drain() int {
	g.mu.Lock()
	dropped := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, job := range dropped {
		job.Cancel()
	}
	if len(dropped) > 0 {
		g.log.Debug("voice: drained %d queued phrases", len(dropped))
	}
	return len(dropped)
}

func (g *Generator) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-g.feed:
			g.runJob(ctx, job)
		}
	}
}

func (g *Generator) runJob(ctx context.Context, job *Job) {
	if !job.markRunning() {
		return // cancelled while queued
	}

	pcm, rate, err := g.synth.Synthesize(ctx, job.Text)
	if err != nil {
		job.resolve(nil, err)
		return
	}

	artifact := &domain.Artifact{PCM: pcm, SampleRate: rate}
	path, err := g.writeScratch(pcm, rate)
	if err != nil {
		// Playable from memory even without the scratch file.
		g.log.Warn("voice: scratch file write failed: %v", err)
	} else {
		artifact.Path = path
	}
	job.resolve(artifact, nil)
}

// writeScratch persists the PCM as a WAV file for sinks that play from
// disk. One unique file per artifact; Discard removes it.
func (g *Generator) writeScratch(pcm []byte, rate int) (string, error) {
	path := filepath.Join(g.scratchDir, "nana-"+uuid.NewString()+".wav")
	if err := os.WriteFile(path, EncodeWAV(pcm, rate), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// degenerate reports whether a phrase is too small or content-free to
// synthesize.
func degenerate(text string) bool {
	if len(text) < 2 {
		return true
	}
	for _, r := range text {
		if !unicode.IsPunct(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
