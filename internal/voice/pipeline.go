package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/logger"
)

// Phase is the pipeline's speaking state.
type Phase int

const (
	// PhaseIdle means nothing is playing; the microphone is live.
	PhaseIdle Phase = iota
	// PhaseSpeaking means audio is playing; the microphone is muted so
	// Nana doesn't hear herself.
	PhaseSpeaking
)

const (
	// DefaultMinArtifactBytes is the smallest artifact worth playing.
	// Anything shorter is engine noise and plays as a click.
	DefaultMinArtifactBytes = 100
	// restartDelay is the pause before a crashed playback worker is
	// restarted.
	restartDelay = time.Second
)

// PipelineOption configures the Pipeline.
type PipelineOption func(*Pipeline)

// WithMinArtifactBytes sets the minimum playable artifact size.
func WithMinArtifactBytes(n int) PipelineOption {
	return func(p *Pipeline) { p.minBytes = n }
}

// WithMuteHooks installs the microphone hooks. mute fires on the
// Idle -> Speaking transition, unmute on Speaking -> Idle. The pipeline
// guarantees they alternate: neither hook ever fires twice in a row.
func WithMuteHooks(mute, unmute func()) PipelineOption {
	return func(p *Pipeline) {
		p.onMute = mute
		p.onUnmute = unmute
	}
}

// Pipeline plays generated artifacts strictly in submission order. It
// stays unmuted while waiting on synthesis — the user may keep talking
// during the gap — and mutes only around actual audio output. A
// supervisor restarts the playback worker if it panics, preserving
// whatever is still queued.
type Pipeline struct {
	gen      *Generator
	sink     domain.AudioSink
	log      *logger.Logger
	minBytes int
	onMute   func()
	onUnmute func()

	notify chan struct{}

	mu    sync.Mutex
	phase Phase
	head  *Job // popped but not yet finished playing
}

// NewPipeline creates a playback pipeline over the given generator and
// sink.
func NewPipeline(gen *Generator, sink domain.AudioSink, log *logger.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		gen:      gen,
		sink:     sink,
		log:      log,
		minBytes: DefaultMinArtifactBytes,
		notify:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the synthesis workers and the supervised playback
// worker. Non-blocking.
func (p *Pipeline) Start(ctx context.Context) {
	p.gen.Start(ctx)
	go p.supervise(ctx)
	p.log.Info("voice pipeline started")
}

// Speak queues a phrase for synthesis and eventual playback. Non-blocking.
func (p *Pipeline) Speak(text string) {
	if job := p.gen.Submit(text); job == nil {
		return
	}
	select {
	case p.notify <- struct{}{}:
	default: // already signaled
	}
}

// Interrupt drops everything queued, cancels the in-flight head job,
// stops the current playback, and unmutes the microphone. Safe to call
// at any time, including when the pipeline is already idle.
func (p *Pipeline) Interrupt() {
	dropped := p.gen.Drain()

	p.mu.Lock()
	head := p.head
	p.mu.Unlock()
	if head != nil {
		head.Cancel()
	}

	p.sink.Stop()
	p.toIdle()
	p.log.Debug("voice: interrupted (%d phrases dropped)", dropped)
}

// Phase returns the current speaking phase.
func (p *Pipeline) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// QueueLen returns the number of unplayed phrases.
func (p *Pipeline) QueueLen() int {
	return p.gen.Len()
}

// supervise keeps the playback worker alive. A panic tears the worker
// down; after a short pause it is restarted with the queue intact.
func (p *Pipeline) supervise(ctx context.Context) {
	for {
		err := p.run(ctx)
		if ctx.Err() != nil {
			p.log.Info("voice pipeline stopped")
			return
		}
		p.log.Warn("voice: playback worker died: %v — restarting in %s", err, restartDelay)
		p.toIdle()

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}

		// Anything queued while the worker was down still needs playing.
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
}

// run is one lifetime of the playback worker. Panics are converted into
// errors so the supervisor can restart cleanly.
func (p *Pipeline) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.toIdle()
			return ctx.Err()
		case <-p.notify:
			p.drainPlay(ctx)
		}
	}
}

// drainPlay plays queued artifacts in order until the queue is empty.
func (p *Pipeline) drainPlay(ctx context.Context) {
	for {
		job, ok := p.gen.PopHead()
		if !ok {
			p.toIdle()
			return
		}

		p.setHead(job)

		// The mic stays open while audio is only generating. Mute
		// brackets actual emission, nothing else.
		p.toIdle()

		artifact, err := job.Wait(ctx)
		if err != nil {
			p.setHead(nil)
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, domain.ErrCancelled) || errors.Is(err, domain.ErrNoAudio) {
				p.log.Debug("voice: skipping phrase %q: %v", job.Text, err)
			} else {
				p.log.Warn("voice: synthesis failed for %q: %v", job.Text, err)
			}
			continue
		}

		if artifact.Size() < p.minBytes {
			p.setHead(nil)
			p.log.Debug("voice: discarding %d-byte artifact for %q", artifact.Size(), job.Text)
			artifact.Discard()
			continue
		}

		p.toSpeaking()
		playErr := p.sink.Play(ctx, artifact)
		artifact.Discard()
		p.setHead(nil)

		// A sink failure drops this one phrase, not the pipeline.
		if playErr != nil && ctx.Err() == nil {
			p.log.Error("voice: playback of %q failed: %v", job.Text, playErr)
			p.toIdle()
		}
	}
}

func (p *Pipeline) setHead(job *Job) {
	p.mu.Lock()
	p.head = job
	p.mu.Unlock()
}

// toSpeaking fires the mute hook, but only on a genuine Idle -> Speaking
// transition.
func (p *Pipeline) toSpeaking() {
	p.mu.Lock()
	transition := p.phase == PhaseIdle
	p.phase = PhaseSpeaking
	p.mu.Unlock()

	if transition && p.onMute != nil {
		p.log.Debug("voice: muting microphone")
		p.onMute()
	}
}

// toIdle fires the unmute hook, but only on a genuine Speaking -> Idle
// transition.
func (p *Pipeline) toIdle() {
	p.mu.Lock()
	transition := p.phase == PhaseSpeaking
	p.phase = PhaseIdle
	p.mu.Unlock()

	if transition && p.onUnmute != nil {
		p.log.Debug("voice: unmuting microphone")
		p.onUnmute()
	}
}
