package voice

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/logger"
)

// Player plays PCM artifacts through the system audio device via oto.
// Implements domain.AudioSink.
type Player struct {
	ctx  *oto.Context
	rate int
	log  *logger.Logger

	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
}

// NewPlayer creates an audio player for 16-bit mono PCM at the given
// sample rate. Returns an error if the audio device is unavailable.
func NewPlayer(sampleRate int, log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("voice: audio player initialized (rate=%d, channels=%d)", sampleRate, channelCount)
	return &Player{ctx: otoCtx, rate: sampleRate, log: log}, nil
}

// Play plays an artifact synchronously. Blocks until playback finishes,
// Stop is called, or ctx expires.
func (p *Player) Play(ctx context.Context, a *domain.Artifact) error {
	if a.Size() == 0 {
		return domain.ErrNoAudio
	}
	if a.SampleRate != p.rate {
		p.log.Warn("voice: artifact rate %d differs from device rate %d", a.SampleRate, p.rate)
	}

	player := p.ctx.NewPlayer(bytes.NewReader(a.PCM))

	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	player.Play()
	p.log.Debug("voice: playing %d bytes of PCM", a.Size())

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			p.clearActive()
			player.Close()
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	p.clearActive()
	return player.Close()
}

func (p *Player) clearActive() {
	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()
}

// Stop interrupts the currently playing audio, if any. Safe to call
// concurrently and when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("voice: playback interrupted")
	}
}
