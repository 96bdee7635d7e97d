// Package agent runs a single conversation turn: take what the user
// said, recall anything relevant, stream a reply from the language
// model, and feed it token by token into the speaking pipeline.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/history"
	"github.com/akarimi/nana/internal/logger"
	"github.com/akarimi/nana/internal/segment"
)

// DefaultFallback is spoken when the model cannot be reached.
const DefaultFallback = "I'm having trouble thinking right now."

// defaultPersona is Nana's voice. Replies must stay short — everything
// she says gets synthesized and spoken aloud.
const defaultPersona = `You are Nana, a warm and gently witty grandmother keeping someone company.
Speak naturally, as if chatting across the kitchen table. Keep replies to
a sentence or two — they are spoken aloud, not read. Never use lists,
headings, or emoji.`

// Speaker is the voice side of the agent. Satisfied by voice.Pipeline.
type Speaker interface {
	Speak(text string)
	Interrupt()
}

// Option configures the Agent.
type Option func(*Agent)

// WithPersona overrides the system prompt persona.
func WithPersona(persona string) Option {
	return func(a *Agent) { a.persona = persona }
}

// WithFallback overrides the phrase spoken when the model fails.
func WithFallback(text string) Option {
	return func(a *Agent) { a.fallback = text }
}

// Agent glues the language model, memory, history, and voice together.
type Agent struct {
	streamer  domain.TokenStreamer
	retriever domain.Retriever
	hist      *history.History
	seg       *segment.Buffer
	speaker   Speaker
	log       *logger.Logger

	persona  string
	fallback string
}

// New creates an agent. retriever may be nil when no memories are loaded.
func New(streamer domain.TokenStreamer, retriever domain.Retriever, hist *history.History,
	seg *segment.Buffer, speaker Speaker, log *logger.Logger, opts ...Option) *Agent {

	a := &Agent{
		streamer:  streamer,
		retriever: retriever,
		hist:      hist,
		seg:       seg,
		speaker:   speaker,
		log:       log,
		persona:   defaultPersona,
		fallback:  DefaultFallback,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Respond handles one user turn. Tokens stream into the phrase buffer as
// they arrive, so Nana starts talking before the model finishes. Blocks
// until the stream ends; playback continues in the background.
func (a *Agent) Respond(ctx context.Context, userText string) error {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil
	}

	a.log.Info("agent: user said %q", userText)
	a.hist.Add(domain.RoleUser, userText)

	memories := ""
	if a.retriever != nil {
		recalled, err := a.retriever.Retrieve(ctx, userText)
		if err != nil {
			a.log.Warn("agent: memory retrieval failed: %v", err)
		} else {
			memories = recalled
		}
	}

	messages := make([]domain.Message, 0, a.hist.Len()+1)
	messages = append(messages, domain.Message{
		Role: domain.RoleSystem,
		Text: a.systemPrompt(memories),
	})
	messages = append(messages, a.hist.Messages()...)

	full, err := a.streamer.Stream(ctx, messages, a.seg.AddToken)
	if err != nil {
		// Drop whatever is half-buffered and say something instead of
		// going silent.
		a.seg.Reset()
		if ctx.Err() == nil {
			a.speaker.Speak(a.fallback)
		}
		return fmt.Errorf("completion: %w", err)
	}

	a.seg.Flush(true)

	full = strings.TrimSpace(full)
	if full == "" {
		a.speaker.Speak(a.fallback)
		return nil
	}
	a.hist.Add(domain.RoleAssistant, full)
	return nil
}

// Interrupt silences Nana mid-reply: the phrase buffer is discarded and
// the voice pipeline drops everything queued.
func (a *Agent) Interrupt() {
	a.seg.Reset()
	a.speaker.Interrupt()
	a.log.Info("agent: interrupted")
}

func (a *Agent) systemPrompt(memories string) string {
	if memories == "" {
		return a.persona
	}
	return a.persona + "\n\nThings you remember about your family:\n" + memories
}
