package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/akarimi/nana/internal/domain"
	"github.com/akarimi/nana/internal/history"
	"github.com/akarimi/nana/internal/logger"
	"github.com/akarimi/nana/internal/segment"
)

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, io.Discard)
}

// stubStreamer replays canned tokens and records the request.
type stubStreamer struct {
	tokens   []string
	err      error
	messages []domain.Message
}

func (s *stubStreamer) Stream(_ context.Context, messages []domain.Message, onToken func(string)) (string, error) {
	s.messages = messages
	var full strings.Builder
	for _, tok := range s.tokens {
		full.WriteString(tok)
		onToken(tok)
	}
	return full.String(), s.err
}

type stubRetriever struct {
	context string
	err     error
}

func (s *stubRetriever) Retrieve(context.Context, string) (string, error) {
	return s.context, s.err
}

// stubSpeaker records phrases handed to the voice side.
type stubSpeaker struct {
	mu          sync.Mutex
	spoken      []string
	interrupted bool
}

func (s *stubSpeaker) Speak(text string) {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
}

func (s *stubSpeaker) Interrupt() {
	s.mu.Lock()
	s.interrupted = true
	s.mu.Unlock()
}

func (s *stubSpeaker) phrases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func newTestAgent(streamer domain.TokenStreamer, retriever domain.Retriever) (*Agent, *stubSpeaker, *history.History) {
	speaker := &stubSpeaker{}
	hist := history.New(8)
	seg := segment.New(speaker.Speak, testLogger())
	a := New(streamer, retriever, hist, seg, speaker, testLogger())
	return a, speaker, hist
}

func TestRespondStreamsIntoPhrases(t *testing.T) {
	streamer := &stubStreamer{tokens: []string{"Hello", " dear,", " I", " made", " some", " tea"}}
	a, speaker, hist := newTestAgent(streamer, nil)

	if err := a.Respond(context.Background(), "good morning"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	got := speaker.phrases()
	if len(got) != 2 {
		t.Fatalf("spoken phrases = %q, want 2", got)
	}
	if got[0] != "Hello dear," {
		t.Errorf("first phrase = %q", got[0])
	}
	// The stream-end flush forces out the remainder.
	if got[1] != "I made some tea" {
		t.Errorf("final phrase = %q", got[1])
	}

	msgs := hist.Messages()
	if len(msgs) != 2 {
		t.Fatalf("history = %+v, want user and assistant turns", msgs)
	}
	if msgs[1].Role != domain.RoleAssistant || msgs[1].Text != "Hello dear, I made some tea" {
		t.Errorf("assistant turn = %+v", msgs[1])
	}
}

func TestRespondIncludesMemories(t *testing.T) {
	streamer := &stubStreamer{tokens: []string{"Of", " course."}}
	retriever := &stubRetriever{context: "Rosa planted tomatoes along the back fence."}
	a, _, _ := newTestAgent(streamer, retriever)

	if err := a.Respond(context.Background(), "remember the garden?"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if len(streamer.messages) == 0 || streamer.messages[0].Role != domain.RoleSystem {
		t.Fatal("request has no system message")
	}
	if !strings.Contains(streamer.messages[0].Text, "tomatoes") {
		t.Errorf("system prompt lacks retrieved memory: %q", streamer.messages[0].Text)
	}
}

func TestRespondToleratesRetrievalFailure(t *testing.T) {
	streamer := &stubStreamer{tokens: []string{"Still", " here."}}
	retriever := &stubRetriever{err: errors.New("index offline")}
	a, speaker, _ := newTestAgent(streamer, retriever)

	if err := a.Respond(context.Background(), "hello there"); err != nil {
		t.Fatalf("Respond failed on retrieval error: %v", err)
	}
	if len(speaker.phrases()) == 0 {
		t.Error("nothing spoken despite a working model")
	}
}

func TestRespondSpeaksFallbackOnModelFailure(t *testing.T) {
	streamer := &stubStreamer{err: errors.New("connection refused")}
	a, speaker, hist := newTestAgent(streamer, nil)

	if err := a.Respond(context.Background(), "hello there"); err == nil {
		t.Fatal("Respond swallowed the model error")
	}

	got := speaker.phrases()
	if len(got) == 0 || got[len(got)-1] != DefaultFallback {
		t.Errorf("spoken = %q, want the fallback phrase", got)
	}

	for _, m := range hist.Messages() {
		if m.Role == domain.RoleAssistant {
			t.Errorf("failed turn recorded in history: %+v", m)
		}
	}
}

func TestRespondIgnoresEmptyInput(t *testing.T) {
	streamer := &stubStreamer{tokens: []string{"unused"}}
	a, speaker, hist := newTestAgent(streamer, nil)

	if err := a.Respond(context.Background(), "   "); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(speaker.phrases()) != 0 || hist.Len() != 0 {
		t.Error("blank input reached the model")
	}
}

func TestInterruptResetsBufferAndPipeline(t *testing.T) {
	streamer := &stubStreamer{}
	a, speaker, _ := newTestAgent(streamer, nil)

	a.Interrupt()
	if !speaker.interrupted {
		t.Error("pipeline was not interrupted")
	}
}
