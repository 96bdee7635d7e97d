package segment

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/akarimi/nana/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, io.Discard)
}

// recorder collects dispatched phrases and signals each one.
type recorder struct {
	phrases []string
	ch      chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 16)}
}

func (r *recorder) dispatch(phrase string) {
	r.phrases = append(r.phrases, phrase)
	r.ch <- phrase
}

func TestDispatchOnPunctuation(t *testing.T) {
	rec := newRecorder()
	b := New(rec.dispatch, testLogger())

	b.AddToken("Hello")
	if len(rec.phrases) != 0 {
		t.Fatalf("dispatched %q before reaching minimum word count", rec.phrases)
	}

	b.AddToken(" there,")
	if len(rec.phrases) != 1 || rec.phrases[0] != "Hello there," {
		t.Fatalf("got %q, want [\"Hello there,\"]", rec.phrases)
	}
	if got := b.Pending(); got != "" {
		t.Errorf("buffer not cleared after dispatch: %q", got)
	}
}

func TestHoldsTrailingConjunction(t *testing.T) {
	rec := newRecorder()
	b := New(rec.dispatch, testLogger())

	b.AddToken("I like tea and")
	if len(rec.phrases) != 0 {
		t.Fatalf("dispatched %q despite trailing conjunction", rec.phrases)
	}

	b.AddToken(" biscuits.")
	if len(rec.phrases) != 1 || rec.phrases[0] != "I like tea and biscuits." {
		t.Fatalf("got %q, want the full sentence", rec.phrases)
	}
}

func TestSplitsBeforeConjunctionAtLength(t *testing.T) {
	rec := newRecorder()
	b := New(rec.dispatch, testLogger())

	for _, w := range []string{"alpha", "bravo", "charlie", "delta", "echo", "and", "foxtrot", "golf", "hotel", "india"} {
		b.AddToken(" " + w)
	}

	if len(rec.phrases) == 0 {
		t.Fatal("no dispatch despite exceeding max words")
	}
	if rec.phrases[0] != "alpha bravo charlie delta echo" {
		t.Errorf("first phrase = %q, want split before the conjunction", rec.phrases[0])
	}
	if got := strings.Join(strings.Fields(b.Pending()), " "); got != "and foxtrot golf hotel india" {
		t.Errorf("remainder = %q, want conjunction onward retained", got)
	}
}

func TestSplitsAfterInteriorComma(t *testing.T) {
	rec := newRecorder()
	b := New(rec.dispatch, testLogger())

	b.AddToken("after the rain stopped, we walked home slowly today")
	if len(rec.phrases) != 1 || rec.phrases[0] != "after the rain stopped," {
		t.Fatalf("got %q, want split after the comma", rec.phrases)
	}
	if got := b.Pending(); got != "we walked home slowly today " {
		t.Errorf("remainder = %q", got)
	}
}

func TestSplitsBeforePrepositionWithProperNoun(t *testing.T) {
	rec := newRecorder()
	b := New(rec.dispatch, testLogger())

	b.AddToken("yesterday we drove all the way to Boston happily indeed")
	if len(rec.phrases) != 1 || rec.phrases[0] != "yesterday we drove all the way" {
		t.Fatalf("got %q, want split before the preposition", rec.phrases)
	}
	if got := b.Pending(); got != "to Boston happily indeed " {
		t.Errorf("remainder = %q", got)
	}
}

func TestForceFlush(t *testing.T) {
	rec := newRecorder()
	b := New(rec.dispatch, testLogger())

	b.Flush(true)
	if len(rec.phrases) != 0 {
		t.Fatalf("empty force flush dispatched %q", rec.phrases)
	}

	b.AddToken("Okay")
	b.Flush(true)
	if len(rec.phrases) != 1 || rec.phrases[0] != "Okay" {
		t.Fatalf("got %q, want forced single word", rec.phrases)
	}
}

func TestWatchdogFlushesAfterSilence(t *testing.T) {
	rec := newRecorder()
	b := New(rec.dispatch, testLogger(), WithSilenceTimeout(20*time.Millisecond))

	b.AddToken("Hello")

	select {
	case got := <-rec.ch:
		if got != "Hello" {
			t.Errorf("watchdog dispatched %q", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("watchdog never flushed the buffer")
	}
}

func TestResetDiscardsWithoutDispatch(t *testing.T) {
	rec := newRecorder()
	b := New(rec.dispatch, testLogger(), WithSilenceTimeout(20*time.Millisecond))

	b.AddToken("Hello there my")
	b.Reset()

	if got := b.Pending(); got != "" {
		t.Errorf("buffer survived reset: %q", got)
	}

	b.Flush(true)
	select {
	case got := <-rec.ch:
		t.Fatalf("dispatched %q after reset", got)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	rec := newRecorder()
	b := New(rec.dispatch, testLogger(), WithMinWords(1), WithMaxWords(3))

	b.AddToken("one two three four")
	if len(rec.phrases) != 1 {
		t.Fatalf("got %d phrases, want 1", len(rec.phrases))
	}
}
