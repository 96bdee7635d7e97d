// Package segment turns a language-model token stream into speakable
// phrases. Tokens accumulate in a buffer; a phrase is cut loose when the
// text reaches a natural boundary (punctuation, length, or a pause in the
// token stream) and handed to a dispatch callback.
package segment

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/akarimi/nana/internal/logger"
)

// Defaults, tuned for snappy spoken responses.
const (
	// DefaultMinWords is the smallest buffer worth speaking. Anything
	// shorter is held back to avoid single-letter stutters.
	DefaultMinWords = 2
	// DefaultMaxWords triggers a safe-split search once the buffer grows
	// this long without hitting punctuation.
	DefaultMaxWords = 8
	// DefaultSilenceTimeout is how long the buffer may sit idle before
	// the watchdog force-flushes it.
	DefaultSilenceTimeout = 300 * time.Millisecond
)

// Coordinating conjunctions withheld at the end of a buffer: more text is
// almost certainly coming, so speaking now would sound clipped.
var trailingConjunctions = map[string]bool{
	"and": true, "but": true, "or": true, "so": true, "because": true,
}

// Conjunctions that make a good split point mid-buffer.
var splitConjunctions = map[string]bool{
	"and": true, "but": true, "or": true,
}

// Prepositions that, followed by a capitalised word, hint at a new clause
// or proper noun. Deliberately crude — behaviour parity with the tuned
// heuristic matters more than linguistic correctness.
var splitPrepositions = map[string]bool{
	"in": true, "at": true, "to": true, "from": true, "of": true, "on": true,
}

// Option configures the Buffer.
type Option func(*Buffer)

// WithMinWords sets the minimum word count for an unforced dispatch.
func WithMinWords(n int) Option {
	return func(b *Buffer) { b.minWords = n }
}

// WithMaxWords sets the word count that triggers a safe split.
func WithMaxWords(n int) Option {
	return func(b *Buffer) { b.maxWords = n }
}

// WithSilenceTimeout sets the watchdog interval. If no token arrives for
// this long, the buffer is force-flushed.
func WithSilenceTimeout(d time.Duration) Option {
	return func(b *Buffer) { b.silenceTimeout = d }
}

// Buffer accumulates tokens and decides when a phrase is ready to speak.
//
// AddToken never blocks: the only deferred work on the ingestion path is
// the silence watchdog, a single timer that every AddToken call atomically
// replaces. The dispatch callback runs synchronously on the caller's
// goroutine (or the watchdog's) and must not call back into the Buffer.
type Buffer struct {
	mu             sync.Mutex
	buf            string
	dispatch       func(phrase string)
	log            *logger.Logger
	minWords       int
	maxWords       int
	silenceTimeout time.Duration
	watchdog       *time.Timer
}

// New creates a phrase buffer. Each dispatched phrase is passed to the
// given callback; this is the only way phrases leave the buffer.
func New(dispatch func(phrase string), log *logger.Logger, opts ...Option) *Buffer {
	b := &Buffer{
		dispatch:       dispatch,
		log:            log,
		minWords:       DefaultMinWords,
		maxWords:       DefaultMaxWords,
		silenceTimeout: DefaultSilenceTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddToken appends a token, re-arms the silence watchdog, and evaluates
// the dispatch rules unforced. Returns immediately.
func (b *Buffer) AddToken(tok string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf += tok
	b.rearmWatchdogLocked()
	b.tryDispatchLocked(false)
}

// Flush evaluates the dispatch rules. When force is set, the minimum-word
// and trailing-conjunction holds are bypassed; the stream-end flush and
// the watchdog both use it. At most one phrase is dispatched per call.
func (b *Buffer) Flush(force bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tryDispatchLocked(force)
}

// Reset discards the buffer and cancels the watchdog without dispatching.
// Called on interrupt.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = ""
	b.stopWatchdogLocked()
}

// Pending returns the current buffered text. Mainly for tests and logging.
func (b *Buffer) Pending() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}

// rearmWatchdogLocked replaces the outstanding silence timer with a fresh
// one. Must be called with b.mu held.
func (b *Buffer) rearmWatchdogLocked() {
	b.stopWatchdogLocked()
	b.watchdog = time.AfterFunc(b.silenceTimeout, func() {
		b.log.Debug("segment: silence watchdog fired")
		b.Flush(true)
	})
}

func (b *Buffer) stopWatchdogLocked() {
	if b.watchdog != nil {
		b.watchdog.Stop()
		b.watchdog = nil
	}
}

// tryDispatchLocked applies the dispatch policy, in priority order:
//
//  1. below minWords and not forced -> hold
//  2. trailing . ! ? , -> dispatch the whole buffer, always
//  3. trailing coordinating conjunction and not forced -> hold
//  4. at maxWords or forced -> split at the best safe point, or dispatch
//     everything when none exists
//
// Must be called with b.mu held.
func (b *Buffer) tryDispatchLocked(force bool) {
	text := strings.TrimSpace(b.buf)
	if text == "" {
		return
	}
	words := strings.Fields(text)

	if !force && len(words) < b.minWords {
		return
	}

	if isHardBoundary(text[len(text)-1]) {
		b.emitLocked(text)
		return
	}

	if !force && trailingConjunctions[strings.ToLower(words[len(words)-1])] {
		return
	}

	if len(words) >= b.maxWords || force {
		if i := safeSplitIndex(words); i > 0 && i < len(words) {
			b.emitLocked(strings.Join(words[:i], " "))
			b.buf = strings.Join(words[i:], " ") + " "
			return
		}
		b.emitLocked(text)
	}
}

// emitLocked hands a phrase to the dispatch callback and clears the
// buffer. Must be called with b.mu held.
func (b *Buffer) emitLocked(text string) {
	b.log.Debug("segment: dispatching %q", text)
	b.dispatch(text)
	b.buf = ""
	b.stopWatchdogLocked()
}

func isHardBoundary(c byte) bool {
	return c == '.' || c == '!' || c == '?' || c == ','
}

// safeSplitIndex scans backward for a natural seam: after a
// comma-terminated word, before a lone conjunction, or before a
// preposition that introduces a capitalised word. Returns 0 when no seam
// exists.
func safeSplitIndex(words []string) int {
	for i := len(words) - 1; i > 0; i-- {
		w := words[i]
		if w[len(w)-1] == ',' {
			return i + 1
		}
		if splitConjunctions[strings.ToLower(w)] {
			return i
		}
		if i+1 < len(words) && startsUpper(words[i+1]) && splitPrepositions[strings.ToLower(w)] {
			return i
		}
	}
	return 0
}

func startsUpper(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}
