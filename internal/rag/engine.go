// Package rag retrieves memory snippets relevant to what the user just
// said. Documents are split into paragraph chunks, embedded once at load
// time, and ranked by cosine similarity at query time. Everything lives
// in memory; a grandmother's scrapbook does not need a vector database.
package rag

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/akarimi/nana/internal/logger"
)

// DefaultTopK is how many chunks Retrieve returns.
const DefaultTopK = 2

// DefaultMinChunkChars filters out headings and stray lines; only
// paragraphs longer than this are indexed.
const DefaultMinChunkChars = 50

// Embedder turns texts into vectors. Satisfied by llm.Client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures the Engine.
type Option func(*Engine)

// WithTopK sets how many chunks Retrieve returns.
func WithTopK(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.topK = n
		}
	}
}

// WithMinChunkChars sets the minimum paragraph length worth indexing.
func WithMinChunkChars(n int) Option {
	return func(e *Engine) { e.minChars = n }
}

type chunk struct {
	text   string
	vector []float32
}

// Engine is an in-memory embedding index over paragraph chunks.
type Engine struct {
	embed    Embedder
	log      *logger.Logger
	topK     int
	minChars int

	mu     sync.RWMutex
	chunks []chunk
}

// NewEngine creates an empty retrieval engine.
func NewEngine(embed Embedder, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		embed:    embed,
		log:      log,
		topK:     DefaultTopK,
		minChars: DefaultMinChunkChars,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadFile splits a document into paragraphs and indexes them.
func (e *Engine) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return e.LoadText(ctx, string(data))
}

// LoadDir indexes every .txt and .md file in dir. Missing directories
// are not an error; the engine just stays empty.
func (e *Engine) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		e.log.Debug("rag: memory dir %s does not exist, skipping", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".txt" && ext != ".md" {
			continue
		}
		if err := e.LoadFile(ctx, filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LoadText splits raw text into paragraph chunks, embeds them in one
// batch, and adds them to the index.
func (e *Engine) LoadText(ctx context.Context, text string) error {
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if len(p) > e.minChars {
			paras = append(paras, p)
		}
	}
	if len(paras) == 0 {
		return nil
	}

	vectors, err := e.embed.Embed(ctx, paras)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(paras), err)
	}
	if len(vectors) != len(paras) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(paras))
	}

	e.mu.Lock()
	for i, p := range paras {
		e.chunks = append(e.chunks, chunk{text: p, vector: vectors[i]})
	}
	total := len(e.chunks)
	e.mu.Unlock()

	e.log.Debug("rag: indexed %d chunks (%d total)", len(paras), total)
	return nil
}

// Len returns the number of indexed chunks.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.chunks)
}

// Retrieve returns the most similar chunks to the query, joined with
// blank lines. An empty index yields an empty string without error.
func (e *Engine) Retrieve(ctx context.Context, query string) (string, error) {
	e.mu.RLock()
	empty := len(e.chunks) == 0
	e.mu.RUnlock()
	if empty || strings.TrimSpace(query) == "" {
		return "", nil
	}

	vectors, err := e.embed.Embed(ctx, []string{query})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	qv := vectors[0]

	type scored struct {
		text  string
		score float64
	}

	e.mu.RLock()
	ranked := make([]scored, 0, len(e.chunks))
	for _, c := range e.chunks {
		ranked = append(ranked, scored{text: c.text, score: cosine(qv, c.vector)})
	}
	e.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	n := e.topK
	if n > len(ranked) {
		n = len(ranked)
	}
	parts := make([]string, 0, n)
	for _, r := range ranked[:n] {
		parts = append(parts, r.text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// cosine computes cosine similarity; mismatched or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
