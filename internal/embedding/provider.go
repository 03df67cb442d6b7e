package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Septimus4/AgendaFlow/pkg/ai"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

const (
	defaultMaxTokens = 512
	defaultBatchSize = 32
)

// Generator produces L2-normalized embedding vectors for documents and
// queries. Inputs are truncated to a fixed token budget before embedding so
// repeated calls are deterministic, and vectors are cached on disk keyed by
// the exact model input.
//
// E5-family models expect asymmetric "query: " / "passage: " prefixes; they
// are applied automatically when the model name contains "e5".
type Generator struct {
	client ai.Client
	model  string
	isE5   bool

	enc       *tiktoken.Tiktoken
	maxTokens int
	batchSize int

	cache *diskCache
}

// NewGeneratorParams configures a Generator. CacheDir may be empty to
// disable the disk cache.
type NewGeneratorParams struct {
	Client    ai.Client
	Model     string
	CacheDir  string
	MaxTokens int
	BatchSize int
}

// NewGenerator creates a Generator for the given model.
func NewGenerator(params NewGeneratorParams) (*Generator, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("embedding: client is required")
	}
	if params.Model == "" {
		return nil, fmt.Errorf("embedding: model is required")
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("embedding: load encoding: %w", err)
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var cache *diskCache
	if params.CacheDir != "" {
		cache, err = newDiskCache(params.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("embedding: init cache: %w", err)
		}
	}

	return &Generator{
		client:    params.Client,
		model:     params.Model,
		isE5:      strings.Contains(strings.ToLower(params.Model), "e5"),
		enc:       enc,
		maxTokens: maxTokens,
		batchSize: batchSize,
		cache:     cache,
	}, nil
}

// Model returns the configured embedding model name.
func (g *Generator) Model() string {
	return g.model
}

// EmbedTexts embeds document texts as passages, preserving order. Cached
// vectors are reused; misses are embedded in batches.
func (g *Generator) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("embedding: text %d is empty", i)
		}
		inputs[i] = g.prepare(text, "passage: ")
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	if g.cache != nil {
		for i, in := range inputs {
			if vec, ok := g.cache.load(in); ok {
				out[i] = vec
				continue
			}
			missIdx = append(missIdx, i)
		}
	} else {
		missIdx = make([]int, len(inputs))
		for i := range inputs {
			missIdx[i] = i
		}
	}

	if len(missIdx) > 0 {
		logger.Debug("Embedding texts", "total", len(texts), "cached", len(texts)-len(missIdx))
	}

	for start := 0; start < len(missIdx); start += g.batchSize {
		end := min(start+g.batchSize, len(missIdx))
		batch := make([]string, 0, end-start)
		for _, idx := range missIdx[start:end] {
			batch = append(batch, inputs[idx])
		}

		vecs, err := g.client.GenerateEmbeddings(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embedding: result size mismatch: got %d want %d", len(vecs), len(batch))
		}

		for j, idx := range missIdx[start:end] {
			vec := normalizeL2(vecs[j])
			out[idx] = vec
			if g.cache != nil {
				g.cache.store(inputs[idx], vec)
			}
		}
	}

	return out, nil
}

// EmbedQuery embeds a single search query.
func (g *Generator) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding: query is empty")
	}
	input := g.prepare(text, "query: ")

	if g.cache != nil {
		if vec, ok := g.cache.load(input); ok {
			return vec, nil
		}
	}

	vecs, err := g.client.GenerateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding: unexpected result size: got %d want 1", len(vecs))
	}

	vec := normalizeL2(vecs[0])
	if g.cache != nil {
		g.cache.store(input, vec)
	}
	return vec, nil
}

// prepare applies the E5 prefix (when relevant) and truncates the input to
// the token budget.
func (g *Generator) prepare(text, prefix string) string {
	if g.isE5 {
		text = prefix + text
	}
	tokens := g.enc.Encode(text, nil, nil)
	if len(tokens) <= g.maxTokens {
		return text
	}
	return g.enc.Decode(tokens[:g.maxTokens])
}

func normalizeL2(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
