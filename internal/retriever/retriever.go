package retriever

import (
	"context"
	"fmt"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/index"
	"github.com/Septimus4/AgendaFlow/internal/queryparse"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// Defaults mirror the production retrieval configuration.
const (
	DefaultKInitial  = 12
	DefaultKFinal    = 5
	DefaultDiversity = 0.3
)

// Searcher is the slice of the index the retriever needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]index.SearchResult, error)
}

// Embedder re-embeds the filtered candidate pool for MMR re-ranking.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever over-fetches from the vector index, applies the metadata filter
// chain and diversifies the survivors with MMR.
type Retriever struct {
	searcher Searcher
	embedder Embedder

	kInitial  int
	kFinal    int
	diversity float64
}

// Config tunes a Retriever; zero values use the defaults.
type Config struct {
	KInitial  int
	KFinal    int
	Diversity float64
}

// New creates a Retriever over the given searcher and embedder.
func New(searcher Searcher, embedder Embedder, cfg Config) *Retriever {
	if cfg.KInitial <= 0 {
		cfg.KInitial = DefaultKInitial
	}
	if cfg.KFinal <= 0 {
		cfg.KFinal = DefaultKFinal
	}
	if cfg.Diversity <= 0 || cfg.Diversity >= 1 {
		cfg.Diversity = DefaultDiversity
	}
	return &Retriever{
		searcher:  searcher,
		embedder:  embedder,
		kInitial:  cfg.KInitial,
		kFinal:    cfg.KFinal,
		diversity: cfg.Diversity,
	}
}

// Retrieve returns up to kFinal documents relevant to the question and
// compatible with every constraint. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, c queryparse.Constraints) ([]event.Document, error) {
	results, err := r.searcher.Search(ctx, question, r.kInitial)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(results) == 0 {
		logger.Warn("No search results", "question", question)
		return nil, nil
	}

	docs := make([]event.Document, len(results))
	for i, res := range results {
		docs[i] = res.Document
	}

	filtered := filterByMetadata(docs, c)
	if len(filtered) == 0 {
		logger.Info("No results after filtering", "candidates", len(docs))
		return nil, nil
	}
	logger.Debug("Filtered candidates", "before", len(docs), "after", len(filtered))

	if len(filtered) > r.kFinal {
		filtered, err = r.diversify(ctx, question, filtered)
		if err != nil {
			return nil, err
		}
	}

	if len(filtered) > r.kFinal {
		filtered = filtered[:r.kFinal]
	}

	if !venueDiverse(filtered) {
		logger.Info("Low venue diversity in results")
	}

	return filtered, nil
}

// diversify re-ranks the candidate pool with MMR, lambda = 1 - diversity.
func (r *Retriever) diversify(ctx context.Context, question string, docs []event.Document) ([]event.Document, error) {
	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Text
	}
	docVecs, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed candidates: %w", err)
	}
	queryVec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}

	selected := maximalMarginalRelevance(queryVec, docVecs, r.kFinal, 1-r.diversity)
	out := make([]event.Document, len(selected))
	for i, idx := range selected {
		out[i] = docs[idx]
	}
	logger.Debug("Applied MMR", "pool", len(docs), "selected", len(out))
	return out, nil
}

// venueDiverse reports whether the top results spread across venues and
// dates. Diagnostic only; concentration does not change the result set.
func venueDiverse(docs []event.Document) bool {
	top := docs
	if len(top) > 5 {
		top = top[:5]
	}
	if len(top) <= 2 {
		return true
	}
	counts := map[string]int{}
	maxCount := 0
	for _, doc := range top {
		key := doc.Metadata.VenueName + "_" + doc.Metadata.StartDatetime
		counts[key]++
		if counts[key] > maxCount {
			maxCount = counts[key]
		}
	}
	return maxCount <= len(top)/2
}
