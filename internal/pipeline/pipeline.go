package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/queryparse"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// ErrNotReady is returned when no index snapshot has been built or loaded.
var ErrNotReady = errors.New("pipeline: index not ready")

// Readiness reports whether the underlying index can serve searches.
type Readiness interface {
	Ready() bool
}

// Retrieverer fetches filtered, diversified documents for a question.
type Retrieverer interface {
	Retrieve(ctx context.Context, question string, c queryparse.Constraints) ([]event.Document, error)
}

// Overrides let API callers pin constraints instead of relying on extraction.
// Zero values leave the extracted constraint in place.
type Overrides struct {
	FromDate       *time.Time
	ToDate         *time.Time
	Category       string
	Price          string
	Arrondissement int
	Language       string
}

// EventSummary is the structured projection of a recommended event.
type EventSummary struct {
	Title          string   `json:"title"`
	StartDatetime  string   `json:"start_datetime"`
	VenueName      string   `json:"venue_name"`
	City           string   `json:"city"`
	Arrondissement string   `json:"arrondissement,omitempty"`
	Price          string   `json:"price"`
	URL            string   `json:"url,omitempty"`
	Categories     []string `json:"categories,omitempty"`
}

// AnswerResult is the full outcome of one question: the answer text, the
// structured events behind it, and per-stage timings. Error is set when the
// answer came from the degraded fallback path.
type AnswerResult struct {
	Answer         string                 `json:"answer"`
	Events         []EventSummary         `json:"events"`
	Sources        []string               `json:"sources"`
	FiltersApplied queryparse.Constraints `json:"filters_applied"`
	RetrievalMs    int64                  `json:"retrieval_ms"`
	GenerationMs   int64                  `json:"generation_ms"`
	LatencyMs      int64                  `json:"latency_ms"`
	Error          string                 `json:"error,omitempty"`
}

// Pipeline orchestrates query understanding, retrieval and answer
// generation. It is safe for concurrent use once constructed.
type Pipeline struct {
	parser    *queryparse.Parser
	readiness Readiness
	retriever Retrieverer
	generator *Generator
}

// New assembles a Pipeline from its stages.
func New(parser *queryparse.Parser, readiness Readiness, r Retrieverer, generator *Generator) *Pipeline {
	return &Pipeline{
		parser:    parser,
		readiness: readiness,
		retriever: r,
		generator: generator,
	}
}

// Answer processes one question end to end. ErrNotReady is the only
// precondition failure; retrieval errors propagate, generation errors degrade
// to the templated fallback and are surfaced in the result's Error field.
func (p *Pipeline) Answer(ctx context.Context, question string, o Overrides) (*AnswerResult, error) {
	start := time.Now()

	c := p.parser.Parse(question)
	applyOverrides(&c, o)

	if p.readiness == nil || !p.readiness.Ready() {
		return nil, ErrNotReady
	}

	retrievalStart := time.Now()
	docs, err := p.retriever.Retrieve(ctx, question, c)
	if err != nil {
		return nil, err
	}
	retrievalMs := time.Since(retrievalStart).Milliseconds()
	logger.Info("Retrieval finished", "documents", len(docs), "took_ms", retrievalMs)

	generationStart := time.Now()
	answer, genErr := p.generator.Generate(ctx, question, docs, c.Language, c)
	generationMs := time.Since(generationStart).Milliseconds()

	result := &AnswerResult{
		Answer:         answer,
		FiltersApplied: c,
		RetrievalMs:    retrievalMs,
		GenerationMs:   generationMs,
		LatencyMs:      time.Since(start).Milliseconds(),
	}
	if genErr != nil {
		result.Error = genErr.Error()
		return result, nil
	}

	for _, doc := range docs {
		m := doc.Metadata
		result.Events = append(result.Events, EventSummary{
			Title:          m.Title,
			StartDatetime:  m.StartDatetime,
			VenueName:      m.VenueName,
			City:           m.City,
			Arrondissement: m.Arrondissement,
			Price:          priceLabel(m),
			URL:            m.URL,
			Categories:     m.Categories,
		})
		if m.URL != "" {
			result.Sources = append(result.Sources, m.URL)
		}
	}
	return result, nil
}

func applyOverrides(c *queryparse.Constraints, o Overrides) {
	if o.FromDate != nil {
		c.StartDate = o.FromDate
	}
	if o.ToDate != nil {
		c.EndDate = o.ToDate
	}
	if o.Category != "" {
		c.Category = o.Category
	}
	if o.Price != "" {
		c.Price = o.Price
	}
	if o.Arrondissement != 0 {
		c.Arrondissement = o.Arrondissement
	}
	if o.Language != "" {
		c.Language = o.Language
	}
}
