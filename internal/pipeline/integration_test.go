package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/index"
	"github.com/Septimus4/AgendaFlow/internal/retriever"
)

// tokenEmbedder hashes tokens into fixed dimensions so shared vocabulary
// yields nearby vectors, standing in for a real embedding model.
type tokenEmbedder struct {
	dim int
}

func (e *tokenEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dim]++
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (e *tokenEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *tokenEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *tokenEmbedder) Model() string { return "token-hash-test" }

// weekendCorpus is one free weekend jazz concert among nine paid events that
// miss the constraints on category, price or date.
func weekendCorpus() []event.Document {
	jazz := event.Document{
		Text: "Free jazz concert open air quartet music",
		Metadata: event.Metadata{
			EventID:       "evt-jazz",
			Title:         "Free Jazz in the Park",
			StartDatetime: "2026-07-04T19:00:00Z", // Saturday evening
			VenueName:     "Parc de la Villette",
			City:          "Paris",
			CategoryNorm:  "music",
			IsFree:        true,
			PriceBucket:   event.PriceFree,
			URL:           "https://example.org/free-jazz",
		},
	}

	others := []struct {
		text     string
		category string
		start    string
	}{
		{"modern art exhibition paintings gallery", "exhibition", "2026-07-04T09:00:00Z"},
		{"children puppet theater show families", "kids", "2026-07-04T14:00:00Z"},
		{"electronic club night dj set", "music", "2026-07-08T22:00:00Z"},
		{"poetry reading literature evening", "literature", "2026-07-05T18:00:00Z"},
		{"contemporary dance ballet performance", "dance", "2026-07-11T20:00:00Z"},
		{"street food festival market", "festival", "2026-07-04T11:00:00Z"},
		{"classical orchestra symphony concert hall", "music", "2026-07-15T20:00:00Z"},
		{"photography workshop darkroom basics", "workshop", "2026-07-04T10:00:00Z"},
		{"opera gala evening soprano recital", "music", "2026-07-04T19:30:00Z"},
	}

	docs := []event.Document{jazz}
	for i, o := range others {
		docs = append(docs, event.Document{
			Text: o.text,
			Metadata: event.Metadata{
				EventID:       fmt.Sprintf("evt-%d", i),
				Title:         o.text,
				StartDatetime: o.start,
				VenueName:     fmt.Sprintf("Venue %d", i),
				City:          "Paris",
				CategoryNorm:  o.category,
				PriceBucket:   event.PriceMedium,
			},
		})
	}
	return docs
}

func TestAnswerOverBuiltIndex(t *testing.T) {
	ctx := context.Background()
	embedder := &tokenEmbedder{dim: 64}

	manager := index.NewManager(embedder, nil, index.DefaultParams())
	if err := manager.Build(ctx, weekendCorpus()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	question := "free jazz concert this weekend"

	results, err := manager.Search(ctx, question, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no search results")
	}
	if results[0].Document.Metadata.EventID != "evt-jazz" {
		t.Fatalf("top search result = %+v, want the jazz concert", results[0].Document.Metadata)
	}

	client := &stubAIClient{err: errors.New("model unavailable")}
	p := New(
		fixedParser(t), // Wednesday July 1 2026, so the weekend is July 4-5
		manager,
		retriever.New(manager, embedder, retriever.Config{}),
		NewGenerator(client, "m"),
	)

	res, err := p.Answer(ctx, question, Overrides{})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Error == "" || !strings.Contains(res.Error, "model unavailable") {
		t.Errorf("error field = %q", res.Error)
	}
	if !strings.Contains(res.Answer, "1. Free Jazz in the Park - Parc de la Villette") {
		t.Errorf("fallback answer missing the concert:\n%s", res.Answer)
	}
	if !strings.Contains(res.Answer, "https://example.org/free-jazz") {
		t.Errorf("fallback answer missing the URL:\n%s", res.Answer)
	}
	if strings.Contains(res.Answer, "2. ") {
		t.Errorf("paid or off-weekend events leaked past the filters:\n%s", res.Answer)
	}

	c := res.FiltersApplied
	if c.Category != "music" || c.Price != "free" {
		t.Errorf("unexpected constraints: %+v", c)
	}
	wantStart := time.Date(2026, 7, 3, 22, 0, 0, 0, time.UTC)
	if c.StartDate == nil || !c.StartDate.Equal(wantStart) {
		t.Errorf("weekend start = %v, want %v", c.StartDate, wantStart)
	}
}
