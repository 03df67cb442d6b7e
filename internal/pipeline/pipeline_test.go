package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/queryparse"
)

type stubReadiness bool

func (s stubReadiness) Ready() bool { return bool(s) }

type stubRetriever struct {
	docs     []event.Document
	err      error
	lastCons queryparse.Constraints
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, c queryparse.Constraints) ([]event.Document, error) {
	s.lastCons = c
	return s.docs, s.err
}

func fixedParser(t *testing.T) *queryparse.Parser {
	t.Helper()
	p := queryparse.NewParser()
	fixed := time.Date(2026, 7, 1, 15, 0, 0, 0, p.Location) // Wednesday
	p.Now = func() time.Time { return fixed }
	return p
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("not ready", func(t *testing.T) {
		p := New(fixedParser(t), stubReadiness(false), &stubRetriever{}, NewGenerator(&stubAIClient{}, "m"))
		if _, err := p.Answer(ctx, "jazz ce soir", Overrides{}); !errors.Is(err, ErrNotReady) {
			t.Errorf("err = %v, want ErrNotReady", err)
		}
	})

	t.Run("retrieval error propagates", func(t *testing.T) {
		r := &stubRetriever{err: errors.New("index offline")}
		p := New(fixedParser(t), stubReadiness(true), r, NewGenerator(&stubAIClient{}, "m"))
		if _, err := p.Answer(ctx, "jazz", Overrides{}); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("no results skips the model", func(t *testing.T) {
		client := &stubAIClient{answer: "unused"}
		p := New(fixedParser(t), stubReadiness(true), &stubRetriever{}, NewGenerator(client, "m"))

		res, err := p.Answer(ctx, "Quels concerts de jazz gratuits ce week-end ?", Overrides{})
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if client.calls != 0 {
			t.Errorf("model called %d times with no documents", client.calls)
		}
		if !strings.Contains(res.Answer, "Je n'ai pas trouvé") {
			t.Errorf("unexpected answer: %q", res.Answer)
		}
		if len(res.Events) != 0 || res.Error != "" {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("successful answer carries events, sources and timings", func(t *testing.T) {
		client := &stubAIClient{answer: "Voici le concert du Sunset."}
		r := &stubRetriever{docs: []event.Document{concertDoc()}}
		p := New(fixedParser(t), stubReadiness(true), r, NewGenerator(client, "m"))

		res, err := p.Answer(ctx, "Quels concerts de jazz gratuits ce week-end dans le 1er ?", Overrides{})
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if res.Answer != "Voici le concert du Sunset." {
			t.Errorf("answer = %q", res.Answer)
		}
		if len(res.Events) != 1 {
			t.Fatalf("got %d events, want 1", len(res.Events))
		}
		ev := res.Events[0]
		if ev.Title != "Jazz au Sunset" || ev.Price != "Free" || ev.VenueName != "Sunset-Sunside" {
			t.Errorf("unexpected event: %+v", ev)
		}
		if len(res.Sources) != 1 || res.Sources[0] != "https://example.org/jazz" {
			t.Errorf("unexpected sources: %v", res.Sources)
		}
		if res.Error != "" {
			t.Errorf("unexpected error field: %q", res.Error)
		}
		if res.LatencyMs < 0 || res.RetrievalMs < 0 || res.GenerationMs < 0 {
			t.Errorf("negative timings: %+v", res)
		}

		// Extraction fed the retriever.
		c := r.lastCons
		if c.Category != "music" || c.Price != "free" || c.Arrondissement != 1 {
			t.Errorf("unexpected constraints: %+v", c)
		}
		if c.StartDate == nil || c.EndDate == nil {
			t.Error("expected a weekend date range")
		}
		if res.FiltersApplied.Category != "music" {
			t.Errorf("filters not echoed: %+v", res.FiltersApplied)
		}
	})

	t.Run("overrides beat extraction", func(t *testing.T) {
		r := &stubRetriever{docs: []event.Document{concertDoc()}}
		p := New(fixedParser(t), stubReadiness(true), r, NewGenerator(&stubAIClient{answer: "ok"}, "m"))

		from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)
		_, err := p.Answer(ctx, "concerts de jazz ce week-end", Overrides{
			FromDate:       &from,
			ToDate:         &to,
			Category:       "theater",
			Price:          "cheap",
			Arrondissement: 5,
			Language:       "en",
		})
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		c := r.lastCons
		if !c.StartDate.Equal(from) || !c.EndDate.Equal(to) {
			t.Errorf("date overrides not applied: %+v", c)
		}
		if c.Category != "theater" || c.Price != "cheap" || c.Arrondissement != 5 || c.Language != "en" {
			t.Errorf("overrides not applied: %+v", c)
		}
	})

	t.Run("generation failure degrades with error recorded", func(t *testing.T) {
		client := &stubAIClient{err: errors.New("model timeout")}
		r := &stubRetriever{docs: []event.Document{concertDoc()}}
		p := New(fixedParser(t), stubReadiness(true), r, NewGenerator(client, "m"))

		res, err := p.Answer(ctx, "Quels concerts de jazz ce week-end ?", Overrides{})
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if res.Error == "" || !strings.Contains(res.Error, "model timeout") {
			t.Errorf("error field = %q", res.Error)
		}
		if !strings.Contains(res.Answer, "Jazz au Sunset - Sunset-Sunside") {
			t.Errorf("fallback answer missing event list: %q", res.Answer)
		}
		if len(res.Events) != 0 {
			t.Errorf("degraded result should not carry structured events: %+v", res.Events)
		}
	})
}
