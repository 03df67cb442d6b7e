package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/queryparse"
	"github.com/Septimus4/AgendaFlow/pkg/ai"
)

type stubAIClient struct {
	answer     string
	err        error
	lastPrompt string
	lastOpts   ai.GenerateOptions
	calls      int
}

func (s *stubAIClient) GenerateCompletion(_ context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	s.lastOpts = ai.GenerateOptions{}
	for _, opt := range opts {
		opt(&s.lastOpts)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubAIClient) GenerateEmbeddings(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAIClient) ResetMetrics()               {}
func (s *stubAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func concertDoc() event.Document {
	return event.Document{
		Text: "Jazz au Sunset\nSoirée jazz avec quartet.",
		Metadata: event.Metadata{
			Title:          "Jazz au Sunset",
			StartDatetime:  "2026-07-04T19:00:00Z",
			VenueName:      "Sunset-Sunside",
			City:           "Paris",
			Arrondissement: "1e",
			IsFree:         true,
			Categories:     []string{"Concert", "Jazz", "Soirée", "Musique"},
			URL:            "https://example.org/jazz",
		},
	}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("no documents yields canned answer per language", func(t *testing.T) {
		client := &stubAIClient{answer: "unused"}
		g := NewGenerator(client, "mistral-small-latest")

		fr, err := g.Generate(ctx, "concerts ?", nil, "fr", queryparse.Constraints{})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !strings.Contains(fr, "Je n'ai pas trouvé") {
			t.Errorf("unexpected French answer: %q", fr)
		}

		en, err := g.Generate(ctx, "concerts?", nil, "en", queryparse.Constraints{})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !strings.Contains(en, "couldn't find any events") {
			t.Errorf("unexpected English answer: %q", en)
		}
		if client.calls != 0 {
			t.Errorf("model called %d times with no documents", client.calls)
		}
	})

	t.Run("prompt carries events and constraints", func(t *testing.T) {
		client := &stubAIClient{answer: "Voici un concert."}
		g := NewGenerator(client, "mistral-small-latest")

		answer, err := g.Generate(ctx, "jazz gratuit ?", []event.Document{concertDoc()}, "fr",
			queryparse.Constraints{Category: "music", Price: "free", Arrondissement: 1})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if answer != "Voici un concert." {
			t.Errorf("answer = %q", answer)
		}
		for _, want := range []string{
			"Event 1:",
			"Title: Jazz au Sunset",
			"Venue: Sunset-Sunside, Paris (1e)",
			"Price: Free",
			"- Category: music",
			"- Price: free",
			"- Arrondissement: 1",
			"URL: https://example.org/jazz",
		} {
			if !strings.Contains(client.lastPrompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
		// At most three categories listed.
		if strings.Contains(client.lastPrompt, "Musique") {
			t.Error("prompt lists more than three categories")
		}
		if len(client.lastOpts.SystemPrompts) != 1 || !strings.Contains(client.lastOpts.SystemPrompts[0], "concierge d'événements") {
			t.Errorf("unexpected system prompts: %v", client.lastOpts.SystemPrompts)
		}
	})

	t.Run("english question gets english system prompt", func(t *testing.T) {
		client := &stubAIClient{answer: "Here you go."}
		g := NewGenerator(client, "mistral-small-latest")

		if _, err := g.Generate(ctx, "free jazz?", []event.Document{concertDoc()}, "en", queryparse.Constraints{}); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(client.lastOpts.SystemPrompts) != 1 || !strings.Contains(client.lastOpts.SystemPrompts[0], "event concierge assistant") {
			t.Errorf("unexpected system prompts: %v", client.lastOpts.SystemPrompts)
		}
	})

	t.Run("date rendered in paris local time", func(t *testing.T) {
		client := &stubAIClient{answer: "ok"}
		g := NewGenerator(client, "mistral-small-latest")

		if _, err := g.Generate(ctx, "jazz", []event.Document{concertDoc()}, "fr", queryparse.Constraints{}); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		// 19:00 UTC on July 4 is 21:00 in Paris (UTC+2).
		if !strings.Contains(client.lastPrompt, "Saturday 04 July 2026, 21:00") {
			t.Errorf("prompt date not in Paris local time:\n%s", client.lastPrompt)
		}
	})

	t.Run("model failure falls back to event list", func(t *testing.T) {
		client := &stubAIClient{err: errors.New("timeout")}
		g := NewGenerator(client, "mistral-small-latest")

		docs := []event.Document{concertDoc(), concertDoc(), concertDoc(), concertDoc()}
		answer, err := g.Generate(ctx, "jazz", docs, "fr", queryparse.Constraints{})
		if err == nil {
			t.Fatal("expected the generation error to surface")
		}
		if !strings.Contains(answer, "J'ai rencontré une erreur") {
			t.Errorf("missing fallback header: %q", answer)
		}
		if !strings.Contains(answer, "1. Jazz au Sunset - Sunset-Sunside") {
			t.Errorf("missing event line: %q", answer)
		}
		if !strings.Contains(answer, "https://example.org/jazz") {
			t.Errorf("missing URL: %q", answer)
		}
		if strings.Contains(answer, "4.") {
			t.Errorf("fallback lists more than three events: %q", answer)
		}
	})

	t.Run("nil client degrades immediately", func(t *testing.T) {
		g := NewGenerator(nil, "")
		answer, err := g.Generate(ctx, "jazz", []event.Document{concertDoc()}, "en", queryparse.Constraints{})
		if err == nil {
			t.Fatal("expected an error")
		}
		if !strings.Contains(answer, "I encountered an error") {
			t.Errorf("unexpected answer: %q", answer)
		}
	})
}
