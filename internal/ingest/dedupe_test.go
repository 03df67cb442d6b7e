package ingest

import (
	"testing"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/event"
)

func makeEvent(id, title, venue string, start time.Time) event.Event {
	return event.Event{
		EventID:       id,
		Title:         title,
		VenueName:     venue,
		City:          "Paris",
		StartDatetime: start,
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "jazz au parc", "jazz au parc", 1.0, 1.0},
		{"case insensitive", "Jazz au Parc", "jazz AU parc", 1.0, 1.0},
		{"near duplicate", "jazz au parc !", "jazz au parc", 0.85, 1.0},
		{"different", "opéra de paris", "atelier poterie", 0.0, 0.5},
		{"empty", "", "jazz", 0.0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("Similarity(%q, %q) = %f, want in [%f, %f]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestDeduplicate(t *testing.T) {
	day := time.Date(2026, 7, 4, 20, 0, 0, 0, time.UTC)

	t.Run("exact duplicates removed", func(t *testing.T) {
		events := []event.Event{
			makeEvent("b", "Jazz au Parc", "La Villette", day),
			makeEvent("a", "Jazz au Parc", "La Villette", day),
		}
		got := Deduplicate(events, 0.85)
		if len(got) != 1 {
			t.Fatalf("expected 1 event, got %d", len(got))
		}
		// Lowest EventID wins.
		if got[0].EventID != "a" {
			t.Errorf("expected event a kept, got %s", got[0].EventID)
		}
	})

	t.Run("fuzzy duplicates removed", func(t *testing.T) {
		events := []event.Event{
			makeEvent("1", "Concert de jazz au parc", "La Villette", day),
			makeEvent("2", "Concert de jazz au parc !", "La Villette", day),
		}
		got := Deduplicate(events, 0.85)
		if len(got) != 1 {
			t.Fatalf("expected 1 event, got %d", len(got))
		}
	})

	t.Run("same title different venue kept", func(t *testing.T) {
		events := []event.Event{
			makeEvent("1", "Jazz au Parc", "La Villette", day),
			makeEvent("2", "Jazz au Parc", "Parc Montsouris", day),
		}
		if got := Deduplicate(events, 0.85); len(got) != 2 {
			t.Fatalf("expected 2 events, got %d", len(got))
		}
	})

	t.Run("same title different day kept", func(t *testing.T) {
		events := []event.Event{
			makeEvent("1", "Jazz au Parc", "La Villette", day),
			makeEvent("2", "Jazz au Parc", "La Villette", day.Add(24*time.Hour)),
		}
		if got := Deduplicate(events, 0.85); len(got) != 2 {
			t.Fatalf("expected 2 events, got %d", len(got))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := Deduplicate(nil, 0.85); got != nil {
			t.Fatalf("expected nil, got %v", got)
		}
	})
}
