package ingest

import (
	"testing"
	"time"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "Concert de jazz", "Concert de jazz"},
		{"tags removed", "<p>Concert <b>de jazz</b></p>", "Concert de jazz"},
		{"entities decoded", "Th&eacute;&acirc;tre &amp; danse", "Théâtre & danse"},
		{"whitespace collapsed", "a \n\n  b\t c", "a b c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.in); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		name       string
		categories []string
		tags       []string
		want       string
	}{
		{"direct match", []string{"Concert"}, nil, "music"},
		{"substring match", []string{"Grande Exposition d'été"}, nil, "exhibition"},
		{"tag fallback", []string{"Divers"}, []string{"atelier"}, "workshop"},
		{"accented term", []string{"Théâtre"}, nil, "theater"},
		{"no match", []string{"Conférence"}, []string{"débat"}, ""},
		{"empty", nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCategory(tt.categories, tt.tags); got != tt.want {
				t.Errorf("NormalizeCategory(%v, %v) = %q, want %q", tt.categories, tt.tags, got, tt.want)
			}
		})
	}
}

func TestPriceBucket(t *testing.T) {
	tests := []struct {
		name      string
		priceInfo string
		isFree    bool
		want      string
	}{
		{"free flag wins", "20€", true, "free"},
		{"low", "8€", false, "low"},
		{"medium", "Tarif plein : 15€, réduit : 12€", false, "medium"},
		{"high", "35,50 €", false, "high"},
		{"min of multiple prices", "5€ / 25€", false, "low"},
		{"comma decimal", "9,90€", false, "low"},
		{"gratuit keyword", "Entrée gratuite", false, "free"},
		{"no info", "", false, ""},
		{"unparseable", "sur réservation", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceBucket(tt.priceInfo, tt.isFree); got != tt.want {
				t.Errorf("PriceBucket(%q, %v) = %q, want %q", tt.priceInfo, tt.isFree, got, tt.want)
			}
		})
	}
}

func TestExtractArrondissement(t *testing.T) {
	tests := []struct {
		name       string
		address    string
		postalCode string
		want       string
	}{
		{"postal code", "", "75011", "11e"},
		{"postal code stripped", "", "75003", "3e"},
		{"postal code out of range", "", "75099", ""},
		{"address fallback", "12 rue Truc, 4e arrondissement", "", "4e"},
		{"address with eme", "5ème arrondissement", "", "5e"},
		{"postal preferred over address", "3e arrondissement", "75018", "18e"},
		{"nothing", "rue de la Paix", "92100", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractArrondissement(tt.address, tt.postalCode); got != tt.want {
				t.Errorf("ExtractArrondissement(%q, %q) = %q, want %q", tt.address, tt.postalCode, got, tt.want)
			}
		})
	}
}

func TestNormalizeDatetime(t *testing.T) {
	t.Run("offset preserved and converted", func(t *testing.T) {
		got, err := NormalizeDatetime("2026-07-04T18:00:00+02:00")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := time.Date(2026, 7, 4, 16, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("naive assumed Paris time", func(t *testing.T) {
		got, err := NormalizeDatetime("2026-01-15 20:00:00")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// January: Paris is UTC+1.
		want := time.Date(2026, 1, 15, 19, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("garbage errors", func(t *testing.T) {
		if _, err := NormalizeDatetime("not a date"); err == nil {
			t.Error("expected error")
		}
	})
}
