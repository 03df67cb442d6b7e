package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// Mode selects how events are sourced from OpenAgenda.
const (
	ModeAgenda     = "agenda"     // per-agenda listing via discovery
	ModeTransverse = "transverse" // cross-agenda listing (not enabled for all keys)
)

// Loader fetches, cleans and deduplicates the event corpus for one city.
type Loader struct {
	client *Client
	city   string
	mode   string
}

// NewLoader creates a Loader. mode is ModeAgenda or ModeTransverse.
func NewLoader(client *Client, city, mode string) *Loader {
	if city == "" {
		city = "Paris"
	}
	if mode == "" {
		mode = ModeAgenda
	}
	return &Loader{client: client, city: city, mode: mode}
}

// FetchEvents pulls upcoming events, cleans the raw records and removes
// duplicates. Unusable records are logged and skipped.
func (l *Loader) FetchEvents(ctx context.Context) ([]event.Event, error) {
	opts := FetchOptions{
		City:     l.city,
		Relative: []string{"current", "upcoming"},
	}

	var raws []RawEvent
	if l.mode == ModeTransverse {
		fetched, err := l.client.FetchEventsTransverse(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("transverse fetch: %w", err)
		}
		raws = fetched
	} else {
		agendas, err := l.client.DiscoverAgendas(ctx, l.city, 100)
		if err != nil {
			return nil, err
		}
		for _, agenda := range agendas {
			fetched, err := l.client.FetchAgendaEvents(ctx, agenda.UID.String(), opts)
			if err != nil {
				logger.Warn("Skipping agenda after fetch error", "agenda", agenda.UID.String(), "err", err)
				continue
			}
			raws = append(raws, fetched...)
		}
	}

	events := make([]event.Event, 0, len(raws))
	skipped := 0
	for i := range raws {
		cleaned, err := CleanEvent(&raws[i])
		if err != nil {
			logger.Debug("Skipping event", "err", err)
			skipped++
			continue
		}
		events = append(events, *cleaned)
	}
	logger.Info("Cleaned events", "kept", len(events), "skipped", skipped)

	return Deduplicate(events, DefaultSimilarityThreshold), nil
}

type snapshot struct {
	City      string        `json:"city"`
	FetchedAt time.Time     `json:"fetched_at"`
	Events    []event.Event `json:"events"`
}

// SaveSnapshot writes the fetched corpus to a JSON file so index builds can
// be replayed without hitting the API.
func SaveSnapshot(path, city string, events []event.Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(snapshot{
		City:      city,
		FetchedAt: time.Now().UTC(),
		Events:    events,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a corpus snapshot written by SaveSnapshot.
func LoadSnapshot(path string) ([]event.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap.Events, nil
}
