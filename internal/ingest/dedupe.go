package ingest

import (
	"sort"
	"strings"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// DefaultSimilarityThreshold is the minimum title similarity for two events
// at the same venue on the same day to count as duplicates.
const DefaultSimilarityThreshold = 0.85

// Similarity computes a normalized edit-distance ratio between two strings,
// case-insensitive. 1.0 means identical.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	dist := prev[len(rb)]
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

type dedupeKey struct {
	title string
	date  string
	venue string
}

// Deduplicate removes events that repeat the same title (exactly or fuzzily)
// at the same venue on the same day. Events are processed in EventID order so
// the result is deterministic.
func Deduplicate(events []event.Event, threshold float64) []event.Event {
	if len(events) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	sorted := make([]event.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EventID < sorted[j].EventID
	})

	seen := make(map[dedupeKey]struct{})
	var kept []event.Event

	for i := range sorted {
		e := &sorted[i]
		key := dedupeKey{
			title: e.NormalizedTitle(),
			date:  e.StartDatetime.UTC().Format("2006-01-02"),
			venue: strings.TrimSpace(strings.ToLower(e.VenueName)),
		}
		if _, ok := seen[key]; ok {
			logger.Debug("Skipping duplicate event", "title", e.Title)
			continue
		}

		isDuplicate := false
		for j := range kept {
			k := &kept[j]
			if k.StartDatetime.UTC().Format("2006-01-02") != key.date {
				continue
			}
			if strings.TrimSpace(strings.ToLower(k.VenueName)) != key.venue {
				continue
			}
			if sim := Similarity(k.NormalizedTitle(), key.title); sim >= threshold {
				logger.Debug("Skipping similar event", "title", e.Title, "existing", k.Title, "similarity", sim)
				isDuplicate = true
				break
			}
		}
		if isDuplicate {
			continue
		}

		seen[key] = struct{}{}
		kept = append(kept, *e)
	}

	logger.Info("Deduplicated events", "input", len(events), "kept", len(kept), "removed", len(events)-len(kept))
	return kept
}
