package retriever

import (
	"fmt"
	"strings"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/event"
	"github.com/Septimus4/AgendaFlow/internal/queryparse"
)

// filterByMetadata applies all constraints conjunctively. Documents with
// malformed stored timestamps are dropped when a date constraint is active;
// they cannot be proven to match.
func filterByMetadata(docs []event.Document, c queryparse.Constraints) []event.Document {
	var filtered []event.Document
	for _, doc := range docs {
		if !matchesDateRange(doc.Metadata, c.StartDate, c.EndDate) {
			continue
		}
		if !matchesCategory(doc.Metadata, c.Category) {
			continue
		}
		if !matchesPrice(doc.Metadata, c.Price) {
			continue
		}
		if !matchesArrondissement(doc.Metadata, c.Arrondissement) {
			continue
		}
		filtered = append(filtered, doc)
	}
	return filtered
}

func matchesDateRange(m event.Metadata, start, end *time.Time) bool {
	if start == nil && end == nil {
		return true
	}
	eventStart, err := time.Parse(time.RFC3339, m.StartDatetime)
	if err != nil {
		return false
	}
	if start != nil && eventStart.Before(*start) {
		return false
	}
	if end != nil && !eventStart.Before(*end) {
		return false
	}
	return true
}

func matchesCategory(m event.Metadata, category string) bool {
	if category == "" {
		return true
	}
	if m.CategoryNorm == category {
		return true
	}
	for _, c := range m.Categories {
		if strings.ToLower(c) == category {
			return true
		}
	}
	return false
}

func matchesPrice(m event.Metadata, price string) bool {
	switch price {
	case "":
		return true
	case "free":
		return m.IsFree
	case "cheap":
		return m.IsFree || m.PriceBucket == event.PriceFree || m.PriceBucket == event.PriceLow
	default:
		return true
	}
}

func matchesArrondissement(m event.Metadata, arrondissement int) bool {
	if arrondissement == 0 {
		return true
	}
	return m.Arrondissement == fmt.Sprintf("%de", arrondissement)
}
