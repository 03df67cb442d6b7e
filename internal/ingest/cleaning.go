package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/net/html"
)

var parisLocation = mustLoadLocation("Europe/Paris")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// categoryMapping maps raw category/tag terms to the normalized taxonomy.
// Matching is substring-based on lowercased terms.
var categoryMapping = []struct {
	term string
	norm string
}{
	{"concert", "music"},
	{"musique", "music"},
	{"jazz", "music"},
	{"rock", "music"},
	{"classique", "music"},
	{"electronic", "music"},
	{"théâtre", "theater"},
	{"theater", "theater"},
	{"théatre", "theater"},
	{"spectacle", "theater"},
	{"exposition", "exhibition"},
	{"exhibition", "exhibition"},
	{"expo", "exhibition"},
	{"art", "exhibition"},
	{"galerie", "exhibition"},
	{"musée", "exhibition"},
	{"museum", "exhibition"},
	{"enfants", "kids"},
	{"kids", "kids"},
	{"children", "kids"},
	{"famille", "kids"},
	{"family", "kids"},
	{"jeunesse", "kids"},
	{"festival", "festival"},
	{"fête", "festival"},
	{"cinéma", "cinema"},
	{"cinema", "cinema"},
	{"film", "cinema"},
	{"projection", "cinema"},
	{"danse", "dance"},
	{"dance", "dance"},
	{"ballet", "dance"},
	{"littérature", "literature"},
	{"literature", "literature"},
	{"lecture", "literature"},
	{"livre", "literature"},
	{"book", "literature"},
	{"salon du livre", "literature"},
	{"atelier", "workshop"},
	{"workshop", "workshop"},
	{"stage", "workshop"},
}

// StripHTML removes markup and decodes entities, collapsing whitespace.
func StripHTML(text string) string {
	if text == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(text))
	var b strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeCategory maps event categories and tags onto the normalized
// taxonomy. Returns "" when nothing matches.
func NormalizeCategory(categories, tags []string) string {
	terms := make([]string, 0, len(categories)+len(tags))
	for _, c := range categories {
		terms = append(terms, strings.ToLower(c))
	}
	for _, t := range tags {
		terms = append(terms, strings.ToLower(t))
	}

	for _, term := range terms {
		for _, m := range categoryMapping {
			if strings.Contains(term, m.term) {
				return m.norm
			}
		}
	}
	return ""
}

var euroPricePattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*€`)

// PriceBucket classifies an event's price information into
// free/low/medium/high. Returns "" when nothing can be determined.
func PriceBucket(priceInfo string, isFree bool) string {
	if isFree {
		return "free"
	}
	if priceInfo == "" {
		return ""
	}

	if matches := euroPricePattern.FindAllStringSubmatch(priceInfo, -1); len(matches) > 0 {
		minPrice := 0.0
		for i, m := range matches {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
			if err != nil {
				continue
			}
			if i == 0 || v < minPrice {
				minPrice = v
			}
		}
		switch {
		case minPrice < 10:
			return "low"
		case minPrice < 30:
			return "medium"
		default:
			return "high"
		}
	}

	lower := strings.ToLower(priceInfo)
	for _, word := range []string{"gratuit", "free", "libre"} {
		if strings.Contains(lower, word) {
			return "free"
		}
	}
	return ""
}

var (
	postalArrPattern  = regexp.MustCompile(`750(\d{2})`)
	addressArrPattern = regexp.MustCompile(`(?i)(\d{1,2})(?:e|ème|eme)\s+arrondissement`)
)

// ExtractArrondissement derives the Paris arrondissement ("11e") from the
// postal code (750XX) or, failing that, the street address.
func ExtractArrondissement(address, postalCode string) string {
	if postalCode != "" {
		if m := postalArrPattern.FindStringSubmatch(postalCode); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n >= 1 && n <= 20 {
				return fmt.Sprintf("%de", n)
			}
		}
	}
	if address != "" {
		if m := addressArrPattern.FindStringSubmatch(address); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n >= 1 && n <= 20 {
				return fmt.Sprintf("%de", n)
			}
		}
	}
	return ""
}

// NormalizeDatetime parses a timestamp string and converts it to UTC.
// Naive timestamps are interpreted as Paris local time.
func NormalizeDatetime(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, parisLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return t.UTC(), nil
}
