package queryparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// Constraints are the structured filters extracted from a question.
// Nil/zero fields mean "no constraint".
type Constraints struct {
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Category       string     `json:"category,omitempty"`
	Price          string     `json:"price,omitempty"`
	Arrondissement int        `json:"arrondissement,omitempty"`
	Language       string     `json:"language"`
}

// Parser extracts constraints from natural-language questions in French or
// English. Now is injectable so temporal parsing is testable.
type Parser struct {
	DefaultLanguage string
	Location        *time.Location
	Now             func() time.Time
}

// NewParser returns a Parser anchored to Paris local time with French as the
// default language.
func NewParser() *Parser {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		logger.Warn("Failed to load Europe/Paris, falling back to UTC", "err", err)
		loc = time.UTC
	}
	return &Parser{
		DefaultLanguage: "fr",
		Location:        loc,
		Now:             time.Now,
	}
}

// Parse extracts all constraints from a question. Parsing never fails: a
// question with nothing recognizable simply yields empty constraints.
func (p *Parser) Parse(question string) Constraints {
	start, end := p.ParseTemporal(question)
	c := Constraints{
		StartDate:      start,
		EndDate:        end,
		Category:       ExtractCategory(question),
		Price:          ExtractPrice(question),
		Arrondissement: ExtractArrondissement(question),
		Language:       p.DetectLanguage(question),
	}
	logger.Debug("Parsed query constraints",
		"language", c.Language,
		"category", c.Category,
		"price", c.Price,
		"arrondissement", c.Arrondissement,
	)
	return c
}

// DetectLanguage classifies the question as "fr" or "en", falling back to
// the parser default for anything else.
func (p *Parser) DetectLanguage(question string) string {
	info := whatlanggo.DetectWithOptions(question, whatlanggo.Options{
		Whitelist: map[whatlanggo.Lang]bool{
			whatlanggo.Fra: true,
			whatlanggo.Eng: true,
		},
	})
	switch info.Lang {
	case whatlanggo.Fra:
		return "fr"
	case whatlanggo.Eng:
		return "en"
	default:
		return p.DefaultLanguage
	}
}

// categoryKeywords maps query vocabulary onto the normalized category
// taxonomy. Order matters: the first matching keyword wins, so ambiguous
// terms like "hip-hop" resolve to the earlier category.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"music", []string{
		"music", "musique", "concert", "jazz", "rock", "pop",
		"classical", "classique", "electronic", "électronique",
		"rap", "hip-hop", "opera", "opéra",
	}},
	{"theater", []string{
		"theater", "theatre", "théâtre", "théatre", "play", "pièce",
		"spectacle", "performance", "comédie", "comedy",
	}},
	{"exhibition", []string{
		"exhibition", "expo", "exposition", "art", "galerie", "gallery",
		"museum", "musée", "painting", "peinture", "sculpture",
		"photography", "photo",
	}},
	{"kids", []string{
		"kids", "enfants", "children", "family", "famille",
		"jeunesse", "youth", "bébé", "baby", "tout-petits",
	}},
	{"festival", []string{
		"festival", "fête", "fest", "celebration", "célébration",
		"carnival", "carnaval",
	}},
	{"cinema", []string{
		"cinema", "cinéma", "film", "movie", "projection", "screening",
	}},
	{"dance", []string{
		"dance", "danse", "ballet", "contemporary", "contemporain", "hip-hop",
	}},
	{"literature", []string{
		"literature", "littérature", "book", "livre", "reading", "lecture",
		"poetry", "poésie", "author", "auteur", "salon du livre",
	}},
	{"workshop", []string{
		"workshop", "atelier", "stage", "class", "cours", "training", "formation",
	}},
}

// ExtractCategory returns the first matching normalized category, or "".
func ExtractCategory(question string) string {
	lower := strings.ToLower(question)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return ""
}

var priceKeywords = []struct {
	constraint string
	keywords   []string
}{
	{"free", []string{"free", "gratuit", "libre", "sans frais"}},
	{"cheap", []string{"cheap", "pas cher", "bon marché", "abordable", "affordable"}},
}

// ExtractPrice returns "free", "cheap" or "".
func ExtractPrice(question string) string {
	lower := strings.ToLower(question)
	for _, entry := range priceKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.constraint
			}
		}
	}
	return ""
}

// Arrondissement mentions need an ordinal suffix ("11e", "3rd") or an
// explicit district word; a bare number would false-positive on dates like
// "11 novembre".
var (
	ordinalArrPattern  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:e|ème|eme|er|ère|th|st|nd|rd)\b`)
	districtArrPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:arr|arrondissement|arrdt|district)\b`)
)

// ExtractArrondissement returns the arrondissement number (1-20) mentioned
// in the question, or 0.
func ExtractArrondissement(question string) int {
	for _, pattern := range []*regexp.Regexp{districtArrPattern, ordinalArrPattern} {
		for _, m := range pattern.FindAllStringSubmatch(question, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if n >= 1 && n <= 20 {
				return n
			}
		}
	}
	return 0
}
