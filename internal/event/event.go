package event

import (
	"strings"
	"time"
)

// Price buckets assigned during ingestion.
const (
	PriceFree   = "free"
	PriceLow    = "low"
	PriceMedium = "medium"
	PriceHigh   = "high"
)

// Event is the canonical cleaned event record. Indexed events always carry a
// title, a venue and a start time.
type Event struct {
	EventID         string `json:"event_id"`
	SourceAgendaUID string `json:"source_agenda_uid,omitempty"`

	Title           string `json:"title"`
	Summary         string `json:"summary,omitempty"`
	LongDescription string `json:"long_description,omitempty"`

	Categories   []string `json:"categories,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	CategoryNorm string   `json:"category_norm,omitempty"`

	StartDatetime time.Time  `json:"start_datetime"`
	EndDatetime   *time.Time `json:"end_datetime,omitempty"`
	AllDay        bool       `json:"all_day,omitempty"`

	VenueName      string   `json:"venue_name"`
	Address        string   `json:"address,omitempty"`
	City           string   `json:"city"`
	PostalCode     string   `json:"postal_code,omitempty"`
	Country        string   `json:"country,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	Arrondissement string   `json:"arrondissement,omitempty"`

	Organizer   string `json:"organizer,omitempty"`
	Price       string `json:"price,omitempty"`
	IsFree      bool   `json:"is_free"`
	PriceBucket string `json:"price_bucket,omitempty"`

	Languages []string `json:"languages,omitempty"`
	URL       string   `json:"url,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`

	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// NormalizedTitle returns the title form used for deduplication.
func (e *Event) NormalizedTitle() string {
	return strings.ToLower(strings.TrimSpace(e.Title))
}

const maxDescriptionChars = 800

// DocumentText builds the text representation used for embedding: title,
// summary, truncated description, location line, category annotations and a
// short metadata line for better recall.
func (e *Event) DocumentText() string {
	parts := []string{e.Title}

	if e.Summary != "" {
		parts = append(parts, e.Summary)
	}

	if e.LongDescription != "" {
		desc := e.LongDescription
		if len(desc) > maxDescriptionChars {
			desc = desc[:maxDescriptionChars] + "..."
		}
		parts = append(parts, desc)
	}

	locationParts := []string{}
	for _, p := range []string{e.VenueName, e.City, e.Arrondissement} {
		if p != "" {
			locationParts = append(locationParts, p)
		}
	}
	parts = append(parts, strings.Join(locationParts, ", "))

	if len(e.Categories) > 0 {
		parts = append(parts, "Categories: "+strings.Join(e.Categories, ", "))
	}
	if len(e.Tags) > 0 {
		tags := e.Tags
		if len(tags) > 5 {
			tags = tags[:5]
		}
		parts = append(parts, "Tags: "+strings.Join(tags, ", "))
	}

	metaParts := []string{}
	if e.CategoryNorm != "" {
		metaParts = append(metaParts, "category: "+e.CategoryNorm)
	}
	if e.IsFree {
		metaParts = append(metaParts, "price: free")
	} else if e.PriceBucket != "" {
		metaParts = append(metaParts, "price: "+e.PriceBucket)
	}
	metaParts = append(metaParts, "city: "+e.City)
	parts = append(parts, strings.Join(metaParts, "; "))

	return strings.Join(parts, "\n")
}

// Metadata is the filterable subset of an event stored next to the index.
// Timestamps are kept as RFC 3339 strings; filters parse them per document
// and drop records with malformed values.
type Metadata struct {
	EventID        string   `json:"event_id"`
	Title          string   `json:"title"`
	StartDatetime  string   `json:"start_datetime"`
	EndDatetime    string   `json:"end_datetime,omitempty"`
	VenueName      string   `json:"venue_name"`
	City           string   `json:"city"`
	Categories     []string `json:"categories,omitempty"`
	CategoryNorm   string   `json:"category_norm,omitempty"`
	IsFree         bool     `json:"is_free"`
	PriceBucket    string   `json:"price_bucket,omitempty"`
	URL            string   `json:"url,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	Arrondissement string   `json:"arrondissement,omitempty"`
}

// Metadata returns the filterable projection of the event.
func (e *Event) Metadata() Metadata {
	endStr := ""
	if e.EndDatetime != nil {
		endStr = e.EndDatetime.UTC().Format(time.RFC3339)
	}
	return Metadata{
		EventID:        e.EventID,
		Title:          e.Title,
		StartDatetime:  e.StartDatetime.UTC().Format(time.RFC3339),
		EndDatetime:    endStr,
		VenueName:      e.VenueName,
		City:           e.City,
		Categories:     e.Categories,
		CategoryNorm:   e.CategoryNorm,
		IsFree:         e.IsFree,
		PriceBucket:    e.PriceBucket,
		URL:            e.URL,
		Lat:            e.Lat,
		Lon:            e.Lon,
		Arrondissement: e.Arrondissement,
	}
}

// Document pairs the embeddable text of an event with its filterable
// metadata. Documents are what the index stores and the retriever returns.
type Document struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// NewDocument derives the indexable document for an event.
func NewDocument(e *Event) Document {
	return Document{
		Text:     e.DocumentText(),
		Metadata: e.Metadata(),
	}
}
