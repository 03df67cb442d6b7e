package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/event"
)

// LocalizedText is an OpenAgenda multilingual field: either a plain string
// or an object keyed by language code. Value prefers French, then English.
type LocalizedText struct {
	plain  string
	byLang map[string]string
}

func (l *LocalizedText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		l.plain = s
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err == nil {
		l.byLang = m
		return nil
	}
	// Tolerate unexpected shapes (numbers, null) rather than failing the page.
	l.plain = ""
	return nil
}

// Value returns the preferred rendering of the field.
func (l LocalizedText) Value() string {
	if l.plain != "" {
		return l.plain
	}
	if v := l.byLang["fr"]; v != "" {
		return v
	}
	return l.byLang["en"]
}

// StringList tolerates the list/object/scalar shapes OpenAgenda uses for
// categories, keywords and languages.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err == nil {
		out := make([]string, 0, len(m))
		for _, v := range m {
			if v != "" {
				out = append(out, v)
			}
		}
		*s = out
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*s = []string{single}
		}
		return nil
	}
	*s = nil
	return nil
}

type rawOrganizer struct {
	Name string
}

func (o *rawOrganizer) UnmarshalJSON(data []byte) error {
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		o.Name = obj.Name
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Name = s
	}
	return nil
}

type rawImage struct {
	URL string
}

func (i *rawImage) UnmarshalJSON(data []byte) error {
	var obj struct {
		Base string `json:"base"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Base != "" {
			i.URL = obj.Base
		} else {
			i.URL = obj.URL
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i.URL = s
	}
	return nil
}

// RawTiming is a single occurrence of an event.
type RawTiming struct {
	Start  string `json:"start"`
	Begin  string `json:"begin"`
	End    string `json:"end"`
	AllDay bool   `json:"allDay"`
}

// RawLocation is the venue block of a raw event.
type RawLocation struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	PostalCode  string   `json:"postalCode"`
	CountryCode string   `json:"countryCode"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// RawEvent is an event as returned by the OpenAgenda API.
type RawEvent struct {
	UID             json.Number   `json:"uid"`
	AgendaUID       json.Number   `json:"agendaUid"`
	Title           LocalizedText `json:"title"`
	Description     LocalizedText `json:"description"`
	LongDescription LocalizedText `json:"longDescription"`
	Timings         []RawTiming   `json:"timings"`
	Location        RawLocation   `json:"location"`
	Categories      StringList    `json:"categories"`
	Keywords        StringList    `json:"keywords"`
	Conditions      LocalizedText `json:"conditions"`
	Free            *bool         `json:"free"`
	Organizer       rawOrganizer  `json:"organizer"`
	CanonicalURL    string        `json:"canonicalUrl"`
	URL             string        `json:"url"`
	Image           rawImage      `json:"image"`
	Lang            StringList    `json:"lang"`
	UpdatedAt       string        `json:"updatedAt"`
}

const (
	maxSummaryLen  = 500
	maxLongDescLen = 2000
)

// CleanEvent normalizes a raw API record into the canonical Event. An error
// means the record is unusable (missing UID, title, timing or venue) and
// should be skipped.
func CleanEvent(raw *RawEvent) (*event.Event, error) {
	eventID := raw.UID.String()
	if eventID == "" {
		return nil, fmt.Errorf("event missing uid")
	}

	title := StripHTML(raw.Title.Value())
	if title == "" {
		return nil, fmt.Errorf("event %s missing title", eventID)
	}

	if len(raw.Timings) == 0 {
		return nil, fmt.Errorf("event %s missing timings", eventID)
	}
	first := raw.Timings[0]
	startStr := first.Start
	if startStr == "" {
		startStr = first.Begin
	}
	if startStr == "" {
		return nil, fmt.Errorf("event %s missing start time", eventID)
	}
	start, err := NormalizeDatetime(startStr)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	var end *time.Time
	if first.End != "" {
		if t, err := NormalizeDatetime(first.End); err == nil {
			end = &t
		}
	}

	venue := raw.Location.Name
	if venue == "" {
		return nil, fmt.Errorf("event %s missing venue", eventID)
	}
	city := raw.Location.City
	if city == "" {
		city = "Paris"
	}
	country := raw.Location.CountryCode
	if country == "" {
		country = "FR"
	}

	categories := []string(raw.Categories)
	tags := []string(raw.Keywords)
	categoryNorm := NormalizeCategory(categories, tags)

	priceInfo := raw.Conditions.Value()
	isFree := raw.Free != nil && *raw.Free
	if priceInfo != "" && PriceBucket(priceInfo, false) == "free" {
		isFree = true
	}
	priceBucket := PriceBucket(priceInfo, isFree)

	summary := truncate(StripHTML(raw.Description.Value()), maxSummaryLen)
	longDescription := truncate(StripHTML(raw.LongDescription.Value()), maxLongDescLen)

	eventURL := raw.CanonicalURL
	if eventURL == "" {
		eventURL = raw.URL
	}

	languages := []string(raw.Lang)
	if len(languages) == 0 {
		languages = []string{"fr"}
	}

	var updatedAt *time.Time
	if raw.UpdatedAt != "" {
		if t, err := NormalizeDatetime(raw.UpdatedAt); err == nil {
			updatedAt = &t
		}
	}

	return &event.Event{
		EventID:         eventID,
		SourceAgendaUID: raw.AgendaUID.String(),

		Title:           title,
		Summary:         summary,
		LongDescription: longDescription,

		Categories:   categories,
		Tags:         tags,
		CategoryNorm: categoryNorm,

		StartDatetime: start,
		EndDatetime:   end,
		AllDay:        first.AllDay,

		VenueName:      venue,
		Address:        raw.Location.Address,
		City:           city,
		PostalCode:     raw.Location.PostalCode,
		Country:        country,
		Lat:            raw.Location.Latitude,
		Lon:            raw.Location.Longitude,
		Arrondissement: ExtractArrondissement(raw.Location.Address, raw.Location.PostalCode),

		Organizer:   raw.Organizer.Name,
		Price:       priceInfo,
		IsFree:      isFree,
		PriceBucket: priceBucket,

		Languages: languages,
		URL:       eventURL,
		ImageURL:  raw.Image.URL,

		UpdatedAt: updatedAt,
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
