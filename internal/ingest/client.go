package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Septimus4/AgendaFlow/internal/util"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

const (
	defaultBaseURL = "https://api.openagenda.com/v2"
	maxPageSize    = 300
)

// Client talks to the OpenAgenda v2 API. Rate-limit responses (429) are
// retried with a bounded exponential backoff; other HTTP errors fail the
// request.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an OpenAgenda API client. baseURL may be empty to use
// the public endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type eventsPage struct {
	Events []RawEvent        `json:"events"`
	After  []json.RawMessage `json:"after"`
}

type agendasPage struct {
	Agendas []Agenda `json:"agendas"`
}

// Agenda is the subset of agenda metadata needed for discovery.
type Agenda struct {
	UID   json.Number `json:"uid"`
	Title string      `json:"title"`
}

// FetchOptions narrows an event listing request.
type FetchOptions struct {
	City       string
	TimingsGte string
	TimingsLte string
	Relative   []string
	PageSize   int
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values, out any) error {
	params.Set("key", c.apiKey)

	backoff := &util.Backoff{
		Initial:  time.Second,
		Max:      30 * time.Second,
		MaxTries: 5,
	}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			logger.Warn("OpenAgenda rate limit hit, backing off")
			if err := backoff.Sleep(ctx); err != nil {
				return fmt.Errorf("rate limited by OpenAgenda: %w", err)
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return readErr
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("OpenAgenda request failed: status %d", resp.StatusCode)
		}

		return json.Unmarshal(body, out)
	}
}

// DiscoverAgendas lists agendas matching a city search term.
func (c *Client) DiscoverAgendas(ctx context.Context, city string, limit int) ([]Agenda, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	params := url.Values{}
	params.Set("size", strconv.Itoa(limit))
	if city != "" {
		params.Set("search", city)
	}

	var page agendasPage
	if err := c.get(ctx, c.baseURL+"/agendas", params, &page); err != nil {
		return nil, fmt.Errorf("discover agendas: %w", err)
	}
	logger.Info("Discovered agendas", "city", city, "count", len(page.Agendas))
	return page.Agendas, nil
}

// FetchAgendaEvents pages through all events of one agenda using the API's
// "after" cursor and returns the raw records.
func (c *Client) FetchAgendaEvents(ctx context.Context, agendaUID string, opts FetchOptions) ([]RawEvent, error) {
	return c.fetchEvents(ctx, fmt.Sprintf("%s/agendas/%s/events", c.baseURL, agendaUID), opts)
}

// FetchEventsTransverse pages through the cross-agenda event listing. The
// transverse endpoint is not enabled for every API key.
func (c *Client) FetchEventsTransverse(ctx context.Context, opts FetchOptions) ([]RawEvent, error) {
	return c.fetchEvents(ctx, c.baseURL+"/events", opts)
}

func (c *Client) fetchEvents(ctx context.Context, rawURL string, opts FetchOptions) ([]RawEvent, error) {
	size := opts.PageSize
	if size <= 0 || size > maxPageSize {
		size = maxPageSize
	}

	base := url.Values{}
	base.Set("size", strconv.Itoa(size))
	base.Set("detailed", "1")
	base.Set("monolingual", "fr")
	if opts.City != "" {
		base.Set("city", opts.City)
	}
	if opts.TimingsGte != "" {
		base.Set("timings[gte]", opts.TimingsGte)
	}
	if opts.TimingsLte != "" {
		base.Set("timings[lte]", opts.TimingsLte)
	}
	for _, rel := range opts.Relative {
		base.Add("relative[]", rel)
	}

	var (
		events []RawEvent
		after  []json.RawMessage
		pages  int
	)

	for {
		params := url.Values{}
		for k, vs := range base {
			params[k] = vs
		}
		for _, a := range after {
			params.Add("after[]", cursorValue(a))
		}

		var page eventsPage
		if err := c.get(ctx, rawURL, params, &page); err != nil {
			return nil, fmt.Errorf("fetch events page %d: %w", pages+1, err)
		}
		if len(page.Events) == 0 {
			break
		}

		events = append(events, page.Events...)
		pages++
		logger.Debug("Fetched events page", "page", pages, "events", len(page.Events))

		if len(page.After) == 0 {
			break
		}
		after = page.After
	}

	logger.Info("Fetched events", "pages", pages, "events", len(events))
	return events, nil
}

// cursorValue renders one element of the "after" cursor as a query value.
// The API returns a mix of strings and numbers.
func cursorValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}
