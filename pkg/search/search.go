// Package search wraps the web/news search provider behind a typed contract.
// The provider's JSON never leaks past this boundary; callers get Items.
package search

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/pubguard/engine/pkg/connectors"
)

// DefaultBaseURL points at the hosted search API.
const DefaultBaseURL = "https://api.pubguard.dev/search/v1"

// Item is one ranked search result.
type Item struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Snippet   string    `json:"snippet"`
	Published time.Time `json:"published,omitempty"`
}

// Domain returns the host part of the item URL, without a www prefix.
func (i Item) Domain() string {
	u, err := url.Parse(i.URL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if len(host) > 4 && host[:4] == "www." {
		host = host[4:]
	}
	return host
}

// Config configures a search client.
type Config struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	MaxResults        int
	HTTPClient        *connectors.Client
}

// Client queries the search provider.
type Client struct {
	c          *connectors.Client
	maxResults int
}

// NewClient creates a search client.
func NewClient(cfg Config) *Client {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	c := cfg.HTTPClient
	if c == nil {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultBaseURL
		}
		rps := cfg.RequestsPerSecond
		if rps == 0 {
			rps = 2
		}
		c = connectors.New(connectors.Config{
			Source:            "search",
			BaseURL:           baseURL,
			APIKey:            cfg.APIKey,
			RequestsPerSecond: rps,
		})
	}

	return &Client{c: c, maxResults: maxResults}
}

// providerResponse is the wire shape of the search API.
type providerResponse struct {
	Results []struct {
		Title     string `json:"title"`
		URL       string `json:"url"`
		Snippet   string `json:"snippet"`
		Published string `json:"published"`
	} `json:"results"`
}

// Search runs one query and returns up to MaxResults items.
func (s *Client) Search(ctx context.Context, query string) ([]Item, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(s.maxResults))

	var resp providerResponse
	if err := s.c.GetJSON(ctx, "/search", q, &resp); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		item := Item{Title: r.Title, URL: r.URL, Snippet: r.Snippet}
		if r.Published != "" {
			if ts, err := time.Parse(time.RFC3339, r.Published); err == nil {
				item.Published = ts
			} else if ts, err := time.Parse("2006-01-02", r.Published); err == nil {
				item.Published = ts
			}
		}
		items = append(items, item)
		if len(items) >= s.maxResults {
			break
		}
	}
	return items, nil
}
