// Package ner calls a hosted token-classification model to find place names in free text.
package ner

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/pairfecto/backend/internal/domain"
	"github.com/pairfecto/backend/internal/metrics"
)

var placeGroups = map[string]bool{"LOC": true, "ORG": true, "GPE": true, "FAC": true}

// Entity is one aggregated span returned by the model.
type Entity struct {
	Group string  `json:"entity_group"`
	Word  string  `json:"word"`
	Score float64 `json:"score"`
}

// Client talks to an inference endpoint that accepts {"inputs": text} and
// returns a list of aggregated entities.
type Client struct {
	url    string
	token  string
	client *http.Client
}

// New creates an extractor client.
func New(url, token string, timeout time.Duration) *Client {
	return &Client{url: url, token: token, client: &http.Client{Timeout: timeout}}
}

// ExtractPlace returns the longest place-like entity in text, or "" when none is found.
func (c *Client) ExtractPlace(ctx context.Context, text string) (string, error) {
	entities, err := c.entities(ctx, text)
	if err != nil {
		return "", err
	}
	return LongestPlace(entities), nil
}

func (c *Client) entities(ctx context.Context, text string) ([]Entity, error) {
	payload, err := json.Marshal(map[string]any{
		"inputs":     text,
		"parameters": map[string]string{"aggregation_strategy": "simple"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode ner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err == nil && resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("ner status %d", resp.StatusCode)
	}
	metrics.ObserveExternalCall("ner", "extract", start, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}

	var out []Entity
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode ner: %w", domain.ErrUpstreamUnavailable, err)
	}
	return out, nil
}

// LongestPlace picks the place-like entity with the most characters. Ties keep the first.
func LongestPlace(entities []Entity) string {
	best, bestLen := "", 0
	for _, e := range entities {
		if !placeGroups[e.Group] {
			continue
		}
		if n := utf8.RuneCountInString(e.Word); n > bestLen {
			best, bestLen = e.Word, n
		}
	}
	return best
}
