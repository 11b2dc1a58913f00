// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package websearch performs live DuckDuckGo lookups for queries the
// knowledge base cannot answer confidently. A search runs in two phases:
// the instant-answer JSON API first, then the HTML results page. Results
// are ranked for mathematical relevance and the top ones are enriched with
// page content. Failures degrade to an offline fallback corpus or empty
// results; a search never fails just because nothing matched.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"

	"github.com/solvernet/mathrouter/internal/config"
	"github.com/solvernet/mathrouter/internal/routing"
)

const (
	defaultInstantURL = "https://api.duckduckgo.com/"
	defaultSearchURL  = "https://duckduckgo.com/html/"

	// maxInstantResults caps how many results the instant-answer phase may
	// contribute (abstract plus related topics).
	maxInstantResults = 3
)

// Client is a DuckDuckGo search client tuned for mathematical queries.
// It is safe for concurrent use.
type Client struct {
	http         *http.Client
	instantURL   string
	searchURL    string
	userAgent    string
	maxResults   int
	enrichTop    int
	fetchTimeout time.Duration
	maxChars     int
	tokenCap     int
	codec        tokenizer.Codec
}

// New creates a search client from configuration. When a token cap is
// configured but the BPE tokenizer cannot be loaded, the cap is disabled
// with a warning; the character cap still applies.
func New(cfg *config.WebSearchConfig) *Client {
	c := &Client{
		http:         &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		instantURL:   defaultInstantURL,
		searchURL:    defaultSearchURL,
		userAgent:    cfg.UserAgent,
		maxResults:   cfg.MaxResults,
		enrichTop:    cfg.EnrichTop,
		fetchTimeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		maxChars:     cfg.MaxContentChars,
		tokenCap:     cfg.MaxContentTokens,
	}
	if cfg.MaxContentTokens > 0 {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warnf("Content token cap disabled, tokenizer unavailable: %v", err)
		} else {
			c.codec = codec
		}
	}
	return c
}

// Search looks up the query and returns ranked, enriched results.
// maxResults <= 0 uses the configured default. Context cancellation is the
// only error surfaced to the caller; transport failures fall back to the
// offline corpus and a no-match search returns an empty slice.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]routing.WebResult, error) {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	enhanced := enhanceMathQuery(query)
	log.Infof("Searching the web for: %s", enhanced)

	var raw []routing.WebResult
	instant, err := c.instantAnswer(ctx, enhanced)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debugf("Instant answer lookup failed: %v", err)
	} else {
		raw = append(raw, instant...)
	}

	organic, err := c.htmlResults(ctx, enhanced)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warnf("Web search failed, using offline fallback: %v", err)
		return fallbackResults(query), nil
	}
	raw = append(raw, organic...)

	ranked := rankResults(raw, query)
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	c.enrich(ctx, ranked)

	log.Infof("Found %d relevant results", len(ranked))
	return ranked, nil
}

// instantAnswer queries the DuckDuckGo instant-answer API. It contributes
// the topic abstract and a few related topics; failures here are never
// fatal to the search.
func (c *Client) instantAnswer(ctx context.Context, query string) ([]routing.WebResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	body, err := c.get(ctx, c.instantURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return parseInstantAnswer(body), nil
}

// htmlResults queries the DuckDuckGo HTML endpoint and parses the organic
// results. A non-200 response yields no results but no error; the caller
// can still rank whatever the instant phase produced.
func (c *Client) htmlResults(ctx context.Context, query string) ([]routing.WebResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("kp", "-2")
	params.Set("kl", "us-en")
	params.Set("kd", "-1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("Search request failed with status %d", resp.StatusCode)
		return nil, nil
	}
	return parseSearchResults(resp.Body), nil
}

// get fetches a URL and returns the response body, capped at 1 MB.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return readCapped(resp.Body)
}

// enhanceMathQuery appends a mathematical hint to definition-style queries
// that carry no mathematical vocabulary of their own.
func enhanceMathQuery(query string) string {
	queryLower := strings.ToLower(query)
	for _, word := range []string{"math", "formula", "equation", "solve"} {
		if strings.Contains(queryLower, word) {
			return query
		}
	}
	for _, phrase := range []string{"what is", "define", "explain"} {
		if strings.Contains(queryLower, phrase) {
			return query + " mathematics"
		}
	}
	return query
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func sortByRelevance(results []routing.WebResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}
