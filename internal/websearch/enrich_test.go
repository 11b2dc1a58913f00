// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package websearch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiktoken-go/tokenizer"

	"github.com/solvernet/mathrouter/internal/routing"
)

func testClient() *Client {
	return &Client{
		http:         &http.Client{Timeout: 5 * time.Second},
		userAgent:    "mathrouter-test/1.0",
		fetchTimeout: 2 * time.Second,
		maxChars:     500,
		enrichTop:    2,
	}
}

func TestExtractMathematicalContent(t *testing.T) {
	text := "Too short. The solution is x = 5 for this case. " +
		"The weather was nice and everyone enjoyed the picnic by the lake. " +
		"This theorem has many applications in geometry. End."

	got := extractMathematicalContent(text)
	assert.Equal(t, "The solution is x = 5 for this case. This theorem has many applications in geometry", got)
}

func TestExtractMathematicalContentLimitsSentences(t *testing.T) {
	text := "The first equation describes motion. " +
		"The second formula covers area computations. " +
		"The third derivative measures acceleration. " +
		"The fourth integral would also qualify here."

	got := extractMathematicalContent(text)
	assert.Equal(t, 3, strings.Count(got, ". ")+1)
	assert.NotContains(t, got, "fourth")
}

func TestExtractMathematicalContentNoMatch(t *testing.T) {
	assert.Equal(t, "", extractMathematicalContent("The weather was sunny and warm throughout the afternoon"))
}

func TestVisibleTextStripsScriptAndStyle(t *testing.T) {
	page := `<html><head>
		<style>body { color: red; }</style>
		<script>var tracking = true;</script>
	</head><body>
		<h1>Visible heading</h1>
		<noscript>enable javascript</noscript>
		<p>Body   text
		here</p>
	</body></html>`

	got := visibleText(strings.NewReader(page))
	assert.Equal(t, "Visible heading Body text here", got)
	assert.NotContains(t, got, "tracking")
	assert.NotContains(t, got, "color")
}

func TestFetchPageContentEncodings(t *testing.T) {
	page := "<html><body><p>This formula appears in a compressed page for testing purposes</p></body></html>"
	want := "This formula appears in a compressed page for testing purposes"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gzip":
			var buf bytes.Buffer
			gz := gzip.NewWriter(&buf)
			_, _ = gz.Write([]byte(page))
			require.NoError(t, gz.Close())
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(buf.Bytes())
		case "/br":
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			_, _ = bw.Write([]byte(page))
			require.NoError(t, bw.Close())
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write(buf.Bytes())
		case "/plain":
			_, _ = w.Write([]byte(page))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testClient()
	for _, path := range []string{"/gzip", "/br", "/plain"} {
		got, err := c.fetchPageContent(context.Background(), srv.URL+path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := c.fetchPageContent(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestEnrichTopResultsOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Any equation can be rearranged before solving it properly</p></body></html>"))
	}))
	defer srv.Close()

	c := testClient()
	c.enrichTop = 1

	results := []routing.WebResult{
		{Title: "first", URL: srv.URL + "/a"},
		{Title: "second", URL: srv.URL + "/b"},
	}
	c.enrich(context.Background(), results)

	assert.True(t, results[0].HasContent)
	assert.Contains(t, results[0].Content, "equation")
	assert.False(t, results[1].HasContent)
	assert.Empty(t, results[1].Content)
}

func TestEnrichKeepsResultOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := testClient()
	results := []routing.WebResult{{Title: "broken", URL: srv.URL + "/gone"}}
	c.enrich(context.Background(), results)

	assert.False(t, results[0].HasContent)
	assert.Equal(t, "broken", results[0].Title)
}

func TestCapContentCharacterLimit(t *testing.T) {
	c := &Client{maxChars: 10}
	assert.Equal(t, "0123456789", c.capContent("0123456789abcdef"))
	assert.Equal(t, "short", c.capContent("short"))
}

func TestCapContentTokenLimit(t *testing.T) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	require.NoError(t, err)

	c := &Client{maxChars: 500, tokenCap: 4, codec: codec}
	original := "integration by parts transforms one integral into another simpler integral"
	capped := c.capContent(original)

	assert.Less(t, len(capped), len(original))
	assert.True(t, strings.HasPrefix(original, capped))

	ids, _, err := codec.Encode(capped)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ids), 4)
}
