// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/solvernet/mathrouter/internal/routing"
)

// mathPatterns recognize formula-like fragments in page text: assignments,
// integrals, summations, limits, function definitions, and named theorems
// or formulas.
var mathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[a-zA-Z]\s*=\s*[^,\n]{1,100}`),
	regexp.MustCompile(`(?i)∫[^∫]{1,50}d[a-zA-Z]`),
	regexp.MustCompile(`(?i)∑[^∑]{1,50}`),
	regexp.MustCompile(`(?i)lim[^a-zA-Z][^,\n]{1,50}`),
	regexp.MustCompile(`(?i)[a-zA-Z]+\s*\([^)]{1,50}\)\s*=`),
	regexp.MustCompile(`(?i)theorem[^.]{1,200}\.`),
	regexp.MustCompile(`(?i)formula[^.]{1,200}\.`),
}

var mathContentKeywords = []string{
	"equation", "formula", "solve", "derivative", "integral",
	"theorem", "proof", "calculate", "function", "variable",
}

// enrich fetches page content for the top results in place. A result whose
// page cannot be fetched keeps HasContent == false and stays in the list;
// the title and snippet are still worth returning.
func (c *Client) enrich(ctx context.Context, results []routing.WebResult) {
	limit := c.enrichTop
	if limit > len(results) {
		limit = len(results)
	}

	for i := 0; i < limit; i++ {
		content, err := c.fetchPageContent(ctx, results[i].URL)
		if err != nil || content == "" {
			log.Debugf("Could not enrich %s: %v", results[i].URL, err)
			continue
		}
		results[i].Content = c.capContent(content)
		results[i].HasContent = true
	}
}

// fetchPageContent downloads one result page and extracts its mathematical
// content, falling back to the leading visible text.
func (c *Client) fetchPageContent(ctx context.Context, pageURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	// Setting Accept-Encoding by hand disables the transport's transparent
	// decompression, so both encodings are handled below.
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return "", err
	}

	text := visibleText(body)
	if math := extractMathematicalContent(text); math != "" {
		return math, nil
	}
	return excerpt(text, 500), nil
}

// decodeBody returns a reader over the decompressed response body.
func decodeBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	default:
		return resp.Body, nil
	}
}

// visibleText extracts the rendered text of a page, skipping script and
// style subtrees, with whitespace collapsed.
func visibleText(r io.Reader) string {
	doc, err := html.Parse(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// extractMathematicalContent picks out up to three sentences that look
// mathematical, by formula pattern or keyword. Returns "" when the page
// has none.
func extractMathematicalContent(text string) string {
	var mathematical []string
	for _, sentence := range strings.Split(text, ".") {
		sentence = strings.TrimSpace(sentence)
		length := utf8.RuneCountInString(sentence)
		if length < 20 || length > 500 {
			continue
		}

		hasMath := false
		for _, pattern := range mathPatterns {
			if pattern.MatchString(sentence) {
				hasMath = true
				break
			}
		}
		if !hasMath {
			sentenceLower := strings.ToLower(sentence)
			for _, keyword := range mathContentKeywords {
				if strings.Contains(sentenceLower, keyword) {
					hasMath = true
					break
				}
			}
		}
		if hasMath {
			mathematical = append(mathematical, sentence)
			if len(mathematical) == 3 {
				break
			}
		}
	}
	return strings.Join(mathematical, ". ")
}

// capContent applies the character cap and, when configured, the BPE token
// cap to extracted content.
func (c *Client) capContent(content string) string {
	if c.maxChars > 0 {
		content = excerpt(content, c.maxChars)
	}
	if c.codec != nil && c.tokenCap > 0 {
		ids, _, err := c.codec.Encode(content)
		if err == nil && len(ids) > c.tokenCap {
			if truncated, err := c.codec.Decode(ids[:c.tokenCap]); err == nil {
				content = truncated
			}
		}
	}
	return content
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
