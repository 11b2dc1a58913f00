// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package websearch

import (
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"

	"github.com/solvernet/mathrouter/internal/routing"
)

// maxBodyBytes caps how much of any response body is read.
const maxBodyBytes = 1 << 20

func readCapped(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}

// parseInstantAnswer extracts the abstract and related topics from an
// instant-answer API response.
func parseInstantAnswer(body []byte) []routing.WebResult {
	var results []routing.WebResult

	if abstract := gjson.GetBytes(body, "AbstractText").String(); abstract != "" {
		title := gjson.GetBytes(body, "Heading").String()
		results = append(results, routing.WebResult{
			Title:   title,
			Snippet: abstract,
			URL:     gjson.GetBytes(body, "AbstractURL").String(),
			Source:  "duckduckgo_instant",
		})
	}

	for _, topic := range gjson.GetBytes(body, "RelatedTopics").Array() {
		if len(results) >= maxInstantResults {
			break
		}
		text := topic.Get("Text").String()
		firstURL := topic.Get("FirstURL").String()
		if text == "" || firstURL == "" {
			continue
		}
		// Related-topic text reads "Name - description".
		title := text
		if idx := strings.Index(text, " - "); idx > 0 {
			title = text[:idx]
		}
		results = append(results, routing.WebResult{
			Title:   title,
			Snippet: text,
			URL:     firstURL,
			Source:  "duckduckgo_instant",
		})
	}
	return results
}

// parseSearchResults extracts organic results from the DuckDuckGo HTML
// page: each result container carries a title link and usually a snippet.
// Malformed containers are skipped.
func parseSearchResults(r io.Reader) []routing.WebResult {
	doc, err := html.Parse(r)
	if err != nil {
		log.Errorf("Error parsing search results: %v", err)
		return nil
	}

	var results []routing.WebResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" &&
			(hasClass(n, "result") || hasClass(n, "web-result")) {
			if res, ok := extractResult(n); ok {
				results = append(results, res)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return results
}

func extractResult(container *html.Node) (routing.WebResult, bool) {
	link := findByClass(container, "a", "result__a")
	if link == nil {
		return routing.WebResult{}, false
	}
	title := collapseText(link)
	href := attrValue(link, "href")
	if title == "" || href == "" {
		return routing.WebResult{}, false
	}

	// DuckDuckGo has served the snippet as both <div> and <a> over time,
	// so match on class alone.
	var snippet string
	if node := findByClass(container, "", "result__snippet"); node != nil {
		snippet = collapseText(node)
	}

	return routing.WebResult{
		Title:   title,
		URL:     href,
		Snippet: snippet,
		Source:  "duckduckgo",
	}, true
}

// findByClass returns the first descendant with the given tag and class.
// An empty tag matches any element.
func findByClass(n *html.Node, tag, class string) *html.Node {
	if n.Type == html.ElementNode && (tag == "" || n.Data == tag) && hasClass(n, class) {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findByClass(child, tag, class); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// collapseText returns the node's text content with whitespace collapsed.
func collapseText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
