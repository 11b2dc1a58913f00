// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package solver produces structured methodological answers. It never
// computes symbolically; it classifies the problem and returns worked
// guidance, or reshapes knowledge-base and web material into the same
// solution form. Every function is pure and deterministic for a given
// input.
package solver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/solvernet/mathrouter/internal/routing"
)

// Solution is a worked answer from one solving strategy.
type Solution struct {
	Text       string
	Steps      []string
	Topic      string
	Confidence float64
	Method     string
}

// Method names carried in Solution.Method.
const (
	MethodKnowledgeBase     = "knowledge_base"
	MethodWebSearch         = "web_search"
	MethodDirectComputation = "direct_computation"
)

// Problem classes recognized by Direct, checked in order: the first
// matching pattern wins.
const (
	kindQuadratic  = "quadratic"
	kindDerivative = "derivative"
	kindIntegral   = "integral"
	kindEquation   = "equation"
	kindSimplify   = "simplify"
	kindFactor     = "factor"
	kindLinear     = "linear"
	kindGeneral    = "general"
)

var problemKinds = []struct {
	kind    string
	pattern *regexp.Regexp
}{
	{kindQuadratic, regexp.MustCompile(`x\^?2|quadratic`)},
	{kindDerivative, regexp.MustCompile(`derivative|d/dx|differentiat`)},
	{kindIntegral, regexp.MustCompile(`integral|∫|integrat`)},
	{kindEquation, regexp.MustCompile(`=.*[x-z]|solve.*for`)},
	{kindSimplify, regexp.MustCompile(`simplify|expand`)},
	{kindFactor, regexp.MustCompile(`factor|factorize`)},
	{kindLinear, regexp.MustCompile(`[x-z]\s*=|linear`)},
}

// stepPattern lifts numbered steps out of prose pulled from web pages.
var stepPattern = regexp.MustCompile(`(?i)step\s*\d+[:\-.]?\s*([^.!?]*[.!?])`)

func classify(query string) string {
	queryLower := strings.ToLower(query)
	for _, pk := range problemKinds {
		if pk.pattern.MatchString(queryLower) {
			return pk.kind
		}
	}
	return kindGeneral
}

// Direct answers a query with methodological guidance for its problem
// class.
func Direct(query string) Solution {
	var sol Solution
	switch classify(query) {
	case kindQuadratic:
		sol = Solution{
			Text: "For quadratic equations ax² + bx + c = 0, use the quadratic formula: x = (-b ± √(b²-4ac)) / (2a)",
			Steps: []string{
				"Step 1: Identify coefficients a, b, and c",
				"Step 2: Calculate discriminant b² - 4ac",
				"Step 3: Apply quadratic formula",
				"Step 4: Simplify to get solutions",
			},
			Confidence: 0.7,
		}
	case kindLinear:
		sol = Solution{
			Text: "For linear equations ax + b = c, solve by isolating x: x = (c - b) / a",
			Steps: []string{
				"Step 1: Subtract b from both sides",
				"Step 2: Divide both sides by a",
				"Step 3: x = (c - b) / a",
			},
			Confidence: 0.7,
		}
	case kindDerivative:
		sol = Solution{
			Text: "Use differentiation rules: power rule, product rule, chain rule as appropriate",
			Steps: []string{
				"Step 1: Identify the function type",
				"Step 2: Apply appropriate differentiation rule",
				"Step 3: Simplify the result",
			},
			Confidence: 0.6,
		}
	case kindIntegral:
		sol = Solution{
			Text: "Use integration techniques: substitution, integration by parts, or standard formulas",
			Steps: []string{
				"Step 1: Identify the function type",
				"Step 2: Choose appropriate integration method",
				"Step 3: Apply the method and add constant C",
			},
			Confidence: 0.6,
		}
	case kindSimplify:
		sol = Solution{
			Text: "To simplify expressions, combine like terms, factor common elements, and apply algebraic rules",
			Steps: []string{
				"Step 1: Identify like terms",
				"Step 2: Combine and factor where possible",
				"Step 3: Write in simplest form",
			},
			Confidence: 0.6,
		}
	case kindFactor:
		sol = Solution{
			Text: "To factor expressions, look for common factors, difference of squares, or trinomial patterns",
			Steps: []string{
				"Step 1: Look for greatest common factor",
				"Step 2: Check for special patterns",
				"Step 3: Factor completely",
			},
			Confidence: 0.6,
		}
	default: // equation and general both get contextual guidance
		sol = Solution{
			Text: contextualHelp(query),
			Steps: []string{
				"Step 1: Analyzing the mathematical problem",
				"Step 2: Identifying relevant mathematical concepts",
				"Step 3: Applying appropriate solution methods",
			},
			Confidence: 0.5,
		}
	}
	sol.Method = MethodDirectComputation
	return sol
}

func contextualHelp(query string) string {
	queryLower := strings.ToLower(query)

	switch {
	case containsAny(queryLower, "quadratic", "x^2", "x²"):
		return "For quadratic equations, you can use the quadratic formula: x = (-b ± √(b²-4ac)) / (2a), or try factoring if possible."
	case containsAny(queryLower, "derivative", "differentiate"):
		return "To find derivatives, use rules like: power rule d/dx(x^n) = nx^(n-1), product rule, and chain rule."
	case containsAny(queryLower, "integral", "integrate"):
		return "For integration, try substitution method, integration by parts, or look up standard integral formulas."
	case containsAny(queryLower, "solve", "equation"):
		return "To solve equations: isolate the variable by performing the same operations on both sides, or use specific methods for different equation types."
	}
	return "Please provide more specific details about your mathematical problem so I can give you a detailed step-by-step solution."
}

// FromKnowledge reshapes the best knowledge-base candidate into a worked
// solution: the stored answer and explanation, framed by steps chosen from
// the matched question's vocabulary.
func FromKnowledge(c *routing.Candidate, query string) Solution {
	answer := c.Content
	explanation := c.Metadata["explanation"]
	question := c.Metadata["question"]

	steps := stepsFromKnowledge(question, c.Topic, query)

	confidence := c.RelevanceScore
	if confidence <= 0 {
		confidence = 0.8
	}

	return Solution{
		Text:       formatSolution(answer, explanation, steps),
		Steps:      steps,
		Topic:      c.Topic,
		Confidence: clampUnit(confidence),
		Method:     MethodKnowledgeBase,
	}
}

func stepsFromKnowledge(question, topic, query string) []string {
	steps := []string{fmt.Sprintf("Problem Type: This is a %s problem.", topic)}

	questionLower := strings.ToLower(question)
	switch {
	case strings.Contains(questionLower, "quadratic") && strings.Contains(questionLower, "formula"):
		steps = append(steps,
			"Step 1: Identify the quadratic equation in the form ax² + bx + c = 0",
			"Step 2: Apply the quadratic formula: x = (-b ± √(b²-4ac)) / (2a)",
			"Step 3: Substitute the values of a, b, and c",
			"Step 4: Simplify to find the solutions",
		)
	case strings.Contains(questionLower, "derivative"):
		steps = append(steps,
			"Step 1: Identify the function to differentiate",
			"Step 2: Apply appropriate differentiation rules",
			"Step 3: Simplify the result",
		)
	case strings.Contains(strings.ToLower(query), "solve"):
		steps = append(steps,
			"Step 1: Write the equation in standard form",
			"Step 2: Apply appropriate solving technique",
			"Step 3: Verify the solution",
		)
	default:
		steps = append(steps,
			"Step 1: Understand the problem requirements",
			"Step 2: Apply relevant mathematical principles",
			"Step 3: Calculate the result",
		)
	}
	return steps
}

func formatSolution(answer, explanation string, steps []string) string {
	var parts []string
	if answer != "" {
		parts = append(parts, "Answer: "+answer)
	}
	if explanation != "" {
		parts = append(parts, "\nExplanation: "+explanation)
	}
	if len(steps) > 0 {
		parts = append(parts, "\nDetailed Steps:\n"+strings.Join(steps, "\n"))
	}
	return strings.Join(parts, "\n")
}

// FromWebResults reshapes ranked search results into a worked solution.
// Steps are lifted from the fetched page content when it already narrates
// them, otherwise canned by query intent. An empty result set yields the
// zero-confidence no-results response.
func FromWebResults(results []routing.WebResult, query string) Solution {
	if len(results) == 0 {
		return Solution{
			Text: "I couldn't find specific information about this problem online. Please provide more details or try a different approach to the question.",
			Steps: []string{
				"No relevant search results found",
				"Consider rephrasing the question",
				"Provide more specific mathematical details",
			},
			Confidence: 0.0,
			Method:     MethodWebSearch,
		}
	}

	title := results[0].Title
	content := combinedContent(results)
	steps := stepsFromWeb(content, query)

	var text string
	if content != "" {
		text = fmt.Sprintf("Based on search results about '%s':\n\n%s...", title, truncateRunes(content, 300))
	} else {
		text = fmt.Sprintf("Found information about '%s', but specific solution steps need to be worked out based on the mathematical principles involved.", title)
	}

	confidence := results[0].RelevanceScore
	if confidence <= 0 {
		confidence = 0.5
	}

	return Solution{
		Text:       text,
		Steps:      steps,
		Confidence: clampUnit(confidence),
		Method:     MethodWebSearch,
	}
}

// combinedContent joins the fetched content of the top three results.
func combinedContent(results []routing.WebResult) string {
	limit := len(results)
	if limit > 3 {
		limit = 3
	}

	var sb strings.Builder
	for _, r := range results[:limit] {
		if r.HasContent && r.Content != "" {
			sb.WriteString(r.Content)
			sb.WriteByte(' ')
		}
	}
	return strings.TrimSpace(sb.String())
}

func stepsFromWeb(content, query string) []string {
	if strings.Contains(strings.ToLower(content), "step") {
		matches := stepPattern.FindAllStringSubmatch(content, -1)
		if len(matches) > 5 {
			matches = matches[:5]
		}
		var steps []string
		for i, m := range matches {
			steps = append(steps, fmt.Sprintf("Step %d: %s", i+1, strings.TrimSpace(m[1])))
		}
		if len(steps) > 0 {
			return steps
		}
	}

	if strings.Contains(strings.ToLower(query), "solve") {
		return []string{
			"Step 1: Identify the type of equation or problem",
			"Step 2: Choose the appropriate solution method",
			"Step 3: Apply the method systematically",
			"Step 4: Check and verify the solution",
		}
	}
	return []string{
		"Step 1: Understand the mathematical concept",
		"Step 2: Apply relevant formulas or theorems",
		"Step 3: Simplify and present the result",
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clampUnit(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0 {
		return 0.0
	}
	return v
}
