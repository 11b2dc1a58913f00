// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package knowledge

import (
	"fmt"

	"github.com/solvernet/mathrouter/internal/routing"
)

// Document is one curated knowledge-base entry.
type Document struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
	Topic       string   `json:"topic"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Keywords    []string `json:"keywords"`
}

// Validate checks the fields every stored document must carry.
func (d *Document) Validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("document is missing an id")
	case d.Question == "":
		return fmt.Errorf("document %s is missing a question", d.ID)
	case d.Answer == "":
		return fmt.Errorf("document %s is missing an answer", d.ID)
	case d.Topic == "":
		return fmt.Errorf("document %s is missing a topic", d.ID)
	case len(d.Keywords) == 0:
		return fmt.Errorf("document %s has no keywords", d.ID)
	}
	return nil
}

// SearchResult pairs a document with its retrieval score. Keyword scores are
// unbounded sums; vector scores are cosine similarities.
type SearchResult struct {
	Document
	Score float64 `json:"score"`
	Rank  int     `json:"rank,omitempty"`
}

// Candidate converts the hit into the routing layer's scoring contract. The
// answer text becomes the candidate content; question, explanation, and
// difficulty travel in the metadata map so downstream consumers can format a
// full solution without a second lookup.
func (r SearchResult) Candidate() routing.Candidate {
	meta := map[string]string{"question": r.Question}
	if r.Explanation != "" {
		meta["explanation"] = r.Explanation
	}
	if r.Difficulty != "" {
		meta["difficulty"] = r.Difficulty
	}
	return routing.Candidate{
		ID:             r.ID,
		Content:        r.Answer,
		RelevanceScore: r.Score,
		Topic:          r.Topic,
		Metadata:       meta,
	}
}

// SeedCorpus returns the built-in mathematical corpus used when no corpus
// file exists yet.
func SeedCorpus() []Document {
	return []Document{
		{
			ID:          "quad_formula",
			Question:    "What is the quadratic formula?",
			Answer:      "The quadratic formula is x = (-b ± √(b²-4ac)) / (2a)",
			Explanation: "This formula solves quadratic equations of the form ax² + bx + c = 0",
			Topic:       "algebra",
			Difficulty:  "intermediate",
			Keywords:    []string{"quadratic", "formula", "equation", "roots"},
		},
		{
			ID:          "derivative_rules",
			Question:    "What are the basic derivative rules?",
			Answer:      "Power rule: d/dx(x^n) = nx^(n-1), Product rule: d/dx(uv) = u'v + uv', Chain rule: d/dx(f(g(x))) = f'(g(x))g'(x)",
			Explanation: "These are the fundamental rules for finding derivatives in calculus",
			Topic:       "calculus",
			Difficulty:  "intermediate",
			Keywords:    []string{"derivative", "calculus", "power rule", "product rule", "chain rule"},
		},
		{
			ID:          "pythagorean_theorem",
			Question:    "What is the Pythagorean theorem?",
			Answer:      "In a right triangle, a² + b² = c², where c is the hypotenuse",
			Explanation: "The square of the hypotenuse equals the sum of squares of the other two sides",
			Topic:       "geometry",
			Difficulty:  "basic",
			Keywords:    []string{"pythagorean", "theorem", "triangle", "hypotenuse", "geometry"},
		},
		{
			ID:          "integration_basic",
			Question:    "What is integration?",
			Answer:      "Integration is the reverse process of differentiation, used to find areas under curves",
			Explanation: "The integral ∫f(x)dx represents the antiderivative of f(x) plus a constant",
			Topic:       "calculus",
			Difficulty:  "intermediate",
			Keywords:    []string{"integration", "integral", "antiderivative", "calculus"},
		},
		{
			ID:          "linear_equation",
			Question:    "How to solve linear equations?",
			Answer:      "For ax + b = c, solve by isolating x: x = (c - b) / a",
			Explanation: "Linear equations have the form ax + b = c and can be solved by algebraic manipulation",
			Topic:       "algebra",
			Difficulty:  "basic",
			Keywords:    []string{"linear", "equation", "algebra", "solve"},
		},
		{
			ID:          "trig_identities",
			Question:    "What are basic trigonometric identities?",
			Answer:      "sin²θ + cos²θ = 1, tan θ = sin θ / cos θ, sin(2θ) = 2sin θ cos θ",
			Explanation: "These identities are fundamental relationships between trigonometric functions",
			Topic:       "trigonometry",
			Difficulty:  "intermediate",
			Keywords:    []string{"trigonometry", "identities", "sin", "cos", "tan"},
		},
		{
			ID:          "factorial",
			Question:    "What is a factorial?",
			Answer:      "n! = n × (n-1) × (n-2) × ... × 1, with 0! = 1",
			Explanation: "Factorial is the product of all positive integers up to n",
			Topic:       "combinatorics",
			Difficulty:  "basic",
			Keywords:    []string{"factorial", "combinatorics", "multiplication"},
		},
		{
			ID:          "slope_formula",
			Question:    "What is the slope formula?",
			Answer:      "slope = (y₂ - y₁) / (x₂ - x₁) for points (x₁,y₁) and (x₂,y₂)",
			Explanation: "Slope measures the rate of change between two points on a line",
			Topic:       "algebra",
			Difficulty:  "basic",
			Keywords:    []string{"slope", "formula", "line", "rate", "change"},
		},
		{
			ID:          "area_circle",
			Question:    "What is the area of a circle?",
			Answer:      "Area = πr², where r is the radius",
			Explanation: "The area of a circle is pi times the square of its radius",
			Topic:       "geometry",
			Difficulty:  "basic",
			Keywords:    []string{"area", "circle", "radius", "pi", "geometry"},
		},
		{
			ID:          "solve_quadratic",
			Question:    "How to solve x² - 5x + 6 = 0?",
			Answer:      "x = 2 or x = 3",
			Explanation: "Factor as (x-2)(x-3) = 0 or use quadratic formula",
			Topic:       "algebra",
			Difficulty:  "intermediate",
			Keywords:    []string{"quadratic", "solve", "factoring", "equation"},
		},
	}
}
