// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseCommon(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expected    *commonOptions
		rest        []string
		expectError bool
	}{
		{
			name:     "no arguments",
			args:     []string{},
			expected: &commonOptions{ConfigPath: DefaultConfigPath},
			rest:     []string{},
		},
		{
			name:     "config path",
			args:     []string{"--config", "custom.yaml", "what is 2+2"},
			expected: &commonOptions{ConfigPath: "custom.yaml"},
			rest:     []string{"what is 2+2"},
		},
		{
			name:     "single dash forms",
			args:     []string{"-config", "c.yaml", "-debug", "-json"},
			expected: &commonOptions{ConfigPath: "c.yaml", Debug: true, JSON: true},
			rest:     []string{},
		},
		{
			name:     "flags after the query",
			args:     []string{"solve x^2 = 4", "--debug"},
			expected: &commonOptions{ConfigPath: DefaultConfigPath, Debug: true},
			rest:     []string{"solve x^2 = 4"},
		},
		{
			name:     "positional order preserved",
			args:     []string{"--json", "first", "second"},
			expected: &commonOptions{ConfigPath: DefaultConfigPath, JSON: true},
			rest:     []string{"first", "second"},
		},
		{
			name:        "config without value",
			args:        []string{"--config"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, rest, err := parseCommon(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if opts.ConfigPath != tt.expected.ConfigPath {
				t.Errorf("expected config path %q, got %q", tt.expected.ConfigPath, opts.ConfigPath)
			}

			if opts.Debug != tt.expected.Debug {
				t.Errorf("expected debug %v, got %v", tt.expected.Debug, opts.Debug)
			}

			if opts.JSON != tt.expected.JSON {
				t.Errorf("expected json %v, got %v", tt.expected.JSON, opts.JSON)
			}

			if len(rest) != len(tt.rest) {
				t.Fatalf("expected %d remaining args, got %d (%v)", len(tt.rest), len(rest), rest)
			}

			for i := range rest {
				if rest[i] != tt.rest[i] {
					t.Errorf("expected remaining arg %d to be %q, got %q", i, tt.rest[i], rest[i])
				}
			}
		})
	}
}

func TestParseFeedbackCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expected    *feedbackOptions
		expectError bool
	}{
		{
			name:     "minimal",
			args:     []string{"--rating", "4"},
			expected: &feedbackOptions{Rating: 4},
		},
		{
			name: "full surface",
			args: []string{
				"--rating", "5", "--helpful", "--incorrect", "--unclear",
				"--incomplete", "--comments", "too terse",
				"--suggest", "show the quadratic formula",
				"--solution", "x = 2", "--response", "resp.json",
				"--query", "solve x^2 = 4",
			},
			expected: &feedbackOptions{
				Rating:     5,
				Helpful:    true,
				Incorrect:  true,
				Unclear:    true,
				Incomplete: true,
				Comments:   "too terse",
				Suggest:    "show the quadratic formula",
				Solution:   "x = 2",
				Response:   "resp.json",
				Query:      "solve x^2 = 4",
			},
		},
		{
			name:        "rating missing",
			args:        []string{"--helpful"},
			expectError: true,
		},
		{
			name:        "rating too low",
			args:        []string{"--rating", "0"},
			expectError: true,
		},
		{
			name:        "rating too high",
			args:        []string{"--rating", "6"},
			expectError: true,
		},
		{
			name:        "rating not a number",
			args:        []string{"--rating", "great"},
			expectError: true,
		},
		{
			name:        "comments without value",
			args:        []string{"--rating", "3", "--comments"},
			expectError: true,
		},
		{
			name:        "unknown option",
			args:        []string{"--rating", "3", "--rate-limit"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFeedbackCommand(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if opts.Rating != tt.expected.Rating {
				t.Errorf("expected rating %d, got %d", tt.expected.Rating, opts.Rating)
			}

			if opts.Helpful != tt.expected.Helpful {
				t.Errorf("expected helpful %v, got %v", tt.expected.Helpful, opts.Helpful)
			}

			if opts.Incorrect != tt.expected.Incorrect {
				t.Errorf("expected incorrect %v, got %v", tt.expected.Incorrect, opts.Incorrect)
			}

			if opts.Unclear != tt.expected.Unclear {
				t.Errorf("expected unclear %v, got %v", tt.expected.Unclear, opts.Unclear)
			}

			if opts.Incomplete != tt.expected.Incomplete {
				t.Errorf("expected incomplete %v, got %v", tt.expected.Incomplete, opts.Incomplete)
			}

			if opts.Comments != tt.expected.Comments {
				t.Errorf("expected comments %q, got %q", tt.expected.Comments, opts.Comments)
			}

			if opts.Suggest != tt.expected.Suggest {
				t.Errorf("expected suggestion %q, got %q", tt.expected.Suggest, opts.Suggest)
			}

			if opts.Solution != tt.expected.Solution {
				t.Errorf("expected solution %q, got %q", tt.expected.Solution, opts.Solution)
			}

			if opts.Response != tt.expected.Response {
				t.Errorf("expected response %q, got %q", tt.expected.Response, opts.Response)
			}

			if opts.Query != tt.expected.Query {
				t.Errorf("expected query %q, got %q", tt.expected.Query, opts.Query)
			}
		})
	}
}

func TestParseFeedbackCommand_CommonFlags(t *testing.T) {
	opts, err := parseFeedbackCommand([]string{"--json", "--rating", "3", "--config", "alt.yaml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.common.JSON {
		t.Errorf("expected the shared json flag to be picked up")
	}
	if opts.common.ConfigPath != "alt.yaml" {
		t.Errorf("expected config path alt.yaml, got %q", opts.common.ConfigPath)
	}
	if opts.Rating != 3 {
		t.Errorf("expected rating 3, got %d", opts.Rating)
	}
}

func TestReadResponse_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resp.json")
	payload := []byte(`{"query":"what is 2+2","solution":"4"}`)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	data, err := readResponse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("expected %s, got %s", payload, data)
	}

	if _, err := readResponse(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
