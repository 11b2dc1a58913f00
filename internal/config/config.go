// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the mathrouter engine.
// It handles loading and parsing YAML configuration files and provides
// structured access to routing thresholds, store locations, collaborator
// budgets, and hook settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/solvernet/mathrouter/internal/secret"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile controls whether logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogsDir is the directory for rotating log files. Defaults to "logs".
	LogsDir string `yaml:"logs-dir"`

	// LogsMaxTotalSizeMB limits the total size (in MB) of log files under the logs
	// directory. When exceeded, the oldest log files are deleted until within the
	// limit. Set to 0 to disable.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb"`

	// DataDir is the base directory for durable state (knowledge corpus, routing
	// trail, feedback archive). Defaults to "data".
	DataDir string `yaml:"data-dir"`

	// Routing controls the route-selection thresholds and scoring policy.
	Routing RoutingConfig `yaml:"routing"`

	// Ledger controls routing-history retention and the durable trail.
	Ledger LedgerConfig `yaml:"ledger"`

	// Feedback controls the feedback store and its durable archive.
	Feedback FeedbackConfig `yaml:"feedback"`

	// Knowledge configures the curated knowledge-base collaborator.
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// WebSearch configures the live web-search collaborator.
	WebSearch WebSearchConfig `yaml:"web-search"`

	// Hooks configures the decision/feedback event hooks.
	Hooks HooksConfig `yaml:"hooks"`
}

// RoutingConfig controls route selection behavior.
type RoutingConfig struct {
	// KBConfidenceThreshold is the score at or above which the knowledge base
	// answers alone.
	KBConfidenceThreshold float64 `yaml:"kb-confidence-threshold"`

	// WebSearchGate is the minimum web-search-need score for consulting the web.
	WebSearchGate float64 `yaml:"web-search-gate"`

	// HybridKBFloor is the minimum knowledge-base score required to blend the
	// knowledge base into a web-search answer.
	HybridKBFloor float64 `yaml:"hybrid-kb-floor"`

	// TopK is the number of knowledge-base candidates consulted per query.
	TopK int `yaml:"top-k"`

	// PolicyFile optionally overrides the built-in scoring keyword tables.
	PolicyFile string `yaml:"policy-file"`

	// PolicyHotReload reloads the policy file on change when true.
	PolicyHotReload bool `yaml:"policy-hot-reload"`
}

// LedgerConfig controls routing-history retention and the durable trail.
type LedgerConfig struct {
	// MaxEntries bounds the in-memory history ring. Oldest entries are evicted
	// once the ring is full. Set to 0 for the default of 10000.
	MaxEntries int `yaml:"max-entries"`

	// TrailEnabled appends every routing decision to a JSONL trail file.
	TrailEnabled bool `yaml:"trail-enabled"`

	// TrailPath overrides the trail file location. Defaults to
	// <data-dir>/routing_trail.jsonl.
	TrailPath string `yaml:"trail-path"`

	// SegmentMaxSizeMB rotates the trail file once it exceeds this size.
	// Rotated segments are compressed. Set to 0 for the default of 32.
	SegmentMaxSizeMB int `yaml:"segment-max-size-mb"`

	// Archive optionally uploads rotated segments to S3-compatible storage.
	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig holds S3-compatible object storage settings for rotated
// trail segments.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access-key"`
	SecretKey string `yaml:"secret-key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use-ssl"`

	// PruneLocal removes a local segment after a successful upload.
	PruneLocal bool `yaml:"prune-local"`
}

// ResolveAccessKey returns the object storage access key, preferring the
// environment over the config file.
func (a *ArchiveConfig) ResolveAccessKey() string {
	if v := secret.ArchiveAccessKey(); v != "" {
		return v
	}
	return a.AccessKey
}

// ResolveSecretKey returns the object storage secret key, preferring the
// environment over the config file.
func (a *ArchiveConfig) ResolveSecretKey() string {
	if v := secret.ArchiveSecretKey(); v != "" {
		return v
	}
	return a.SecretKey
}

// FeedbackConfig controls the feedback store and its durable archive.
type FeedbackConfig struct {
	// Driver selects the archive database driver: "sqlite3" (default), "pgx"
	// for Postgres, or "none" to keep feedback in memory only.
	Driver string `yaml:"driver"`

	// DSN is the database connection string. Defaults to
	// <data-dir>/feedback.db for sqlite3.
	DSN string `yaml:"dsn"`

	// RetentionDays prunes archived feedback older than this. 0 keeps everything.
	RetentionDays int `yaml:"retention-days"`

	// MaxSuggestions bounds the retained improvement-suggestion list.
	// Set to 0 for the default of 1000.
	MaxSuggestions int `yaml:"max-suggestions"`

	// Rules adds improvement rules on top of the built-in set. Each rule is an
	// expression over the feedback entry plus the suggestion it produces.
	Rules []ImprovementRuleConfig `yaml:"rules"`
}

// ImprovementRuleConfig declares one improvement rule in configuration.
type ImprovementRuleConfig struct {
	// When is a boolean expression over the feedback entry, e.g.
	// "Rating <= 2 && !Helpful".
	When string `yaml:"when"`

	// Type names the issue category, e.g. "clarity".
	Type string `yaml:"type"`

	// Issue describes the problem the rule detects.
	Issue string `yaml:"issue"`

	// Priority is one of low, medium, high, critical.
	Priority string `yaml:"priority"`

	// Suggestion is the human-readable improvement text.
	Suggestion string `yaml:"suggestion"`

	// CarryCorrection copies the user's alternative solution into the
	// suggestion record when present.
	CarryCorrection bool `yaml:"carry-correction"`
}

// KnowledgeConfig configures the curated knowledge-base collaborator.
type KnowledgeConfig struct {
	// Path is the JSON corpus file. Defaults to <data-dir>/knowledge_base.json.
	Path string `yaml:"path"`

	// ReadOnly rejects corpus mutations when true.
	ReadOnly bool `yaml:"read-only"`

	// Git optionally syncs the corpus from a git repository before loading.
	Git GitSourceConfig `yaml:"git"`

	// Embedding optionally enables vector search over the corpus.
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// GitSourceConfig syncs the knowledge corpus from a git repository.
type GitSourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`

	// Ref is the branch to track. Empty tracks the remote default branch.
	Ref string `yaml:"ref"`

	// Dir is the local checkout directory. Defaults to <data-dir>/kb-corpus.
	Dir string `yaml:"dir"`

	// File is the corpus file inside the checkout. Defaults to knowledge_base.json.
	File string `yaml:"file"`
}

// EmbeddingConfig enables ONNX embedding inference for vector search.
type EmbeddingConfig struct {
	Enabled bool `yaml:"enabled"`

	// ModelPath is the ONNX model file (MiniLM-compatible).
	ModelPath string `yaml:"model-path"`

	// VocabPath is the WordPiece vocabulary file.
	VocabPath string `yaml:"vocab-path"`

	// SharedLibraryPath locates the ONNX runtime shared library.
	SharedLibraryPath string `yaml:"shared-library-path"`
}

// WebSearchConfig configures the live web-search collaborator.
type WebSearchConfig struct {
	// MaxResults caps the number of results returned per search.
	MaxResults int `yaml:"max-results"`

	// TimeoutSeconds is the budget for one whole search call.
	TimeoutSeconds int `yaml:"timeout-seconds"`

	// FetchTimeoutSeconds is the budget for fetching one result page.
	FetchTimeoutSeconds int `yaml:"fetch-timeout-seconds"`

	// EnrichTop fetches page content for this many top results.
	EnrichTop int `yaml:"enrich-top"`

	// MaxContentChars truncates extracted page content.
	MaxContentChars int `yaml:"max-content-chars"`

	// MaxContentTokens additionally caps extracted content by BPE token count
	// for downstream model consumers. 0 disables the token cap.
	MaxContentTokens int `yaml:"max-content-tokens"`

	// UserAgent is sent on outbound search and fetch requests.
	UserAgent string `yaml:"user-agent"`
}

// HooksConfig configures the decision/feedback event hooks.
type HooksConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir is a watched directory of hook definition YAML files.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LogsDir == "" {
		c.LogsDir = "logs"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Routing.KBConfidenceThreshold == 0 {
		c.Routing.KBConfidenceThreshold = 0.7
	}
	if c.Routing.WebSearchGate == 0 {
		c.Routing.WebSearchGate = 0.5
	}
	if c.Routing.HybridKBFloor == 0 {
		c.Routing.HybridKBFloor = 0.3
	}
	if c.Routing.TopK == 0 {
		c.Routing.TopK = 3
	}
	if c.Ledger.MaxEntries == 0 {
		c.Ledger.MaxEntries = 10000
	}
	if c.Ledger.SegmentMaxSizeMB == 0 {
		c.Ledger.SegmentMaxSizeMB = 32
	}
	if c.Feedback.Driver == "" {
		c.Feedback.Driver = "sqlite3"
	}
	if c.Feedback.MaxSuggestions == 0 {
		c.Feedback.MaxSuggestions = 1000
	}
	if c.Knowledge.Git.Dir == "" {
		c.Knowledge.Git.Dir = filepath.Join(c.DataDir, "kb-corpus")
	}
	if c.Knowledge.Git.File == "" {
		c.Knowledge.Git.File = "knowledge_base.json"
	}
	if c.WebSearch.MaxResults == 0 {
		c.WebSearch.MaxResults = 5
	}
	if c.WebSearch.TimeoutSeconds == 0 {
		c.WebSearch.TimeoutSeconds = 10
	}
	if c.WebSearch.FetchTimeoutSeconds == 0 {
		c.WebSearch.FetchTimeoutSeconds = 5
	}
	if c.WebSearch.EnrichTop == 0 {
		c.WebSearch.EnrichTop = 2
	}
	if c.WebSearch.MaxContentChars == 0 {
		c.WebSearch.MaxContentChars = 500
	}
	if c.WebSearch.UserAgent == "" {
		c.WebSearch.UserAgent = "mathrouter/1.0 (+https://github.com/solvernet/mathrouter)"
	}
}

// KnowledgePath resolves the knowledge corpus file location.
func (c *Config) KnowledgePath() string {
	if c.Knowledge.Path != "" {
		return c.Knowledge.Path
	}
	return filepath.Join(c.DataDir, "knowledge_base.json")
}

// TrailPath resolves the routing trail file location.
func (c *Config) TrailPath() string {
	if c.Ledger.TrailPath != "" {
		return c.Ledger.TrailPath
	}
	return filepath.Join(c.DataDir, "routing_trail.jsonl")
}

// FeedbackDSN resolves the feedback archive connection string. The
// environment wins over the config file so database passwords stay out of
// checked-in YAML.
func (c *Config) FeedbackDSN() string {
	if dsn := secret.FeedbackDSN(); dsn != "" {
		return dsn
	}
	if c.Feedback.DSN != "" {
		return c.Feedback.DSN
	}
	if c.Feedback.Driver == "sqlite3" {
		return filepath.Join(c.DataDir, "feedback.db")
	}
	return ""
}

// HooksDir resolves the watched hook definitions directory.
func (c *Config) HooksDir() string {
	if c.Hooks.Dir != "" {
		return c.Hooks.Dir
	}
	return filepath.Join(c.DataDir, "hooks")
}

// LoadConfig reads and parses the YAML configuration file at configFile.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional behaves like LoadConfig, but when optional is true a
// missing or empty file yields the default configuration instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional {
			if os.IsNotExist(err) || errors.Is(err, syscall.EISDIR) {
				return DefaultConfig(), nil
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if optional && len(data) == 0 {
		return DefaultConfig(), nil
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects threshold combinations the selector cannot honor.
func (c *Config) Validate() error {
	r := c.Routing
	if r.KBConfidenceThreshold < 0 || r.KBConfidenceThreshold > 1 {
		return fmt.Errorf("routing: kb-confidence-threshold %.3f outside [0,1]", r.KBConfidenceThreshold)
	}
	if r.WebSearchGate < 0 || r.WebSearchGate > 1 {
		return fmt.Errorf("routing: web-search-gate %.3f outside [0,1]", r.WebSearchGate)
	}
	if r.HybridKBFloor < 0 || r.HybridKBFloor > 1 {
		return fmt.Errorf("routing: hybrid-kb-floor %.3f outside [0,1]", r.HybridKBFloor)
	}
	if r.HybridKBFloor >= r.KBConfidenceThreshold {
		return fmt.Errorf("routing: hybrid-kb-floor %.3f must stay below kb-confidence-threshold %.3f", r.HybridKBFloor, r.KBConfidenceThreshold)
	}
	if r.TopK < 1 {
		return fmt.Errorf("routing: top-k must be at least 1, got %d", r.TopK)
	}
	switch c.Feedback.Driver {
	case "sqlite3", "pgx", "none":
	default:
		return fmt.Errorf("feedback: unknown driver %q (want sqlite3, pgx, or none)", c.Feedback.Driver)
	}
	return nil
}
