// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the mathrouter command line. One binary answers
// math questions through the routing pipeline and reports on routing
// history, feedback, and system state.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/buildinfo"
	"github.com/solvernet/mathrouter/internal/config"
	"github.com/solvernet/mathrouter/internal/engine"
	"github.com/solvernet/mathrouter/internal/feedback"
	"github.com/solvernet/mathrouter/internal/ledger"
	"github.com/solvernet/mathrouter/internal/logging"
	"github.com/solvernet/mathrouter/internal/routing"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "query":
		handleQueryCommand(os.Args[2:])
	case "repl":
		handleReplCommand(os.Args[2:])
	case "feedback":
		handleFeedbackCommand(os.Args[2:])
	case "stats":
		handleStatsCommand(os.Args[2:])
	case "analysis":
		handleAnalysisCommand(os.Args[2:])
	case "info":
		handleInfoCommand(os.Args[2:])
	case "samples":
		handleSamplesCommand(os.Args[2:])
	case "version":
		fmt.Printf("mathrouter Version: %s, Commit: %s, BuiltAt: %s\n",
			buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("mathrouter - confidence-based routing for math questions")
	fmt.Println()
	fmt.Println("Usage: mathrouter <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  query <question>   Answer one question and exit")
	fmt.Println("  repl               Interactive question loop")
	fmt.Println("  feedback           Rate a saved response envelope")
	fmt.Println("  stats              Routing decision statistics")
	fmt.Println("  analysis           Feedback analysis reports")
	fmt.Println("  info               System information")
	fmt.Println("  samples            Example questions per route")
	fmt.Println("  version            Print version information")
	fmt.Println()
	fmt.Println("Common options:")
	fmt.Println("  --config <path>    Configuration file (default: ./config.yaml)")
	fmt.Println("  --debug            Verbose logging")
	fmt.Println("  --json             Machine-readable output")
}

// commonOptions are the flags every subcommand understands.
type commonOptions struct {
	ConfigPath string
	Debug      bool
	JSON       bool
}

// parseCommon strips the shared options out of args and returns whatever
// is left for the subcommand to interpret.
func parseCommon(args []string) (*commonOptions, []string, error) {
	opts := &commonOptions{ConfigPath: DefaultConfigPath}
	rest := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config", "-config":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--config requires a value")
			}
			opts.ConfigPath = args[i+1]
			i++
		case "--debug", "-debug":
			opts.Debug = true
		case "--json", "-json":
			opts.JSON = true
		default:
			rest = append(rest, args[i])
		}
	}
	return opts, rest, nil
}

// bootEngine loads configuration, configures logging, and assembles the
// routing engine. It exits the process when the pipeline cannot start.
func bootEngine(ctx context.Context, opts *commonOptions) *engine.Engine {
	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		os.Exit(1)
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	if opts.Debug {
		cfg.Debug = true
	}
	logging.SetDebug(cfg.Debug)
	if err := logging.ConfigureLogOutput(cfg.LogsDir, cfg.LoggingToFile, cfg.LogsMaxTotalSizeMB); err != nil {
		log.Warnf("failed to configure log output: %v", err)
	}

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		log.Errorf("failed to start routing engine: %v", err)
		os.Exit(1)
	}
	return eng
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Errorf("failed to encode output: %v", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// handleQueryCommand answers a single question.
func handleQueryCommand(args []string) {
	opts, rest, err := parseCommon(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(rest) == 0 {
		fmt.Println("Error: no question given")
		fmt.Println("Usage: mathrouter query [--json] [--config <path>] <question>")
		os.Exit(1)
	}
	query := strings.Join(rest, " ")

	ctx := context.Background()
	eng := bootEngine(ctx, opts)
	defer func() { _ = eng.Close() }()

	resp := eng.ProcessQuery(ctx, query, nil)
	if opts.JSON {
		printJSON(resp)
		return
	}
	printEnvelope(resp)
}

func printEnvelope(resp *routing.Envelope) {
	fmt.Printf("Route: %s\n", resp.RouteUsed)
	if resp.Metadata != nil && resp.Metadata.Reasoning != "" {
		fmt.Printf("Reasoning: %s\n", resp.Metadata.Reasoning)
	}
	fmt.Printf("Confidence: %.2f\n", resp.Confidence)
	if resp.Error != "" {
		fmt.Printf("Error: %s\n", resp.Error)
	}

	fmt.Println()
	fmt.Println(resp.Solution)

	if len(resp.Steps) > 0 {
		fmt.Println()
		fmt.Println("Steps:")
		for _, step := range resp.Steps {
			fmt.Printf("  %s\n", step)
		}
	}

	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range resp.Sources {
			switch {
			case src.Content != nil:
				label := src.Content.Metadata["question"]
				if label == "" {
					label = src.Content.ID
				}
				fmt.Printf("  [%s] %s\n", src.Type, label)
			case len(src.Results) > 0:
				for _, r := range src.Results {
					fmt.Printf("  [%s] %s (%s)\n", src.Type, r.Title, r.URL)
				}
			case src.Method != "":
				fmt.Printf("  [%s] %s\n", src.Type, src.Method)
			default:
				fmt.Printf("  [%s]\n", src.Type)
			}
		}
	}
}

// handleReplCommand runs the interactive loop. The last answered envelope
// stays in memory so it can be rated with the feedback command.
func handleReplCommand(args []string) {
	opts, rest, err := parseCommon(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(rest) > 0 {
		fmt.Printf("Error: unexpected argument: %s\n", rest[0])
		os.Exit(1)
	}

	ctx := context.Background()
	eng := bootEngine(ctx, opts)
	defer func() { _ = eng.Close() }()

	fmt.Printf("mathrouter %s interactive mode\n", buildinfo.Version)
	fmt.Println("Ask a math question, or use: feedback <1-5> [comments], stats, info, samples, help, exit")
	fmt.Println()

	var last *routing.Envelope
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("mathrouter> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "exit", "quit":
			return
		case "help":
			printReplHelp()
		case "stats":
			printStats(eng.RoutingStats())
		case "info":
			printJSON(eng.SystemInfo())
		case "samples":
			printSamples(engine.SampleQueries())
		case "feedback":
			replFeedback(ctx, eng, last, fields[1:])
		default:
			last = eng.ProcessQuery(ctx, line, nil)
			printEnvelope(last)
			fmt.Println()
		}
	}
}

func printReplHelp() {
	fmt.Println("Type a math question to route and answer it.")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  feedback <1-5> [comments]  Rate the previous answer")
	fmt.Println("  stats                      Routing decision statistics")
	fmt.Println("  info                       System information")
	fmt.Println("  samples                    Example questions per route")
	fmt.Println("  exit                       Leave the loop")
}

func replFeedback(ctx context.Context, eng *engine.Engine, last *routing.Envelope, args []string) {
	if last == nil {
		fmt.Println("No answer to rate yet. Ask a question first.")
		return
	}
	if len(args) == 0 {
		fmt.Println("Usage: feedback <rating 1-5> [comments]")
		return
	}
	rating, err := strconv.Atoi(args[0])
	if err != nil || rating < 1 || rating > 5 {
		fmt.Println("Rating must be a number from 1 to 5.")
		return
	}

	ratings := feedback.DefaultRatings()
	ratings.Rating = rating
	ratings.Helpful = rating >= 4
	ratings.Comments = strings.Join(args[1:], " ")

	result := eng.SubmitFeedback(ctx, last.Query, last, ratings)
	fmt.Printf("Feedback %s recorded, %d improvement(s) identified.\n",
		result.FeedbackID, result.ImprovementsIdentified)
	for _, s := range result.Suggestions {
		fmt.Printf("  - [%s] %s\n", s.Priority, s.Suggestion)
	}
}

// feedbackOptions hold the one-shot feedback submission flags.
type feedbackOptions struct {
	common     *commonOptions
	Rating     int
	Helpful    bool
	Incorrect  bool
	Unclear    bool
	Incomplete bool
	Comments   string
	Suggest    string
	Solution   string
	Response   string
	Query      string
}

func parseFeedbackCommand(args []string) (*feedbackOptions, error) {
	common, rest, err := parseCommon(args)
	if err != nil {
		return nil, err
	}

	opts := &feedbackOptions{common: common}
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--rating":
			if i+1 >= len(rest) {
				return nil, fmt.Errorf("--rating requires a value")
			}
			rating, err := strconv.Atoi(rest[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid rating value: %s", rest[i+1])
			}
			opts.Rating = rating
			i++
		case "--helpful":
			opts.Helpful = true
		case "--incorrect":
			opts.Incorrect = true
		case "--unclear":
			opts.Unclear = true
		case "--incomplete":
			opts.Incomplete = true
		case "--comments":
			if i+1 >= len(rest) {
				return nil, fmt.Errorf("--comments requires a value")
			}
			opts.Comments = rest[i+1]
			i++
		case "--suggest":
			if i+1 >= len(rest) {
				return nil, fmt.Errorf("--suggest requires a value")
			}
			opts.Suggest = rest[i+1]
			i++
		case "--solution":
			if i+1 >= len(rest) {
				return nil, fmt.Errorf("--solution requires a value")
			}
			opts.Solution = rest[i+1]
			i++
		case "--response":
			if i+1 >= len(rest) {
				return nil, fmt.Errorf("--response requires a value")
			}
			opts.Response = rest[i+1]
			i++
		case "--query":
			if i+1 >= len(rest) {
				return nil, fmt.Errorf("--query requires a value")
			}
			opts.Query = rest[i+1]
			i++
		default:
			return nil, fmt.Errorf("unknown option: %s", rest[i])
		}
	}

	if opts.Rating < 1 || opts.Rating > 5 {
		return nil, fmt.Errorf("--rating is required and must be between 1 and 5")
	}
	return opts, nil
}

// handleFeedbackCommand rates a previously saved response envelope. The
// envelope JSON comes from --response <file> or stdin, so a typical flow is
// `mathrouter query --json "..." > resp.json` followed by
// `mathrouter feedback --rating 4 --response resp.json`.
func handleFeedbackCommand(args []string) {
	opts, err := parseFeedbackCommand(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Println("Usage: mathrouter feedback --rating <1-5> [--helpful] [--incorrect] [--unclear]")
		fmt.Println("       [--incomplete] [--comments <text>] [--suggest <text>] [--solution <text>]")
		fmt.Println("       [--response <file>] [--query <text>]")
		os.Exit(1)
	}

	raw, err := readResponse(opts.Response)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var resp routing.Envelope
	if err := json.Unmarshal(raw, &resp); err != nil {
		fmt.Printf("Error: response is not a valid envelope: %v\n", err)
		os.Exit(1)
	}

	query := opts.Query
	if query == "" {
		query = resp.Query
	}
	if query == "" {
		fmt.Println("Error: the envelope carries no query; pass --query")
		os.Exit(1)
	}

	ratings := feedback.DefaultRatings()
	ratings.Rating = opts.Rating
	ratings.Helpful = opts.Helpful
	if opts.Incorrect {
		ratings.Correct = false
	}
	if opts.Unclear {
		ratings.Clear = false
	}
	if opts.Incomplete {
		ratings.Complete = false
	}
	ratings.Comments = opts.Comments
	ratings.SuggestedImprovement = opts.Suggest
	ratings.AlternativeSolution = opts.Solution

	ctx := context.Background()
	eng := bootEngine(ctx, opts.common)
	defer func() { _ = eng.Close() }()

	result := eng.SubmitFeedback(ctx, query, &resp, ratings)
	if opts.common.JSON {
		printJSON(result)
		return
	}

	fmt.Printf("Feedback %s recorded (status: %s)\n", result.FeedbackID, result.Status)
	fmt.Printf("Improvements identified: %d\n", result.ImprovementsIdentified)
	for _, s := range result.Suggestions {
		fmt.Printf("  - [%s] %s\n", s.Priority, s.Suggestion)
	}
}

// readResponse loads the envelope JSON from a file, or from stdin when the
// path is empty or "-".
func readResponse(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read response from stdin: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("no response envelope on stdin; pass --response <file>")
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read response file: %w", err)
	}
	return data, nil
}

// handleStatsCommand reports the retained routing history.
func handleStatsCommand(args []string) {
	opts, rest, err := parseCommon(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(rest) > 0 {
		fmt.Printf("Error: unexpected argument: %s\n", rest[0])
		os.Exit(1)
	}

	ctx := context.Background()
	eng := bootEngine(ctx, opts)
	defer func() { _ = eng.Close() }()

	stats := eng.RoutingStats()
	if opts.JSON {
		printJSON(stats)
		return
	}
	printStats(stats)
}

var statsRouteOrder = []routing.RouteDecision{
	routing.RouteKnowledgeBase,
	routing.RouteWebSearch,
	routing.RouteHybrid,
	routing.RouteFallback,
}

func printStats(stats *ledger.Stats) {
	fmt.Println("Routing Statistics")
	fmt.Println("==================")
	fmt.Printf("Total queries: %d\n", stats.TotalQueries)

	if len(stats.RouteDistribution) > 0 {
		fmt.Println()
		fmt.Println("Route distribution:")
		for _, route := range statsRouteOrder {
			n, ok := stats.RouteDistribution[string(route)]
			if !ok {
				continue
			}
			fmt.Printf("  %-15s %5d  (avg confidence %.2f)\n",
				route, n, stats.AverageConfidenceByRoute[string(route)])
		}
	}

	if len(stats.RecentQueries) > 0 {
		fmt.Println()
		fmt.Println("Recent queries:")
		for _, entry := range stats.RecentQueries {
			fmt.Printf("  [%s] %s\n", entry.Route, entry.Query)
		}
	}
}

// handleAnalysisCommand prints feedback analysis reports. The default
// report is the full analysis; flags select the focused ones.
func handleAnalysisCommand(args []string) {
	opts, rest, err := parseCommon(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	report := "analysis"
	for _, arg := range rest {
		switch arg {
		case "--satisfaction":
			report = "satisfaction"
		case "--apply":
			report = "apply"
		case "--knowledge":
			report = "knowledge"
		default:
			fmt.Printf("Error: unknown option: %s\n", arg)
			fmt.Println("Usage: mathrouter analysis [--satisfaction | --apply | --knowledge]")
			os.Exit(1)
		}
	}

	ctx := context.Background()
	eng := bootEngine(ctx, opts)
	defer func() { _ = eng.Close() }()

	switch report {
	case "satisfaction":
		printJSON(eng.SatisfactionMetrics())
	case "apply":
		printJSON(eng.ApplyImprovements())
	case "knowledge":
		printJSON(eng.KnowledgeUpdates())
	default:
		printJSON(eng.FeedbackAnalysis())
	}
}

// handleInfoCommand prints the system self-description.
func handleInfoCommand(args []string) {
	opts, rest, err := parseCommon(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(rest) > 0 {
		fmt.Printf("Error: unexpected argument: %s\n", rest[0])
		os.Exit(1)
	}

	ctx := context.Background()
	eng := bootEngine(ctx, opts)
	defer func() { _ = eng.Close() }()

	printJSON(eng.SystemInfo())
}

// handleSamplesCommand prints the curated example questions. No engine is
// needed for this one.
func handleSamplesCommand(args []string) {
	opts, rest, err := parseCommon(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(rest) > 0 {
		fmt.Printf("Error: unexpected argument: %s\n", rest[0])
		os.Exit(1)
	}

	samples := engine.SampleQueries()
	if opts.JSON {
		printJSON(samples)
		return
	}
	printSamples(samples)
}

func printSamples(samples engine.Samples) {
	fmt.Println("Knowledge base:")
	for _, q := range samples.KnowledgeBase {
		fmt.Printf("  - %s\n", q)
	}
	fmt.Println()
	fmt.Println("Web search:")
	for _, q := range samples.WebSearch {
		fmt.Printf("  - %s\n", q)
	}
	fmt.Println()
	fmt.Println("Computational:")
	for _, q := range samples.Computational {
		fmt.Printf("  - %s\n", q)
	}
}
