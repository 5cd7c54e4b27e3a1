// Command listeval runs the batch evaluation loop over a test corpus:
// every utterance is extracted, reconciled into a list and scored against
// its labeled expectation.
//
// Usage:
//
//	listeval [flags] <corpus.ndjson>
//
// Individual test-case failures are classified and tallied in the summary;
// only top-level errors (bad config, unreadable corpus) exit non-zero.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/CartMateCo/grocery-service/config"
	"github.com/CartMateCo/grocery-service/internal/core/ai"
	"github.com/CartMateCo/grocery-service/internal/core/corpus"
	"github.com/CartMateCo/grocery-service/internal/core/evaluation"
	"github.com/CartMateCo/grocery-service/internal/core/match"
	"github.com/CartMateCo/grocery-service/internal/core/runner"
	"github.com/CartMateCo/grocery-service/pkg/logger"
)

func main() {
	var (
		usualGroceriesPath string
		noUsualGroceries   bool
		exactOnly          bool
		quiet              bool
	)

	flag.StringVar(&usualGroceriesPath, "usual-groceries-path", "", "path to a custom usual-groceries file, one item per line")
	flag.StringVar(&usualGroceriesPath, "u", "", "shorthand for --usual-groceries-path")
	flag.BoolVar(&noUsualGroceries, "no-usual-groceries", false, "run with no usual-groceries context at all")
	flag.BoolVar(&exactOnly, "exact-only", false, "skip the semantic comparison pass")
	flag.BoolVar(&quiet, "quiet", false, "suppress per-case reports, print only the summary")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <corpus.ndjson>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.NewLogger(&cfg)
	slog.SetDefault(log)

	usualGroceries, err := resolveUsualGroceries(usualGroceriesPath, noUsualGroceries)
	if err != nil {
		slog.Error("failed to load usual groceries", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cases, err := corpus.LoadFile(flag.Arg(0))
	if err != nil {
		slog.Error("failed to load corpus", slog.String("error", err.Error()))
		os.Exit(1)
	}

	semanticCfg := cfg.GetSemanticConfig()
	openAICfg := cfg.GetOpenAIConfig()

	oracle := ai.NewOpenAIOracle(openAICfg, log, cfg.PromptsDir)
	comparator := match.NewComparator(oracle, log)
	if err := comparator.SetConfidenceThreshold(semanticCfg.ConfidenceThreshold); err != nil {
		slog.Error("invalid confidence threshold", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := comparator.SetCacheTimeout(semanticCfg.CacheTimeout); err != nil {
		slog.Error("invalid cache timeout", slog.String("error", err.Error()))
		os.Exit(1)
	}

	evaluator := evaluation.NewEvaluator(comparator, log)
	extractor := ai.NewOpenAIExtractor(openAICfg, log, cfg.PromptsDir)

	r := runner.New(extractor, evaluator, log, os.Stdout)
	summary, err := r.Run(context.Background(), cases, runner.Options{
		UsualGroceries:           usualGroceries,
		EnableSemanticComparison: semanticCfg.Enabled && !exactOnly,
		CaseTimeout:              semanticCfg.EvaluationTimeout,
		PrintReports:             !quiet,
	})
	if err != nil {
		slog.Error("batch run aborted", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Print(runner.FormatSummary(summary))
}

func resolveUsualGroceries(path string, disabled bool) (string, error) {
	switch {
	case disabled:
		return "", nil
	case path != "":
		return corpus.LoadUsualGroceries(path)
	default:
		return corpus.DefaultUsualGroceries(), nil
	}
}
