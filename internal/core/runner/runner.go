// Package runner executes the batch evaluation loop: extract actions from
// each corpus utterance, reconcile them into a list, score the result
// against the labeled expectation, and aggregate the outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/CartMateCo/grocery-service/internal/core/ai"
	"github.com/CartMateCo/grocery-service/internal/core/corpus"
	"github.com/CartMateCo/grocery-service/internal/core/evaluation"
	"github.com/CartMateCo/grocery-service/internal/core/grocery"
	"github.com/CartMateCo/grocery-service/internal/core/match"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("batch-runner")

// DefaultCaseTimeout bounds a single test case's extraction call.
const DefaultCaseTimeout = 30 * time.Second

// ErrorClass is a best-effort bucket for a failed test case, derived from
// the error message. Classification is a string-matching heuristic for
// aggregate reporting, not an exhaustive taxonomy.
type ErrorClass string

const (
	ErrorTimeout ErrorClass = "timeout"
	ErrorAPI     ErrorClass = "api"
	ErrorParse   ErrorClass = "parse"
	ErrorOther   ErrorClass = "other"
)

// ClassifyError buckets an error by message content. Timeout wins over the
// other buckets because a timed-out API call is still a timeout.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorOther
	}
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timed out"):
		return ErrorTimeout
	case strings.Contains(msg, "API") || strings.Contains(msg, "key"):
		return ErrorAPI
	case strings.Contains(msg, "parse") || strings.Contains(msg, "JSON"):
		return ErrorParse
	default:
		return ErrorOther
	}
}

// Options configures one batch run.
type Options struct {
	// UsualGroceries is the newline-delimited oracle context.
	UsualGroceries string
	// EnableSemanticComparison toggles the evaluation oracle pass.
	EnableSemanticComparison bool
	// CaseTimeout bounds each extraction call; zero means DefaultCaseTimeout.
	CaseTimeout time.Duration
	// PrintReports renders the per-case evaluation report to the output
	// writer as cases complete.
	PrintReports bool
}

// CaseOutcome is the per-test-case record kept in the summary.
type CaseOutcome struct {
	Utterance string
	Score     float64
	Err       error
	ErrClass  ErrorClass
}

// Summary aggregates a whole run.
type Summary struct {
	Total     int
	Evaluated int
	Perfect   int
	MeanScore float64
	Failures  map[ErrorClass]int
	Outcomes  []CaseOutcome
	Cache     match.CacheStats
}

// Runner drives extraction, reconciliation and evaluation over a corpus.
type Runner struct {
	extractor ai.Extractor
	evaluator *evaluation.Evaluator
	logger    *slog.Logger
	out       io.Writer
}

func New(extractor ai.Extractor, evaluator *evaluation.Evaluator, logger *slog.Logger, out io.Writer) *Runner {
	return &Runner{
		extractor: extractor,
		evaluator: evaluator,
		logger:    logger.With("component", "batch-runner"),
		out:       out,
	}
}

// Run evaluates every test case. Individual case failures are classified
// and tallied, never fatal; Run itself only errors when the surrounding
// context is canceled.
func (r *Runner) Run(ctx context.Context, cases []corpus.TestCase, opts Options) (Summary, error) {
	ctx, span := tracer.Start(ctx, "runner.Run")
	defer span.End()

	caseTimeout := opts.CaseTimeout
	if caseTimeout <= 0 {
		caseTimeout = DefaultCaseTimeout
	}

	summary := Summary{
		Total:    len(cases),
		Failures: make(map[ErrorClass]int),
	}
	var scoreSum float64

	reconciler := grocery.NewReconciler(r.logger)

	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome := r.runCase(ctx, reconciler, tc, caseTimeout, opts)
		summary.Outcomes = append(summary.Outcomes, outcome)

		if outcome.Err != nil {
			summary.Failures[outcome.ErrClass]++
			r.logger.Warn("Test case failed",
				"case", i+1,
				"utterance", tc.Utterance,
				"class", string(outcome.ErrClass),
				"error", outcome.Err)
			continue
		}

		summary.Evaluated++
		scoreSum += outcome.Score
		if outcome.Score == 1.0 {
			summary.Perfect++
		}
	}

	if summary.Evaluated > 0 {
		summary.MeanScore = scoreSum / float64(summary.Evaluated)
	}
	summary.Cache = r.evaluator.Comparator().Stats()

	return summary, nil
}

func (r *Runner) runCase(ctx context.Context, reconciler *grocery.Reconciler, tc corpus.TestCase, timeout time.Duration, opts Options) CaseOutcome {
	outcome := CaseOutcome{Utterance: tc.Utterance}

	extractCtx, cancel := context.WithTimeout(ctx, timeout)
	records, err := r.extractor.ExtractActions(extractCtx, tc.Utterance, opts.UsualGroceries)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("extraction timed out after %s: %w", timeout, err)
		}
		outcome.Err = err
		outcome.ErrClass = ClassifyError(err)
		return outcome
	}

	actual := reconciler.ApplyActions(ctx, nil, records)

	evalOpts := evaluation.Options{
		EnableSemanticComparison: opts.EnableSemanticComparison,
		UsualGroceries:           opts.UsualGroceries,
	}
	result, err := r.evaluator.Evaluate(ctx, actual, tc.Expected, evalOpts)
	if err != nil {
		outcome.Err = err
		outcome.ErrClass = ClassifyError(err)
		return outcome
	}

	outcome.Score = result.Score
	if opts.PrintReports && r.out != nil {
		fmt.Fprintf(r.out, "--- %s\n%s\n", tc.Utterance, evaluation.FormatReport(result, tc.Expected, actual))
	}
	return outcome
}
