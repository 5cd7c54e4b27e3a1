package evaluation

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/CartMateCo/grocery-service/internal/core/grocery"
	"github.com/CartMateCo/grocery-service/internal/core/match"
	"github.com/CartMateCo/grocery-service/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("evaluation-engine")

// Scoring weights. Penalties and the semantic bonus are capped so the score
// stays monotonic and bounded no matter how adversarial the input is.
const (
	matchWeight      = 0.7
	penaltyCap       = 0.15
	semanticBonusCap = 0.10
)

// Options controls a single evaluation run.
type Options struct {
	// EnableSemanticComparison turns the oracle-backed second pass on.
	EnableSemanticComparison bool
	// ExactMatchesOnly skips the semantic pass even when it is enabled.
	ExactMatchesOnly bool
	// UsualGroceries is newline-delimited context passed to the oracle.
	UsualGroceries string
}

// DefaultOptions enables semantic comparison, matching production behavior.
func DefaultOptions() Options {
	return Options{EnableSemanticComparison: true}
}

// QuantityMismatch records an expected item found under the right (or
// semantically equivalent) name but with the wrong quantity.
type QuantityMismatch struct {
	Name             string  `json:"item"`
	ExpectedQuantity float64 `json:"expectedQuantity"`
	ActualQuantity   float64 `json:"actualQuantity"`
}

// SemanticMatch is the oracle verdict that paired an expected item with an
// actual one.
type SemanticMatch struct {
	ActualName string  `json:"actualItem"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// MatchKind tags how an expected item was resolved.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchSemantic MatchKind = "semantic"
	MatchNone     MatchKind = ""
)

// Resolution is one row of the expected-vs-actual pairing the evaluator
// decided on. The report formatter renders these verbatim so it can never
// disagree with the score.
type Resolution struct {
	Expected   grocery.GroceryItem
	Actual     *grocery.GroceryItem
	Kind       MatchKind
	QuantityOK bool
}

// Result aggregates everything one evaluation run decided.
type Result struct {
	ValidSchema     bool                     `json:"validSchema"`
	Score           float64                  `json:"score"`
	MatchScore      float64                  `json:"matchScore"`
	CorrectItems    []string                 `json:"correctItems"`
	IncorrectItems  []QuantityMismatch       `json:"incorrectItems"`
	MissingItems    []string                 `json:"missingItems"`
	ExtraItems      []string                 `json:"extraItems"`
	SemanticMatches map[string]SemanticMatch `json:"semanticMatches"`
	Actions         ActionResult             `json:"actions"`

	// Resolutions holds the per-expected-item pairing, in expected order.
	Resolutions []Resolution `json:"-"`
}

// Evaluator scores an actual extraction result against a hand-labeled
// expected list: exact pass first, then a confidence-gated semantic pass.
type Evaluator struct {
	comparator *match.Comparator
	logger     *slog.Logger
}

func NewEvaluator(comparator *match.Comparator, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		comparator: comparator,
		logger:     logger.With("component", "evaluator"),
	}
}

// Comparator exposes the underlying comparator (threshold tuning, cache
// stats) to callers like the batch runner.
func (e *Evaluator) Comparator() *match.Comparator {
	return e.comparator
}

// Evaluate classifies every expected item as correct, quantity-mismatched or
// missing, every unclaimed actual item as extra, evaluates actions, and
// aggregates the weighted score.
//
// A malformed actual list yields a minimal all-false result, not an error:
// broken extractor output is an expected outcome, not an exception. An
// oracle failure inside the semantic pass, by contrast, aborts the run with
// an error after the comparator's retries are exhausted.
func (e *Evaluator) Evaluate(ctx context.Context, actual, expected []grocery.GroceryItem, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "evaluation.Evaluate")
	defer span.End()

	result := Result{
		SemanticMatches: make(map[string]SemanticMatch),
	}

	if !grocery.ValidList(actual) {
		e.logger.Warn("Actual list failed schema validation", "items", len(actual))
		return result, nil
	}
	result.ValidSchema = true

	unmatchedActual := make([]grocery.GroceryItem, len(actual))
	copy(unmatchedActual, actual)

	resolutions := make([]Resolution, len(expected))
	var unresolved []int // indices into expected/resolutions

	// Exact pass: case-insensitive name equality.
	for i, exp := range expected {
		resolutions[i] = Resolution{Expected: exp, Kind: MatchNone}

		j := grocery.FindItem(unmatchedActual, exp.Name)
		if j < 0 {
			unresolved = append(unresolved, i)
			continue
		}

		act := unmatchedActual[j]
		resolutions[i].Actual = &act
		resolutions[i].Kind = MatchExact
		resolutions[i].QuantityOK = act.Quantity == exp.Quantity
		unmatchedActual = append(unmatchedActual[:j], unmatchedActual[j+1:]...)
	}

	// Semantic pass: sequential over expected items so earlier claims are
	// visible to later ones; concurrent across candidate actual items for
	// a single expected item, with selection strictly after the gather.
	if opts.EnableSemanticComparison && !opts.ExactMatchesOnly && len(unresolved) > 0 && len(unmatchedActual) > 0 {
		for _, i := range unresolved {
			if len(unmatchedActual) == 0 {
				break
			}

			winner, verdict, err := e.bestSemanticMatch(ctx, unmatchedActual, expected[i], opts.UsualGroceries)
			if err != nil {
				span.RecordError(err)
				return Result{SemanticMatches: make(map[string]SemanticMatch), ValidSchema: true}, err
			}
			if winner < 0 {
				continue
			}

			act := unmatchedActual[winner]
			resolutions[i].Actual = &act
			resolutions[i].Kind = MatchSemantic
			resolutions[i].QuantityOK = act.Quantity == expected[i].Quantity
			result.SemanticMatches[expected[i].Name] = SemanticMatch{
				ActualName: act.Name,
				Confidence: verdict.Confidence,
				Reasoning:  verdict.Reasoning,
			}
			unmatchedActual = append(unmatchedActual[:winner], unmatchedActual[winner+1:]...)
		}
	}

	for _, res := range resolutions {
		switch {
		case res.Actual == nil:
			result.MissingItems = append(result.MissingItems, res.Expected.Name)
		case res.QuantityOK:
			result.CorrectItems = append(result.CorrectItems, res.Expected.Name)
		default:
			result.IncorrectItems = append(result.IncorrectItems, QuantityMismatch{
				Name:             res.Expected.Name,
				ExpectedQuantity: res.Expected.Quantity,
				ActualQuantity:   res.Actual.Quantity,
			})
		}
	}
	for _, act := range unmatchedActual {
		result.ExtraItems = append(result.ExtraItems, act.Name)
	}

	result.Resolutions = resolutions
	result.Actions = evaluateActions(resolutions)
	e.scoreResult(&result, len(expected))

	telemetry.RecordEvaluation(ctx, result.Score)
	e.logger.Info("Evaluation completed",
		"score", result.Score,
		"match_score", result.MatchScore,
		"correct", len(result.CorrectItems),
		"incorrect", len(result.IncorrectItems),
		"missing", len(result.MissingItems),
		"extra", len(result.ExtraItems),
		"semantic_matches", len(result.SemanticMatches))

	return result, nil
}

// bestSemanticMatch fires comparisons of one expected item against every
// remaining actual candidate concurrently, awaits them all, then picks the
// highest-confidence verdict that clears the threshold. Returns -1 when
// nothing qualifies.
func (e *Evaluator) bestSemanticMatch(ctx context.Context, candidates []grocery.GroceryItem, exp grocery.GroceryItem, usualGroceries string) (int, match.Result, error) {
	verdicts := make([]match.Result, len(candidates))
	qualified := make([]bool, len(candidates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for j, cand := range candidates {
		g.Go(func() error {
			verdict, err := e.comparator.Compare(gctx, cand.Name, exp.Name, usualGroceries)
			if err != nil {
				return err
			}
			mu.Lock()
			verdicts[j] = verdict
			qualified[j] = e.comparator.MeetsThreshold(verdict)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return -1, match.Result{}, err
	}

	// Selection happens only after every comparison resolved; claims are
	// sequential, post-gather.
	winner := -1
	for j := range candidates {
		if !qualified[j] {
			continue
		}
		if winner < 0 || verdicts[j].Confidence > verdicts[winner].Confidence {
			winner = j
		}
	}
	if winner < 0 {
		return -1, match.Result{}, nil
	}
	return winner, verdicts[winner], nil
}

func (e *Evaluator) scoreResult(result *Result, expectedCount int) {
	if expectedCount > 0 {
		result.MatchScore = float64(len(result.CorrectItems)) / float64(expectedCount)
	}

	// Perfect-match short circuit.
	if result.MatchScore == 1 && len(result.ExtraItems) == 0 && len(result.IncorrectItems) == 0 {
		result.Score = 1.0
		return
	}

	denominator := float64(expectedCount)
	if denominator < 1 {
		denominator = 1
	}
	extraPenalty := min(float64(len(result.ExtraItems))/denominator*penaltyCap, penaltyCap)
	incorrectPenalty := min(float64(len(result.IncorrectItems))/denominator*penaltyCap, penaltyCap)

	score := result.MatchScore*matchWeight - extraPenalty - incorrectPenalty

	if len(result.SemanticMatches) > 0 {
		correct := float64(len(result.CorrectItems))
		if correct < 1 {
			correct = 1
		}
		score += min(float64(len(result.SemanticMatches))/correct*semanticBonusCap, semanticBonusCap)
	}

	result.Score = min(max(score, 0), 1)
}

// SortedSemanticMatches returns the semantic match keys in a stable order
// for deterministic rendering.
func (r Result) SortedSemanticMatches() []string {
	keys := make([]string, 0, len(r.SemanticMatches))
	for k := range r.SemanticMatches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
