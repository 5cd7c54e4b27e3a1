package evaluation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CartMateCo/grocery-service/internal/core/grocery"
	"github.com/CartMateCo/grocery-service/internal/core/match"
)

type stubOracle struct {
	calls atomic.Int64
	// pairs maps "extracted|expected" to a canned verdict.
	pairs map[string]match.Result
	err   error
}

func (s *stubOracle) CompareItems(_ context.Context, extracted, expected, _ string) (match.Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return match.Result{}, s.err
	}
	if r, ok := s.pairs[extracted+"|"+expected]; ok {
		return r, nil
	}
	return match.Result{IsMatch: false, Confidence: 0.1, Reasoning: "unrelated items"}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEvaluator(oracle match.Oracle) *Evaluator {
	return NewEvaluator(match.NewComparator(oracle, testLogger()), testLogger())
}

func items(specs ...grocery.GroceryItem) []grocery.GroceryItem {
	return specs
}

func item(name string, qty float64) grocery.GroceryItem {
	return grocery.GroceryItem{Name: name, Quantity: qty}
}

func TestEvaluatePerfectMatch(t *testing.T) {
	ev := newTestEvaluator(&stubOracle{})

	res, err := ev.Evaluate(context.Background(),
		items(item("apples", 3)),
		items(item("apples", 3)),
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if res.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", res.Score)
	}
	if res.MatchScore != 1.0 {
		t.Errorf("match score = %v, want 1.0", res.MatchScore)
	}
	if len(res.CorrectItems) != 1 || res.CorrectItems[0] != "apples" {
		t.Errorf("correct items = %v", res.CorrectItems)
	}
}

func TestEvaluateCaseInsensitiveExact(t *testing.T) {
	oracle := &stubOracle{}
	ev := newTestEvaluator(oracle)

	res, err := ev.Evaluate(context.Background(),
		items(item("Apples", 3)),
		items(item("apples", 3)),
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if res.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", res.Score)
	}
	if got := oracle.calls.Load(); got != 0 {
		t.Errorf("oracle called %d times for an exact match", got)
	}
}

func TestEvaluateSemanticMatch(t *testing.T) {
	oracle := &stubOracle{pairs: map[string]match.Result{
		"spaghetti|pasta": {IsMatch: true, Confidence: 0.95, Reasoning: "spaghetti is a kind of pasta"},
	}}
	ev := newTestEvaluator(oracle)

	res, err := ev.Evaluate(context.Background(),
		items(item("spaghetti", 1), item("tomato sauce", 2)),
		items(item("pasta", 1), item("tomato sauce", 2)),
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(res.CorrectItems) != 2 {
		t.Fatalf("correct items = %v, want 2 entries", res.CorrectItems)
	}
	m, ok := res.SemanticMatches["pasta"]
	if !ok {
		t.Fatal("no semantic match recorded for pasta")
	}
	if m.ActualName != "spaghetti" || m.Confidence != 0.95 {
		t.Errorf("semantic match = %+v", m)
	}
	if res.Score < 0.9 {
		t.Errorf("score = %v, want >= 0.9", res.Score)
	}
}

func TestEvaluateSemanticBelowThreshold(t *testing.T) {
	oracle := &stubOracle{pairs: map[string]match.Result{
		"spaghetti|pasta": {IsMatch: true, Confidence: 0.6, Reasoning: "maybe"},
	}}
	ev := newTestEvaluator(oracle)

	res, err := ev.Evaluate(context.Background(),
		items(item("spaghetti", 1)),
		items(item("pasta", 1)),
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// 0.6 is below the default 0.8 threshold, so pasta stays missing and
	// spaghetti stays extra.
	if len(res.MissingItems) != 1 || res.MissingItems[0] != "pasta" {
		t.Errorf("missing = %v, want [pasta]", res.MissingItems)
	}
	if len(res.ExtraItems) != 1 || res.ExtraItems[0] != "spaghetti" {
		t.Errorf("extra = %v, want [spaghetti]", res.ExtraItems)
	}
	if len(res.SemanticMatches) != 0 {
		t.Errorf("semantic matches = %v, want none", res.SemanticMatches)
	}
}

func TestEvaluateHighestConfidenceWins(t *testing.T) {
	oracle := &stubOracle{pairs: map[string]match.Result{
		"penne|pasta":     {IsMatch: true, Confidence: 0.85, Reasoning: "penne is pasta"},
		"spaghetti|pasta": {IsMatch: true, Confidence: 0.97, Reasoning: "spaghetti is pasta"},
	}}
	ev := newTestEvaluator(oracle)

	res, err := ev.Evaluate(context.Background(),
		items(item("penne", 1), item("spaghetti", 1)),
		items(item("pasta", 1)),
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	m := res.SemanticMatches["pasta"]
	if m.ActualName != "spaghetti" {
		t.Errorf("matched %q, want spaghetti (higher confidence)", m.ActualName)
	}
	if len(res.ExtraItems) != 1 || res.ExtraItems[0] != "penne" {
		t.Errorf("extra = %v, want [penne]", res.ExtraItems)
	}
}

func TestEvaluateClaimOnce(t *testing.T) {
	// Two expected items could both semantically match the single actual
	// item; only the first may claim it.
	oracle := &stubOracle{pairs: map[string]match.Result{
		"soda|cola":       {IsMatch: true, Confidence: 0.9, Reasoning: "soda covers cola"},
		"soda|soft drink": {IsMatch: true, Confidence: 0.9, Reasoning: "soda covers soft drinks"},
	}}
	ev := newTestEvaluator(oracle)

	res, err := ev.Evaluate(context.Background(),
		items(item("soda", 1)),
		items(item("cola", 1), item("soft drink", 1)),
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(res.CorrectItems) != 1 {
		t.Errorf("correct = %v, want exactly one claim", res.CorrectItems)
	}
	if len(res.MissingItems) != 1 {
		t.Errorf("missing = %v, want exactly one", res.MissingItems)
	}
}

func TestEvaluateQuantityMismatch(t *testing.T) {
	ev := newTestEvaluator(&stubOracle{})

	res, err := ev.Evaluate(context.Background(),
		items(item("milk", 2)),
		items(item("milk", 1)),
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(res.IncorrectItems) != 1 {
		t.Fatalf("incorrect = %v, want one entry", res.IncorrectItems)
	}
	m := res.IncorrectItems[0]
	if m.Name != "milk" || m.ExpectedQuantity != 1 || m.ActualQuantity != 2 {
		t.Errorf("mismatch = %+v", m)
	}
	if res.MatchScore != 0 {
		t.Errorf("match score = %v, want 0", res.MatchScore)
	}
	if res.Score != 0 {
		t.Errorf("score = %v, want 0 (0*0.7 - 0.15 clamped)", res.Score)
	}
}

func TestEvaluateInvalidSchema(t *testing.T) {
	ev := newTestEvaluator(&stubOracle{})

	res, err := ev.Evaluate(context.Background(),
		items(grocery.GroceryItem{Name: "", Quantity: 1}),
		items(item("milk", 1)),
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if res.ValidSchema {
		t.Error("ValidSchema = true for an item with no name")
	}
	if res.Score != 0 {
		t.Errorf("score = %v, want 0", res.Score)
	}
	if len(res.CorrectItems) != 0 || len(res.MissingItems) != 0 {
		t.Errorf("invalid schema should produce a minimal result, got %+v", res)
	}
}

func TestEvaluateExactMatchesOnlySkipsOracle(t *testing.T) {
	oracle := &stubOracle{pairs: map[string]match.Result{
		"spaghetti|pasta": {IsMatch: true, Confidence: 0.99, Reasoning: "pasta"},
	}}
	ev := newTestEvaluator(oracle)

	opts := DefaultOptions()
	opts.ExactMatchesOnly = true
	res, err := ev.Evaluate(context.Background(),
		items(item("spaghetti", 1)),
		items(item("pasta", 1)),
		opts)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got := oracle.calls.Load(); got != 0 {
		t.Errorf("oracle called %d times with ExactMatchesOnly", got)
	}
	if len(res.MissingItems) != 1 {
		t.Errorf("missing = %v, want [pasta]", res.MissingItems)
	}
}

func TestEvaluateOracleFailureAborts(t *testing.T) {
	oracle := &stubOracle{err: errors.New("API rate limit")}
	ev := newTestEvaluator(oracle)
	if err := ev.Comparator().SetRetryBackoff(time.Millisecond); err != nil {
		t.Fatalf("SetRetryBackoff: %v", err)
	}

	_, err := ev.Evaluate(context.Background(),
		items(item("spaghetti", 1)),
		items(item("pasta", 1)),
		DefaultOptions())
	if err == nil {
		t.Fatal("expected an error when every oracle attempt fails")
	}
	if !strings.Contains(err.Error(), "API rate limit") {
		t.Errorf("error = %v, want the oracle failure surfaced", err)
	}
}

func TestEvaluateExtraPenaltyMonotonic(t *testing.T) {
	ev := newTestEvaluator(&stubOracle{})

	expected := items(item("milk", 1), item("eggs", 12))
	base := items(item("milk", 1), item("eggs", 12))

	prev := 2.0
	for extras := 0; extras <= 3; extras++ {
		actual := append([]grocery.GroceryItem{}, base...)
		for i := 0; i < extras; i++ {
			actual = append(actual, item("extra-"+strings.Repeat("x", i+1), 1))
		}

		opts := DefaultOptions()
		opts.ExactMatchesOnly = true
		res, err := ev.Evaluate(context.Background(), actual, expected, opts)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}

		if res.Score > prev {
			t.Errorf("score rose from %v to %v when adding extra item %d", prev, res.Score, extras)
		}
		if res.Score < 0 || res.Score > 1 {
			t.Errorf("score %v out of [0,1]", res.Score)
		}
		prev = res.Score
	}
}

func TestEvaluateScoreBounds(t *testing.T) {
	ev := newTestEvaluator(&stubOracle{})

	// Everything wrong: one mismatched quantity, several extras, several
	// missing. The score must clamp at 0, never go negative.
	res, err := ev.Evaluate(context.Background(),
		items(item("milk", 9), item("a", 1), item("b", 1), item("c", 1)),
		items(item("milk", 1), item("eggs", 1), item("bread", 1)),
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Score != 0 {
		t.Errorf("score = %v, want clamped 0", res.Score)
	}
}

func TestEvaluateEmptyExpected(t *testing.T) {
	ev := newTestEvaluator(&stubOracle{})

	res, err := ev.Evaluate(context.Background(),
		items(item("milk", 1)),
		nil,
		DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if res.MatchScore != 0 {
		t.Errorf("match score = %v, want 0 with no expected items", res.MatchScore)
	}
	if len(res.ExtraItems) != 1 {
		t.Errorf("extra = %v, want [milk]", res.ExtraItems)
	}
}

func TestEvaluateActionAccuracy(t *testing.T) {
	ev := newTestEvaluator(&stubOracle{})

	actual := items(
		grocery.GroceryItem{Name: "milk", Quantity: 1, Action: grocery.ActionAdd},
		grocery.GroceryItem{Name: "eggs", Quantity: 5, Action: grocery.ActionRemove},
		grocery.GroceryItem{Name: "bread", Quantity: 2, Action: grocery.ActionAdd},
	)
	expected := items(
		grocery.GroceryItem{Name: "milk", Quantity: 1}, // empty action defaults to add
		grocery.GroceryItem{Name: "eggs", Quantity: 0, Action: grocery.ActionRemove},
		grocery.GroceryItem{Name: "bread", Quantity: 2, Action: grocery.ActionModify},
	)

	res, err := ev.Evaluate(context.Background(), actual, expected, DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if got := res.Actions.Accuracy[grocery.ActionAdd]; got != 100 {
		t.Errorf("add accuracy = %v, want 100", got)
	}
	// Remove ignores quantity entirely.
	if got := res.Actions.Accuracy[grocery.ActionRemove]; got != 100 {
		t.Errorf("remove accuracy = %v, want 100", got)
	}
	if got := res.Actions.Accuracy[grocery.ActionModify]; got != 0 {
		t.Errorf("modify accuracy = %v, want 0", got)
	}
	if len(res.Actions.Errors) != 1 || !strings.Contains(res.Actions.Errors[0], "bread") {
		t.Errorf("action errors = %v, want one wrong-action entry for bread", res.Actions.Errors)
	}
}

func TestEvaluateActionAccuracyNoExpected(t *testing.T) {
	ev := newTestEvaluator(&stubOracle{})

	res, err := ev.Evaluate(context.Background(), nil, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, action := range []string{grocery.ActionAdd, grocery.ActionRemove, grocery.ActionModify} {
		if got := res.Actions.Accuracy[action]; got != 100 {
			t.Errorf("%s accuracy = %v, want 100 with nothing expected", action, got)
		}
	}
}
