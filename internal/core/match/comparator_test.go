package match

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// fakeOracle returns scripted verdicts and counts invocations.
type fakeOracle struct {
	calls   atomic.Int64
	result  Result
	err     error
	failFor int // fail this many calls before succeeding
}

func (f *fakeOracle) CompareItems(ctx context.Context, extracted, expected, usualGroceries string) (Result, error) {
	n := f.calls.Add(1)
	if f.err != nil && (f.failFor == 0 || n <= int64(f.failFor)) {
		return Result{}, f.err
	}
	return f.result, nil
}

func newTestComparator(oracle Oracle) *Comparator {
	return NewComparator(oracle, slog.Default())
}

func TestCompareExactMatchSkipsOracle(t *testing.T) {
	oracle := &fakeOracle{result: Result{IsMatch: false}}
	c := newTestComparator(oracle)

	got, err := c.Compare(context.Background(), "The Milk", "milk!", "")
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if !got.IsMatch || got.Confidence != 1.0 {
		t.Fatalf("expected exact match with confidence 1.0, got %+v", got)
	}
	if got.Reasoning != "Exact match after sanitization" {
		t.Fatalf("unexpected reasoning: %q", got.Reasoning)
	}
	if oracle.calls.Load() != 0 {
		t.Fatalf("exact match must not consume oracle quota, got %d calls", oracle.calls.Load())
	}
}

func TestCompareIdenticalInputNeverCallsOracle(t *testing.T) {
	oracle := &fakeOracle{}
	c := newTestComparator(oracle)

	for _, x := range []string{"milk", "Красные яблоки", "2% greek yogurt"} {
		got, err := c.Compare(context.Background(), x, x, "")
		if err != nil {
			t.Fatalf("Compare(%q,%q) failed: %v", x, x, err)
		}
		if !got.IsMatch || got.Confidence != 1.0 {
			t.Fatalf("Compare(%q,%q) = %+v, want exact match", x, x, got)
		}
	}
	if oracle.calls.Load() != 0 {
		t.Fatalf("expected 0 oracle calls, got %d", oracle.calls.Load())
	}
}

func TestCompareCommutativitySharesCacheEntry(t *testing.T) {
	oracle := &fakeOracle{result: Result{IsMatch: true, Confidence: 0.85, Reasoning: "same sauce"}}
	c := newTestComparator(oracle)

	first, err := c.Compare(context.Background(), "pasta sauce", "tomato sauce", "")
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	second, err := c.Compare(context.Background(), "tomato sauce", "pasta sauce", "")
	if err != nil {
		t.Fatalf("reversed Compare failed: %v", err)
	}

	if first != second {
		t.Fatalf("compare(a,b) and compare(b,a) differ: %+v vs %+v", first, second)
	}
	if oracle.calls.Load() != 1 {
		t.Fatalf("reversed pair should hit the cache, got %d oracle calls", oracle.calls.Load())
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected cache stats: %+v", stats)
	}
}

func TestCompareCacheExpiration(t *testing.T) {
	oracle := &fakeOracle{result: Result{IsMatch: true, Confidence: 0.9, Reasoning: "ok"}}
	c := newTestComparator(oracle)

	if _, err := c.Compare(context.Background(), "scallions", "green onions", ""); err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	// shrink the window so the cached entry is already stale
	if err := c.SetCacheTimeout(0); err != nil {
		t.Fatalf("SetCacheTimeout failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	if _, err := c.Compare(context.Background(), "scallions", "green onions", ""); err != nil {
		t.Fatalf("Compare after expiry failed: %v", err)
	}
	if oracle.calls.Load() != 2 {
		t.Fatalf("expired entry should fall through to the oracle, got %d calls", oracle.calls.Load())
	}
	if stats := c.Stats(); stats.Expirations != 1 {
		t.Fatalf("expected 1 expiration, got %+v", stats)
	}
}

func TestCompareRetriesThenSucceeds(t *testing.T) {
	oracle := &fakeOracle{
		err:     errors.New("temporary API hiccup"),
		failFor: 2,
		result:  Result{IsMatch: true, Confidence: 0.82, Reasoning: "recovered"},
	}
	c := newTestComparator(oracle)
	c.baseBackoff = time.Millisecond

	got, err := c.Compare(context.Background(), "kefir", "buttermilk", "")
	if err != nil {
		t.Fatalf("Compare should succeed on the third attempt: %v", err)
	}
	if !got.IsMatch || got.Confidence != 0.82 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if oracle.calls.Load() != 3 {
		t.Fatalf("expected 3 oracle attempts, got %d", oracle.calls.Load())
	}
}

func TestCompareRetriesExhausted(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("API key invalid")}
	c := newTestComparator(oracle)
	c.baseBackoff = time.Millisecond

	_, err := c.Compare(context.Background(), "kefir", "buttermilk", "")
	if err == nil {
		t.Fatal("expected hard failure after exhausting retries")
	}
	if oracle.calls.Load() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", oracle.calls.Load())
	}
}

func TestClearCacheResets(t *testing.T) {
	oracle := &fakeOracle{result: Result{IsMatch: true, Confidence: 0.9}}
	c := newTestComparator(oracle)

	if _, err := c.Compare(context.Background(), "soda", "pop", ""); err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	c.ClearCache()

	stats := c.Stats()
	if stats.Entries != 0 || stats.Hits != 0 || stats.Misses != 0 || stats.Expirations != 0 {
		t.Fatalf("ClearCache should reset everything, got %+v", stats)
	}

	if _, err := c.Compare(context.Background(), "soda", "pop", ""); err != nil {
		t.Fatalf("Compare after clear failed: %v", err)
	}
	if oracle.calls.Load() != 2 {
		t.Fatalf("cleared cache should miss, got %d oracle calls", oracle.calls.Load())
	}
}

func TestMeetsThresholdBothGates(t *testing.T) {
	c := newTestComparator(&fakeOracle{})

	if !c.MeetsThreshold(Result{IsMatch: true, Confidence: 0.8}) {
		t.Fatal("0.8 at default threshold should pass")
	}
	if c.MeetsThreshold(Result{IsMatch: true, Confidence: 0.79}) {
		t.Fatal("below-threshold confidence should fail")
	}
	if c.MeetsThreshold(Result{IsMatch: false, Confidence: 0.99}) {
		t.Fatal("isMatch=false must fail regardless of confidence")
	}

	if err := c.SetConfidenceThreshold(0.9); err != nil {
		t.Fatalf("SetConfidenceThreshold failed: %v", err)
	}
	if c.MeetsThreshold(Result{IsMatch: true, Confidence: 0.85}) {
		t.Fatal("0.85 should fail after raising threshold to 0.9")
	}
}

func TestSetterRangeChecks(t *testing.T) {
	c := newTestComparator(&fakeOracle{})

	if err := c.SetConfidenceThreshold(-0.1); err == nil {
		t.Fatal("negative threshold must error")
	}
	if err := c.SetConfidenceThreshold(1.1); err == nil {
		t.Fatal("threshold above 1 must error")
	}
	if c.ConfidenceThreshold() != DefaultConfidenceThreshold {
		t.Fatal("failed setter must not change the threshold")
	}

	if err := c.SetCacheTimeout(-time.Second); err == nil {
		t.Fatal("negative cache timeout must error")
	}
	if c.CacheTimeout() != DefaultCacheTimeout {
		t.Fatal("failed setter must not change the timeout")
	}
}

func TestCompareOracleExhaustionFailsHard(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("API connection refused")}
	c := newTestComparator(oracle)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// cancel during the first backoff wait so the test stays fast; the
		// retry loop itself is exercised up to the first delay
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c.Compare(ctx, "kefir", "buttermilk", "")
	if err == nil {
		t.Fatal("expected error from failing oracle")
	}
	if oracle.calls.Load() < 1 {
		t.Fatal("oracle should have been attempted")
	}
}
