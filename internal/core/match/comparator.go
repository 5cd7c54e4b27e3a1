package match

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CartMateCo/grocery-service/pkg/telemetry"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("semantic-comparator")

const (
	// DefaultConfidenceThreshold gates whether an oracle verdict is strong
	// enough to count as a match downstream.
	DefaultConfidenceThreshold = 0.8

	// DefaultCacheTimeout is the lazy-expiry window for cached verdicts.
	DefaultCacheTimeout = 24 * time.Hour

	oracleMaxAttempts = 3
	oracleBaseBackoff = 1000 * time.Millisecond
)

// Result is a validated semantic comparison verdict. IsMatch and Confidence
// are independent gates: downstream code treats the pair as equivalent only
// when both the flag is set and the confidence clears the threshold.
type Result struct {
	IsMatch    bool    `json:"isMatch"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Oracle answers "are these two item names the same product?". It receives
// the original, non-sanitized names plus optional usual-groceries context.
// Implementations live in internal/core/ai.
type Oracle interface {
	CompareItems(ctx context.Context, extracted, expected, usualGroceries string) (Result, error)
}

// CacheStats is a point-in-time snapshot of the comparator's cache counters.
type CacheStats struct {
	Entries     int   `json:"entries"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Expirations int64 `json:"expirations"`
}

type cacheEntry struct {
	result    Result
	timestamp time.Time
}

// Comparator is the item matcher: sanitize-then-exact-check first, then a
// TTL-cached oracle call. Each Comparator owns its cache map, timeout and
// confidence threshold as instance state so concurrent test runs cannot leak
// into each other; the mutex makes the shared cache safe under Go's
// multi-threaded runtime.
type Comparator struct {
	oracle      Oracle
	logger      *slog.Logger
	baseBackoff time.Duration

	mu          sync.Mutex
	cache       map[string]cacheEntry
	timeout     time.Duration
	threshold   float64
	hits        int64
	misses      int64
	expirations int64
}

// NewComparator builds a Comparator with the default 24h cache timeout and
// 0.8 confidence threshold.
func NewComparator(oracle Oracle, logger *slog.Logger) *Comparator {
	return &Comparator{
		oracle:      oracle,
		logger:      logger.With("component", "semantic-comparator"),
		baseBackoff: oracleBaseBackoff,
		cache:       make(map[string]cacheEntry),
		timeout:     DefaultCacheTimeout,
		threshold:   DefaultConfidenceThreshold,
	}
}

// Compare decides whether two item names refer to the same product.
//
// Byte-identical sanitized forms short-circuit to a confidence-1.0 match
// without touching the oracle; exact matches must never consume oracle
// quota. Everything else goes through the pair-keyed cache and, on a miss or
// expired entry, the oracle with up to three attempts and exponential
// backoff. Oracle exhaustion is returned as a hard error.
func (c *Comparator) Compare(ctx context.Context, a, b, usualGroceries string) (Result, error) {
	ctx, span := tracer.Start(ctx, "match.Compare")
	defer span.End()

	sa := Sanitize(a)
	sb := Sanitize(b)

	if sa == sb {
		return Result{
			IsMatch:    true,
			Confidence: 1.0,
			Reasoning:  "Exact match after sanitization",
		}, nil
	}

	key := PairKey(sa, sb)
	if cached, ok := c.lookup(ctx, key); ok {
		return cached, nil
	}

	result, err := c.compareWithRetry(ctx, a, b, usualGroceries)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	c.store(key, result)
	return result, nil
}

// MeetsThreshold reports whether a verdict clears both gates: the oracle's
// own match flag and the configured confidence threshold.
func (c *Comparator) MeetsThreshold(r Result) bool {
	c.mu.Lock()
	threshold := c.threshold
	c.mu.Unlock()
	return r.IsMatch && r.Confidence >= threshold
}

// ConfidenceThreshold returns the current threshold.
func (c *Comparator) ConfidenceThreshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// SetConfidenceThreshold replaces the threshold. Values outside [0,1] are an
// error, never silently clamped.
func (c *Comparator) SetConfidenceThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("confidence threshold must be within [0,1], got %v", threshold)
	}
	c.mu.Lock()
	c.threshold = threshold
	c.mu.Unlock()
	return nil
}

// SetRetryBackoff replaces the base delay between oracle retry attempts.
// The delay still doubles per attempt.
func (c *Comparator) SetRetryBackoff(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("retry backoff must be positive, got %v", d)
	}
	c.mu.Lock()
	c.baseBackoff = d
	c.mu.Unlock()
	return nil
}

// CacheTimeout returns the current lazy-expiry window.
func (c *Comparator) CacheTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// SetCacheTimeout replaces the expiry window. Negative timeouts are an
// error, never silently clamped.
func (c *Comparator) SetCacheTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fmt.Errorf("cache timeout must not be negative, got %v", timeout)
	}
	c.mu.Lock()
	c.timeout = timeout
	c.mu.Unlock()
	return nil
}

// ClearCache drops every cached verdict. Counters are reset too so tests can
// assert on a clean slate.
func (c *Comparator) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
	c.hits = 0
	c.misses = 0
	c.expirations = 0
}

// Stats returns a snapshot of the cache counters.
func (c *Comparator) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:     len(c.cache),
		Hits:        c.hits,
		Misses:      c.misses,
		Expirations: c.expirations,
	}
}

func (c *Comparator) lookup(ctx context.Context, key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		c.misses++
		telemetry.AddCacheMiss(ctx)
		return Result{}, false
	}

	if time.Since(entry.timestamp) > c.timeout {
		delete(c.cache, key)
		c.expirations++
		telemetry.AddCacheExpiration(ctx)
		return Result{}, false
	}

	c.hits++
	telemetry.AddCacheHit(ctx)
	return entry.result, true
}

func (c *Comparator) store(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{result: result, timestamp: time.Now()}
}

func (c *Comparator) compareWithRetry(ctx context.Context, a, b, usualGroceries string) (Result, error) {
	var lastErr error
	c.mu.Lock()
	delay := c.baseBackoff
	c.mu.Unlock()

	for attempt := 1; attempt <= oracleMaxAttempts; attempt++ {
		result, err := c.oracle.CompareItems(ctx, a, b, usualGroceries)
		if err == nil {
			return result, nil
		}

		lastErr = err
		c.logger.Warn("Oracle comparison attempt failed",
			"attempt", attempt,
			"max_attempts", oracleMaxAttempts,
			"item_a", a,
			"item_b", b,
			"error", err)

		if attempt == oracleMaxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
		delay *= 2
	}

	return Result{}, fmt.Errorf("semantic comparison failed after %d attempts: %w", oracleMaxAttempts, lastErr)
}
