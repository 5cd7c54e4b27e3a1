package telemetry

import (
	"context"
	"log/slog"

	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Business metrics for application-level monitoring
var (
	// Grocery list metrics
	ListOperations   api.Int64Counter
	ActionsApplied   api.Int64Counter
	UnknownActions   api.Int64Counter
	ListSessions     api.Int64UpDownCounter

	// Semantic comparison metrics
	CacheHits        api.Int64Counter
	CacheMisses      api.Int64Counter
	CacheExpirations api.Int64Counter
	OracleCalls      api.Int64Counter
	OracleFailures   api.Int64Counter

	// Evaluation metrics
	EvaluationRuns   api.Int64Counter
	EvaluationScores api.Float64Histogram

	// Error tracking
	ApplicationErrorsTotal api.Int64Counter
)

// InitBusinessMetrics initializes all business-level metrics
func InitBusinessMetrics(provider *metric.MeterProvider) error {
	meter := provider.Meter("business")

	var err error

	ListOperations, err = meter.Int64Counter("grocery.list.operations",
		api.WithDescription("Total list operations by type"))
	if err != nil {
		return err
	}

	ActionsApplied, err = meter.Int64Counter("grocery.actions.applied",
		api.WithDescription("Total action records applied by action type"))
	if err != nil {
		return err
	}

	UnknownActions, err = meter.Int64Counter("grocery.actions.unknown",
		api.WithDescription("Total action records skipped for unknown action strings"))
	if err != nil {
		return err
	}

	ListSessions, err = meter.Int64UpDownCounter("grocery.sessions.active",
		api.WithDescription("Number of live list sessions"))
	if err != nil {
		return err
	}

	CacheHits, err = meter.Int64Counter("semantic.cache.hits",
		api.WithDescription("Semantic comparison cache hits"))
	if err != nil {
		return err
	}

	CacheMisses, err = meter.Int64Counter("semantic.cache.misses",
		api.WithDescription("Semantic comparison cache misses"))
	if err != nil {
		return err
	}

	CacheExpirations, err = meter.Int64Counter("semantic.cache.expirations",
		api.WithDescription("Semantic comparison cache entries lazily expired on read"))
	if err != nil {
		return err
	}

	OracleCalls, err = meter.Int64Counter("semantic.oracle.calls",
		api.WithDescription("Total semantic oracle API calls"))
	if err != nil {
		return err
	}

	OracleFailures, err = meter.Int64Counter("semantic.oracle.failures",
		api.WithDescription("Semantic oracle calls that failed transport or validation"))
	if err != nil {
		return err
	}

	EvaluationRuns, err = meter.Int64Counter("evaluation.runs",
		api.WithDescription("Total evaluation engine invocations"))
	if err != nil {
		return err
	}

	EvaluationScores, err = meter.Float64Histogram("evaluation.score",
		api.WithDescription("Distribution of evaluation scores"))
	if err != nil {
		return err
	}

	ApplicationErrorsTotal, err = meter.Int64Counter("app.errors.total",
		api.WithDescription("Total application errors by component"))
	if err != nil {
		return err
	}

	slog.Info("Business metrics initialized")
	return nil
}

// AddOracleCall increments the oracle call counter when metrics are wired.
// The nil guard keeps library code usable in tests without a provider.
func AddOracleCall(ctx context.Context) {
	if OracleCalls != nil {
		OracleCalls.Add(ctx, 1)
	}
}

// AddOracleFailure increments the oracle failure counter when metrics are wired.
func AddOracleFailure(ctx context.Context) {
	if OracleFailures != nil {
		OracleFailures.Add(ctx, 1)
	}
}

// AddUnknownAction counts an action record skipped for an unrecognized action.
func AddUnknownAction(ctx context.Context) {
	if UnknownActions != nil {
		UnknownActions.Add(ctx, 1)
	}
}

// AddCacheHit counts a semantic cache hit.
func AddCacheHit(ctx context.Context) {
	if CacheHits != nil {
		CacheHits.Add(ctx, 1)
	}
}

// AddCacheMiss counts a semantic cache miss.
func AddCacheMiss(ctx context.Context) {
	if CacheMisses != nil {
		CacheMisses.Add(ctx, 1)
	}
}

// AddCacheExpiration counts a lazily expired semantic cache entry.
func AddCacheExpiration(ctx context.Context) {
	if CacheExpirations != nil {
		CacheExpirations.Add(ctx, 1)
	}
}

// AddError counts an application-level error.
func AddError(ctx context.Context) {
	if ApplicationErrorsTotal != nil {
		ApplicationErrorsTotal.Add(ctx, 1)
	}
}

// RecordEvaluation records one evaluation run and its score when metrics are wired.
func RecordEvaluation(ctx context.Context, score float64) {
	if EvaluationRuns != nil {
		EvaluationRuns.Add(ctx, 1)
	}
	if EvaluationScores != nil {
		EvaluationScores.Record(ctx, score)
	}
}
