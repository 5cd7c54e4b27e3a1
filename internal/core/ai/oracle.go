package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/CartMateCo/grocery-service/config"
	"github.com/CartMateCo/grocery-service/internal/core/match"
	"github.com/CartMateCo/grocery-service/pkg/telemetry"
)

// OpenAIOracle answers semantic equivalence questions about grocery item
// names. It satisfies match.Oracle; retries and caching live in the
// comparator, so a single call here is a single API round trip.
type OpenAIOracle struct {
	client        *openAIClient
	promptBuilder *PromptBuilder
	logger        *slog.Logger
}

func NewOpenAIOracle(cfg config.OpenAIConfig, logger *slog.Logger, promptsDir string) *OpenAIOracle {
	promptBuilder := NewPromptBuilder(promptsDir)
	if err := promptBuilder.ValidatePromptFiles(); err != nil {
		logger.Warn("Prompt files validation failed, using built-in prompts", "error", err)
	}

	return &OpenAIOracle{
		client:        newOpenAIClient(cfg, logger),
		promptBuilder: promptBuilder,
		logger:        logger.With("component", "semantic-oracle"),
	}
}

// CompareItems asks the model whether two item names refer to the same
// product, with the usual-groceries context for brand/variant disambiguation.
func (o *OpenAIOracle) CompareItems(ctx context.Context, extracted, expected, usualGroceries string) (match.Result, error) {
	telemetry.AddOracleCall(ctx)

	prompt := o.promptBuilder.BuildComparisonPrompt(extracted, expected, usualGroceries)

	content, err := o.client.complete(ctx, prompt)
	if err != nil {
		telemetry.AddOracleFailure(ctx)
		return match.Result{}, fmt.Errorf("oracle request failed: %w", err)
	}

	result, err := parseComparisonResponse(content)
	if err != nil {
		telemetry.AddOracleFailure(ctx)
		o.logger.Error("Failed to parse oracle response", "error", err, "response", content)
		return match.Result{}, err
	}

	o.logger.Debug("Oracle comparison completed",
		"extracted", extracted,
		"expected", expected,
		"is_match", result.IsMatch,
		"confidence", result.Confidence)

	return result, nil
}

// comparisonPayload mirrors the oracle reply with pointer fields so missing
// keys are detectable instead of defaulting to a silent no-match.
type comparisonPayload struct {
	IsMatch    *bool    `json:"isMatch"`
	Confidence *float64 `json:"confidence"`
	Reasoning  *string  `json:"reasoning"`
}

// parseComparisonResponse extracts the first balanced JSON object from the
// reply and validates it: boolean isMatch, numeric confidence clamped into
// [0,1], string reasoning. Anything else is a parse error, which the
// comparator's retry path picks up.
func parseComparisonResponse(content string) (match.Result, error) {
	jsonStr, err := firstJSONObject(content)
	if err != nil {
		return match.Result{}, fmt.Errorf("no valid JSON in oracle response: %w", err)
	}

	var payload comparisonPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return match.Result{}, fmt.Errorf("failed to parse oracle JSON: %w", err)
	}

	if payload.IsMatch == nil {
		return match.Result{}, fmt.Errorf("oracle response missing isMatch")
	}
	if payload.Confidence == nil {
		return match.Result{}, fmt.Errorf("oracle response missing confidence")
	}
	if payload.Reasoning == nil {
		return match.Result{}, fmt.Errorf("oracle response missing reasoning")
	}

	confidence := *payload.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return match.Result{
		IsMatch:    *payload.IsMatch,
		Confidence: confidence,
		Reasoning:  *payload.Reasoning,
	}, nil
}
