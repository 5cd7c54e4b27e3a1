package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CartMateCo/grocery-service/config"
	"github.com/CartMateCo/grocery-service/internal/core/grocery"
)

// Extractor turns a free-form utterance into action records. This is the
// external-collaborator side of the pipeline; the reconciler and evaluator
// only ever see the resulting records.
type Extractor interface {
	ExtractActions(ctx context.Context, utterance, usualGroceries string) ([]grocery.ActionRecord, error)
}

// OpenAIExtractor implements Extractor over the same OpenAI plumbing as the
// oracle.
type OpenAIExtractor struct {
	client        *openAIClient
	promptBuilder *PromptBuilder
	logger        *slog.Logger
}

func NewOpenAIExtractor(cfg config.OpenAIConfig, logger *slog.Logger, promptsDir string) *OpenAIExtractor {
	promptBuilder := NewPromptBuilder(promptsDir)
	if err := promptBuilder.ValidatePromptFiles(); err != nil {
		logger.Warn("Prompt files validation failed, using built-in prompts", "error", err)
	}

	return &OpenAIExtractor{
		client:        newOpenAIClient(cfg, logger),
		promptBuilder: promptBuilder,
		logger:        logger.With("component", "action-extractor"),
	}
}

// ExtractActions sends the utterance to the model and decodes the reply as
// the extraction input contract (JSON array of action records).
func (e *OpenAIExtractor) ExtractActions(ctx context.Context, utterance, usualGroceries string) ([]grocery.ActionRecord, error) {
	prompt := e.promptBuilder.BuildExtractionPrompt(utterance, usualGroceries)

	content, err := e.client.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	jsonStr, err := firstJSONArray(content)
	if err != nil {
		return nil, fmt.Errorf("no valid JSON array in extraction response: %w", err)
	}

	records, err := grocery.DecodeActionRecords([]byte(jsonStr))
	if err != nil {
		e.logger.Error("Failed to decode extracted actions", "error", err, "response", content)
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	e.logger.Info("Extracted action records",
		"utterance", utterance,
		"records_count", len(records))

	return records, nil
}
