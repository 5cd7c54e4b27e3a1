package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Placeholder tokens substituted into the prompt templates.
const (
	placeholderExtractedItem  = "{EXTRACTED_ITEM}"
	placeholderExpectedItem   = "{EXPECTED_ITEM}"
	placeholderUsualGroceries = "{USUAL_GROCERIES}"
	placeholderUtterance      = "{UTTERANCE}"
)

// Built-in fallback templates, used when the prompts directory is missing or
// incomplete so the service can run without deployment assets.
const builtinComparisonPrompt = `You are comparing two grocery item names to decide whether they refer to the same product.

Extracted item: "{EXTRACTED_ITEM}"
Expected item: "{EXPECTED_ITEM}"

The shopper's usual groceries, one per line (use these to resolve brand or variant ambiguity):
{USUAL_GROCERIES}

Two names match when a reasonable shopper would treat them as the same product, even across languages or phrasings ("scallions" vs "green onions", "молоко" vs "milk"). Different products that merely belong to the same category do NOT match.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{"isMatch": <true|false>, "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

const builtinExtractionPrompt = `You convert a shopper's natural-language utterance into grocery list actions.

Utterance: "{UTTERANCE}"

The shopper's usual groceries, one per line (use them to disambiguate item names):
{USUAL_GROCERIES}

Rules:
- Keep item names in the utterance's original language; never translate.
- action is one of "add", "remove", "modify". Use "remove" with quantity 0 when the shopper no longer wants an item.
- Extract quantities as plain numbers; put unit phrases into measurement {value, unit} when present.

Respond with ONLY a JSON array in this exact format (no markdown, no prose):
[{"item": "<name>", "quantity": <number>, "action": "<add|remove|modify>", "measurement": {"value": <number>, "unit": "<unit>"}}]
Omit measurement when the utterance gives none.`

// PromptBuilder assembles oracle and extraction prompts from template files,
// falling back to the built-in templates when a file is absent.
type PromptBuilder struct {
	promptsDir string
}

func NewPromptBuilder(promptsDir string) *PromptBuilder {
	if promptsDir == "" {
		promptsDir = "prompts"
	}
	return &PromptBuilder{
		promptsDir: promptsDir,
	}
}

// BuildComparisonPrompt fills the semantic comparison template. The original,
// non-sanitized names go into the prompt; sanitization is a cache concern.
func (pb *PromptBuilder) BuildComparisonPrompt(extractedItem, expectedItem, usualGroceries string) string {
	template := pb.loadOrDefault("semantic_comparison_prompt.txt", builtinComparisonPrompt)

	prompt := strings.ReplaceAll(template, placeholderExtractedItem, extractedItem)
	prompt = strings.ReplaceAll(prompt, placeholderExpectedItem, expectedItem)
	prompt = strings.ReplaceAll(prompt, placeholderUsualGroceries, emptyFallback(usualGroceries, "(none provided)"))

	return prompt
}

// BuildExtractionPrompt fills the utterance extraction template.
func (pb *PromptBuilder) BuildExtractionPrompt(utterance, usualGroceries string) string {
	template := pb.loadOrDefault("extraction_prompt.txt", builtinExtractionPrompt)

	prompt := strings.ReplaceAll(template, placeholderUtterance, utterance)
	prompt = strings.ReplaceAll(prompt, placeholderUsualGroceries, emptyFallback(usualGroceries, "(none provided)"))

	return prompt
}

// ValidatePromptFiles checks that the override files exist. A missing
// directory is fine (built-ins apply); a partially populated one is reported
// so deployments notice.
func (pb *PromptBuilder) ValidatePromptFiles() error {
	if _, err := os.Stat(pb.promptsDir); os.IsNotExist(err) {
		return nil
	}

	requiredFiles := []string{
		"semantic_comparison_prompt.txt",
		"extraction_prompt.txt",
	}

	for _, file := range requiredFiles {
		path := filepath.Join(pb.promptsDir, file)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("required prompt file missing: %s", file)
		}
	}

	return nil
}

func (pb *PromptBuilder) loadOrDefault(filename, fallback string) string {
	content, err := os.ReadFile(filepath.Join(pb.promptsDir, filename))
	if err != nil {
		return fallback
	}
	return strings.TrimSpace(string(content))
}

func emptyFallback(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
