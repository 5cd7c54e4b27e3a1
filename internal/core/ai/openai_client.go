package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/CartMateCo/grocery-service/config"
)

// Chat Completions API structures (legacy)
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Store       *bool     `json:"store,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionResponse struct {
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Responses API structures (new)
type ResponsesRequest struct {
	Model     string              `json:"model"`
	Input     []ResponsesMessage  `json:"input"`
	Store     *bool               `json:"store,omitempty"`
	Reasoning *ResponsesReasoning `json:"reasoning,omitempty"`
}

type ResponsesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponsesReasoning struct {
	Effort string `json:"effort"`
}

type ResponsesResponse struct {
	ID        string                `json:"id"`
	Object    string                `json:"object"`
	CreatedAt int64                 `json:"created_at"`
	Model     string                `json:"model"`
	Output    []ResponsesOutputItem `json:"output"`
	Usage     Usage                 `json:"usage"`
}

type ResponsesOutputItem struct {
	ID      string                   `json:"id"`
	Type    string                   `json:"type"`
	Status  string                   `json:"status,omitempty"`
	Role    string                   `json:"role,omitempty"`
	Content []ResponsesOutputContent `json:"content,omitempty"`
}

type ResponsesOutputContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// openAIClient carries the HTTP plumbing shared by the semantic oracle and
// the action extractor.
type openAIClient struct {
	config     config.OpenAIConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func newOpenAIClient(cfg config.OpenAIConfig, logger *slog.Logger) *openAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5-nano"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1 // low temperature for consistent verdicts
	}
	if cfg.ReasoningEffort == "" {
		cfg.ReasoningEffort = "medium"
	}
	if cfg.Model == "gpt-5" || cfg.Model == "gpt-5-nano" {
		cfg.UseResponsesAPI = true
		cfg.Store = true
	}

	return &openAIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 45 * time.Second, // reasoning models are slow
		},
		logger: logger,
	}
}

// complete sends a single user prompt and returns the assistant's text,
// using whichever API generation the config selects.
func (c *openAIClient) complete(ctx context.Context, prompt string) (string, error) {
	if c.config.UseResponsesAPI {
		return c.completeWithResponsesAPI(ctx, prompt)
	}
	return c.completeWithChatCompletions(ctx, prompt)
}

func (c *openAIClient) completeWithResponsesAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := ResponsesRequest{
		Model: c.config.Model,
		Input: []ResponsesMessage{
			{Role: "user", Content: prompt},
		},
		Reasoning: &ResponsesReasoning{
			Effort: c.config.ReasoningEffort,
		},
	}
	if c.config.Store {
		reqBody.Store = &c.config.Store
	}

	body, err := c.post(ctx, "/responses", reqBody)
	if err != nil {
		return "", err
	}

	var responsesResp ResponsesResponse
	if err := json.Unmarshal(body, &responsesResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal responses: %w", err)
	}

	return extractOutputText(responsesResp.Output)
}

func (c *openAIClient) completeWithChatCompletions(ctx context.Context, prompt string) (string, error) {
	reqBody := ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	if c.config.Store {
		reqBody.Store = &c.config.Store
	}

	body, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal chat completion response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion response")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (c *openAIClient) post(ctx context.Context, path string, reqBody any) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("OpenAI API error", "status_code", resp.StatusCode, "response", string(body))
		return nil, fmt.Errorf("API error: %d - %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func extractOutputText(output []ResponsesOutputItem) (string, error) {
	for _, item := range output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, content := range item.Content {
				if content.Type == "output_text" || content.Type == "text" {
					return content.Text, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no output text found in responses")
}
