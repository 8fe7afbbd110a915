package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 90 * time.Second

// OpenAIConfig configures the chat-completions client. BaseURL may point at
// any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// OpenAIClient calls an OpenAI-compatible chat-completions API.
type OpenAIClient struct {
	config OpenAIConfig
	client *http.Client
}

// NewOpenAIClient creates a chat-completions client.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	return &OpenAIClient{
		config: config,
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends one chat completion request. HTTP 429 and 5xx responses
// are classified Transient, other non-2xx responses Permanent.
func (c *OpenAIClient) Generate(ctx context.Context, systemInstruction, contextText string) (string, error) {
	payload := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: contextText},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Kind: Permanent, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: Permanent, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}

		// Network errors and client-side timeouts are retryable.
		return "", &Error{Kind: Transient, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Kind: Transient, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		kind := Permanent
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			kind = Transient
		}

		return "", &Error{Kind: kind, Err: fmt.Errorf("generation API returned %s: %s", resp.Status, truncate(string(respBody), 200))}
	}

	var parsed chatResponse

	err = json.Unmarshal(respBody, &parsed)
	if err != nil {
		return "", &Error{Kind: Transient, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if parsed.Error != nil {
		return "", &Error{Kind: Permanent, Err: fmt.Errorf("generation API error: %s", parsed.Error.Message)}
	}

	if len(parsed.Choices) == 0 {
		return "", &Error{Kind: Transient, Err: errors.New("generation API returned no choices")}
	}

	return parsed.Choices[0].Message.Content, nil
}

// HealthCheck verifies the endpoint is configured. It deliberately avoids a
// billable API call.
func (c *OpenAIClient) HealthCheck(_ context.Context) error {
	if c.config.BaseURL == "" || c.config.Model == "" {
		return errors.New("generation endpoint not configured")
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
