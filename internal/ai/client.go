// Package ai calls an OpenAI-compatible chat completions endpoint to tag
// milestones and summarize a timeline.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is a single message in a conversation
type Message struct {
	Role    string `json:"role"`    // system, user, assistant
	Content string `json:"content"` // message content
}

// Request is a request to the model
type Request struct {
	Messages    []Message
	SystemMsg   string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Response is the model's answer
type Response struct {
	Content      string
	FinishReason string
	Model        string
	TotalTokens  int
}

// Completer is the one capability the tagger and summarizer need
type Completer interface {
	Complete(ctx context.Context, request Request) (*Response, error)
}

// ClientConfig holds configuration for the chat client
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client implements Completer for OpenAI-compatible endpoints
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

type chatRequestBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponseBody struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient creates a chat client
func NewClient(config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("AI API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := config.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 256
	}

	return &Client{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: config.Temperature,
		maxTokens:   maxTokens,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Complete sends a completion request
func (c *Client) Complete(ctx context.Context, request Request) (*Response, error) {
	messages := make([]Message, 0, len(request.Messages)+1)
	if request.SystemMsg != "" {
		messages = append(messages, Message{Role: "system", Content: request.SystemMsg})
	}
	messages = append(messages, request.Messages...)

	model := request.Model
	if model == "" {
		model = c.model
	}
	temperature := request.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := request.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	jsonData, err := json.Marshal(chatRequestBody{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp chatResponseBody
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := apiResp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Model:        model,
		TotalTokens:  apiResp.Usage.TotalTokens,
	}, nil
}
