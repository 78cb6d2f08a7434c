// Package anthropic is an llm.Client for Anthropic's Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/tether/pkg/llm"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	APIVersion     = "2023-06-01"

	messagesPath = "/v1/messages"

	// maxErrorBody bounds how much of a failed response is read into an APIError.
	maxErrorBody = 4096
)

// Config is the Anthropic client configuration.
type Config struct {
	// APIKey is sent as the x-api-key header. Required.
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient defaults to a client without an overall timeout, since
	// streaming responses can legitimately run for minutes. Cancellation
	// is driven by the request context.
	HTTPClient *http.Client

	// Transcript, when set, receives a raw copy of every streamed response.
	Transcript io.Writer

	Logger *slog.Logger
}

// Client implements llm.Client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	transcript io.Writer
	logger     *slog.Logger
}

// APIError is a non-2xx response or an in-stream error event.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("anthropic stream error: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic API error (status %d): %s: %s", e.StatusCode, e.Type, e.Message)
}

// New creates a new Anthropic client.
func New(c Config) (*Client, error) {
	if c.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		apiKey:     c.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		transcript: c.Transcript,
		logger:     c.Logger,
	}, nil
}

// Chat sends a blocking Messages API request.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()

	resp, err := c.do(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ar anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decoding anthropic response: %w", err)
	}

	c.logger.Debug("anthropic response",
		"model", ar.Model,
		"stop_reason", ar.StopReason,
		"blocks", len(ar.Content),
		"duration", time.Since(start),
	)

	return &llm.ChatResponse{
		ID:    ar.ID,
		Model: ar.Model,
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: ar.Content,
		},
		StopReason: ar.StopReason,
		Usage:      ar.Usage.toUsage(),
		CreatedAt:  time.Now(),
	}, nil
}

// Stream sends a streaming Messages API request.
func (c *Client) Stream(ctx context.Context, req *llm.ChatRequest) (llm.Stream, error) {
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, err
	}

	return newStream(ctx, resp.Body, c.transcript, c.logger), nil
}

func (c *Client) do(ctx context.Context, req *llm.ChatRequest, stream bool) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil chat request")
	}

	body, err := json.Marshal(toAnthropicRequest(req, stream))
	if err != nil {
		return nil, fmt.Errorf("encoding anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	c.logger.Debug("sending anthropic request",
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
		"stream", stream,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}

	return resp, nil
}

func toAnthropicRequest(req *llm.ChatRequest, stream bool) *anthropicRequest {
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	return &anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Messages:  messages,
		Tools:     req.Tools,
		Stream:    stream,
	}
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode, Type: "http_error", Message: strings.TrimSpace(string(data))}

	var ae anthropicError
	if err := json.Unmarshal(data, &ae); err == nil && ae.Error.Message != "" {
		apiErr.Type = ae.Error.Type
		apiErr.Message = ae.Error.Message
	}

	return apiErr
}
