// Package openai talks to OpenAI-compatible chat completion endpoints using
// legacy function calling.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hattiebot/funcchat/internal/core"
	"github.com/hattiebot/funcchat/internal/provider"
)

func init() {
	provider.Register("openai", func(s provider.Settings) (core.ChatClient, error) {
		c := NewClient(s.APIKey, s.Model)
		if s.BaseURL != "" {
			c.BaseURL = s.BaseURL
		}
		if s.HTTP != nil {
			c.HTTP = s.HTTP
		}
		c.MaxRetries = s.MaxRetries
		return c, nil
	})
}

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo-16k-0613"
)

// APIError is a non-200 response or an error object in the body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "openai: " + e.Message
	}
	return fmt.Sprintf("openai: HTTP %d: %s", e.StatusCode, e.Message)
}

// ChatRequest is the request body for chat completions.
type ChatRequest struct {
	Model        string              `json:"model"`
	Messages     []core.Message      `json:"messages"`
	Functions    []core.FunctionSpec `json:"functions,omitempty"`
	FunctionCall any                 `json:"function_call,omitempty"` // "auto"
	Temperature  float64             `json:"temperature"`
}

// ChatResponse is the part of the response we read.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Role         string             `json:"role"`
			Content      json.RawMessage    `json:"content"`
			FunctionCall *core.FunctionCall `json:"function_call,omitempty"`
			ToolCalls    []struct {
				Function core.FunctionCall `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls the chat completions endpoint. Requests always use automatic function
// selection and temperature 0.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
	// MaxRetries on network errors, 429 and 5xx. Zero sends each request once.
	MaxRetries int
	Backoff    time.Duration
}

// NewClient creates a client for the public endpoint.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultBaseURL,
		HTTP:    http.DefaultClient,
		Backoff: time.Second,
	}
}

// Chat sends the transcript and function declarations and returns the assistant message.
// A function call in the reply is returned in FunctionCall with its raw argument text.
func (c *Client) Chat(ctx context.Context, messages []core.Message, functions []core.FunctionSpec) (core.Message, error) {
	if c.APIKey == "" {
		return core.Message{}, fmt.Errorf("openai: API key not set")
	}
	body := ChatRequest{
		Model:     c.Model,
		Messages:  messages,
		Functions: functions,
	}
	if len(functions) > 0 {
		body.FunctionCall = "auto"
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return core.Message{}, err
	}

	status, respBody, err := c.post(ctx, raw)
	if err != nil {
		return core.Message{}, err
	}
	var out ChatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		if status != http.StatusOK {
			return core.Message{}, &APIError{StatusCode: status, Message: strings.TrimSpace(string(respBody))}
		}
		return core.Message{}, fmt.Errorf("openai: decode: %w", err)
	}
	if out.Error != nil {
		return core.Message{}, &APIError{StatusCode: status, Message: out.Error.Message}
	}
	if status != http.StatusOK {
		return core.Message{}, &APIError{StatusCode: status, Message: strings.TrimSpace(string(respBody))}
	}
	if len(out.Choices) == 0 {
		return core.Message{}, &APIError{Message: "no choices in response"}
	}
	m := out.Choices[0].Message
	reply := core.Message{Role: core.RoleAssistant, Content: parseContent(m.Content)}
	switch {
	case m.FunctionCall != nil && m.FunctionCall.Name != "":
		reply.FunctionCall = m.FunctionCall
	case len(m.ToolCalls) > 0:
		// Some compatible servers answer legacy requests with tool_calls; take the first.
		fc := m.ToolCalls[0].Function
		reply.FunctionCall = &fc
	}
	return reply, nil
}

// post sends the request, retrying transient failures up to MaxRetries times with
// exponential backoff.
func (c *Client) post(ctx context.Context, raw []byte) (int, []byte, error) {
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	var (
		status  int
		body    []byte
		lastErr error
	)
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[OPENAI] Retry %d/%d after %v...", attempt, c.MaxRetries, backoff)
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/chat/completions", bytes.NewReader(raw))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, err := hc.Do(req)
		if err != nil {
			lastErr = err
			log.Printf("[OPENAI] Network error: %v", err)
			continue
		}
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		status, lastErr = resp.StatusCode, nil
		if status == http.StatusTooManyRequests || status >= 500 {
			log.Printf("[OPENAI] Retryable error: HTTP %d", status)
			continue
		}
		break
	}
	if lastErr != nil {
		return 0, nil, fmt.Errorf("openai: request failed: %w", lastErr)
	}
	return status, body, nil
}

// parseContent accepts a string, null, or an array of {"type":"text","text":...} parts.
func parseContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []map[string]any
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if t, ok := p["text"].(string); ok {
			b.WriteString(t)
		}
	}
	return b.String()
}
