// Package anthropic adapts the Anthropic Messages API to core.ChatClient.
// Declared functions are offered as tools and a tool_use block comes back as a
// function call. Function results are replayed as user text, since the
// transcript does not keep tool-use ids.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hattiebot/funcchat/internal/core"
	"github.com/hattiebot/funcchat/internal/provider"
)

func init() {
	provider.Register("anthropic", func(s provider.Settings) (core.ChatClient, error) {
		return NewClient(s), nil
	})
}

const (
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultMaxTokens = 4096
)

// Client calls Messages.New with temperature 0.
type Client struct {
	client    *anthropic.Client
	Model     string
	MaxTokens int64
}

// NewClient builds a client from provider settings. An empty API key falls back to
// ANTHROPIC_API_KEY, as the SDK does.
func NewClient(s provider.Settings) *Client {
	opts := []option.RequestOption{option.WithMaxRetries(s.MaxRetries)}
	if s.APIKey != "" {
		opts = append(opts, option.WithAPIKey(s.APIKey))
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	if s.HTTP != nil {
		opts = append(opts, option.WithHTTPClient(s.HTTP))
	}
	model := s.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client:    anthropic.NewClient(opts...),
		Model:     model,
		MaxTokens: DefaultMaxTokens,
	}
}

// Chat sends the transcript and returns the assistant reply. When the reply holds a
// tool_use block, its input becomes the function call arguments and any text is kept
// as content.
func (c *Client) Chat(ctx context.Context, messages []core.Message, functions []core.FunctionSpec) (core.Message, error) {
	system, msgs := convertMessages(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(c.Model)),
		MaxTokens:   anthropic.F(c.MaxTokens),
		Messages:    anthropic.F(msgs),
		Temperature: anthropic.F(0.0),
	}
	if len(system) > 0 {
		params.System = anthropic.F(system)
	}
	if len(functions) > 0 {
		params.Tools = anthropic.F(convertFunctions(functions))
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return core.Message{}, fmt.Errorf("anthropic: %w", err)
	}

	reply := core.Message{Role: core.RoleAssistant}
	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			if reply.FunctionCall != nil {
				continue
			}
			args, err := json.Marshal(block.Input)
			if err != nil {
				return core.Message{}, fmt.Errorf("anthropic: tool input: %w", err)
			}
			reply.FunctionCall = &core.FunctionCall{Name: block.Name, Arguments: string(args)}
		}
	}
	reply.Content = text.String()
	return reply, nil
}

func convertFunctions(functions []core.FunctionSpec) []anthropic.ToolParam {
	out := make([]anthropic.ToolParam, 0, len(functions))
	for _, f := range functions {
		out = append(out, anthropic.ToolParam{
			Name:        anthropic.F(f.Name),
			Description: anthropic.F(f.Description),
			InputSchema: anthropic.F(interface{}(f.Parameters)),
		})
	}
	return out
}

// convertMessages splits out system text and maps the rest to user/assistant turns.
func convertMessages(messages []core.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			system = append(system, anthropic.NewTextBlock(m.Content))
		case core.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case core.RoleAssistant:
			if m.Content == "" {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case core.RoleFunction:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("Result of function %s:\n%s", m.Name, m.Content))))
		}
	}
	return system, out
}
