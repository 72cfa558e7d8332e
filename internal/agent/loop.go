// Package agent runs conversation turns: user message in, function calls
// dispatched, final assistant answer out.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/oklog/ulid/v2"

	"github.com/hattiebot/funcchat/internal/core"
	"github.com/hattiebot/funcchat/internal/registry"
)

// DefaultMaxFunctionCalls bounds the function calls a single turn may make.
const DefaultMaxFunctionCalls = 10

// FallbackMessage is the answer recorded when a turn runs out of function calls.
func FallbackMessage(n int) string {
	return fmt.Sprintf("Stopped after %d function calls without a final answer.", n)
}

// Conversation is one chat session.
type Conversation struct {
	ID         string
	Transcript *core.Transcript
}

// Loop drives turns against a chat client. Only Client is required.
type Loop struct {
	Client    core.ChatClient
	Functions *registry.Registry
	Audit     core.AuditLog

	// MaxFunctionCalls per turn; <= 0 uses DefaultMaxFunctionCalls.
	MaxFunctionCalls int
	// ContextTokenLimit enables a warning when the request is estimated larger; 0 disables.
	ContextTokenLimit int
	Tokenizer         registry.Tokenizer
}

// NewConversation starts a session with a fresh id and the system prompt.
func (l *Loop) NewConversation(ctx context.Context, systemPrompt string) *Conversation {
	conv := &Conversation{
		ID:         ulid.Make().String(),
		Transcript: core.NewTranscript(systemPrompt),
	}
	l.record(ctx, conv, conv.Transcript.Last())
	return conv
}

// MessageStep adds the user's utterance, runs the model and any function calls it asks
// for, and returns the final assistant message. Function-call directives themselves are
// not added to the transcript; their results are. On error, messages appended so far stay.
func (l *Loop) MessageStep(ctx context.Context, conv *Conversation, utterance string) (core.Message, error) {
	l.append(ctx, conv, core.UserMessage(utterance))

	max := l.MaxFunctionCalls
	if max <= 0 {
		max = DefaultMaxFunctionCalls
	}

	reply, err := l.chat(ctx, conv)
	if err != nil {
		return core.Message{}, err
	}
	calls := 0
	for reply.HasFunctionCall() {
		if calls >= max {
			log.Printf("[AGENT] Max function calls (%d) reached for this turn.", max)
			reply = core.AssistantMessage(FallbackMessage(calls))
			break
		}
		name := reply.FunctionCall.Name
		log.Printf("[AGENT] Function call %d: %s", calls+1, name)
		result, err := l.dispatch(ctx, reply.FunctionCall)
		if err != nil {
			log.Printf("[AGENT] Function %s failed: %v", name, err)
			return core.Message{}, err
		}
		l.append(ctx, conv, core.FunctionResult(name, result))
		calls++

		reply, err = l.chat(ctx, conv)
		if err != nil {
			return core.Message{}, err
		}
	}
	if reply.Role == "" {
		reply.Role = core.RoleAssistant
	}
	l.append(ctx, conv, reply)
	return reply, nil
}

func (l *Loop) chat(ctx context.Context, conv *Conversation) (core.Message, error) {
	var specs []core.FunctionSpec
	if l.Functions != nil {
		specs = l.Functions.Describe()
	}
	messages := conv.Transcript.Messages()
	l.checkContext(messages)
	reply, err := l.Client.Chat(ctx, messages, specs)
	if err != nil {
		log.Printf("[AGENT] Chat error: %v", err)
		return core.Message{}, fmt.Errorf("chat: %w", err)
	}
	return reply, nil
}

func (l *Loop) dispatch(ctx context.Context, fc *core.FunctionCall) (string, error) {
	if l.Functions == nil {
		return registry.NotFoundMessage(fc.Name), nil
	}
	args, err := registry.ParseArguments(fc.Arguments)
	if err != nil {
		return registry.InvalidArgumentsMessage(fc.Name, err), nil
	}
	return l.Functions.Dispatch(ctx, fc.Name, args)
}

// checkContext logs when the request likely exceeds the model's context window.
func (l *Loop) checkContext(messages []core.Message) {
	if l.ContextTokenLimit <= 0 {
		return
	}
	tok := l.Tokenizer
	if tok == nil {
		tok = registry.ApproxTokenizer
	}
	total := 0
	if l.Functions != nil {
		total = l.Functions.EstimateTokenLength(tok)
	}
	b, err := json.Marshal(messages)
	if err == nil {
		total += tok(string(b))
	}
	if total > l.ContextTokenLimit {
		log.Printf("[AGENT] Estimated request size %d tokens exceeds context limit %d", total, l.ContextTokenLimit)
	}
}

func (l *Loop) append(ctx context.Context, conv *Conversation, m core.Message) {
	conv.Transcript.Append(m)
	l.record(ctx, conv, m)
}

// record writes m to the audit log. Failures are logged and do not stop the turn.
func (l *Loop) record(ctx context.Context, conv *Conversation, m core.Message) {
	if l.Audit == nil {
		return
	}
	if err := l.Audit.Record(ctx, conv.ID, m); err != nil {
		log.Printf("[AGENT] Audit write failed: %v", err)
	}
}
