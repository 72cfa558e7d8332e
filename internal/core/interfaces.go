package core

import (
	"context"
)

// ChatClient abstracts the model provider. Implementations pin the request policy:
// automatic function selection and minimum-temperature decoding.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, functions []FunctionSpec) (Message, error)
}

// AuditLog records every transcript message, in insertion order, outside the transcript itself.
type AuditLog interface {
	Record(ctx context.Context, sessionID string, msg Message) error
}
