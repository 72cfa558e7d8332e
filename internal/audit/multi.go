package audit

import (
	"context"

	"github.com/hattiebot/funcchat/internal/core"
)

// Multi records to every log in order. All logs are tried; the first error is returned.
type Multi []core.AuditLog

func (m Multi) Record(ctx context.Context, sessionID string, msg core.Message) error {
	var first error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.Record(ctx, sessionID, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
