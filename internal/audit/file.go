// Package audit writes conversation messages outside the transcript.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hattiebot/funcchat/internal/core"
)

// Entry is one line of the audit file.
type Entry struct {
	Time         time.Time          `json:"time"`
	Session      string             `json:"session"`
	Role         string             `json:"role"`
	Content      string             `json:"content"`
	Name         string             `json:"name,omitempty"`
	FunctionCall *core.FunctionCall `json:"function_call,omitempty"`
}

// FileLog appends one JSON object per message to a file. Safe for concurrent use.
type FileLog struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
}

// OpenFile opens (creating parent directories) path for appending.
func OpenFile(path string) (*FileLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return &FileLog{f: f, now: time.Now}, nil
}

// Record implements core.AuditLog.
func (l *FileLog) Record(ctx context.Context, sessionID string, msg core.Message) error {
	b, err := json.Marshal(Entry{
		Time:         l.now().UTC(),
		Session:      sessionID,
		Role:         msg.Role,
		Content:      msg.Content,
		Name:         msg.Name,
		FunctionCall: msg.FunctionCall,
	})
	if err != nil {
		return err
	}
	b = append(b, '\n')
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	_, err = l.f.Write(b)
	return err
}

// Close closes the file; later Records fail.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
