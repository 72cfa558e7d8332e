// Package provider maps provider names from configuration to chat-client constructors.
// Client packages register themselves from init; import them for side effects.
package provider

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/hattiebot/funcchat/internal/core"
)

// Settings are what every client constructor gets.
type Settings struct {
	APIKey  string
	Model   string
	BaseURL string
	// MaxRetries for transient HTTP failures; 0 means one attempt.
	MaxRetries int
	HTTP       *http.Client
}

// Factory builds a chat client.
type Factory func(s Settings) (core.ChatClient, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds or replaces the factory for name.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Lookup returns the factory for name.
func Lookup(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Names lists registered providers, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// New builds the client registered as name.
func New(name string, s Settings) (core.ChatClient, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (registered: %v)", name, Names())
	}
	return f(s)
}
