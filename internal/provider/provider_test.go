package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/hattiebot/funcchat/internal/core"
)

type echoClient struct{ model string }

func (e echoClient) Chat(ctx context.Context, msgs []core.Message, fns []core.FunctionSpec) (core.Message, error) {
	return core.AssistantMessage(e.model), nil
}

func TestRegisterAndNew(t *testing.T) {
	Register("echo-test", func(s Settings) (core.ChatClient, error) {
		return echoClient{model: s.Model}, nil
	})
	c, err := New("echo-test", Settings{Model: "m1"})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := c.Chat(context.Background(), nil, nil)
	if err != nil || reply.Content != "m1" {
		t.Fatalf("got %+v, %v", reply, err)
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New("nope", Settings{})
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}
