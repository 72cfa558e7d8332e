package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hattiebot/funcchat/internal/registry"
)

func TestConfirm_RestrictedDenied(t *testing.T) {
	inner := &stubFunction{result: "ran"}
	var asked string
	fn := Confirm(inner, "execute_code", registry.PolicyRestricted, func(msg string) (bool, error) {
		asked = msg
		return false, nil
	})
	got, err := fn.Call(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != DeniedMessage {
		t.Errorf("got %q", got)
	}
	if inner.calls != 0 {
		t.Error("denied call reached the implementation")
	}
	if !strings.Contains(asked, "execute_code") {
		t.Errorf("prompt should name the function: %q", asked)
	}
}

func TestConfirm_RestrictedApproved(t *testing.T) {
	inner := &stubFunction{result: "ran"}
	fn := Confirm(inner, "execute_code", registry.PolicyRestricted, func(string) (bool, error) { return true, nil })
	got, err := fn.Call(context.Background(), nil)
	if err != nil || got != "ran" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestConfirm_SafeNeverAsks(t *testing.T) {
	inner := &stubFunction{result: "ok"}
	fn := Confirm(inner, "web_search", registry.PolicySafe, func(string) (bool, error) {
		t.Fatal("safe function should not ask")
		return false, nil
	})
	if _, err := fn.Call(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}

func TestConfirm_PromptError(t *testing.T) {
	inner := &stubFunction{result: "ran"}
	boom := errors.New("tty closed")
	fn := Confirm(inner, "execute_code", registry.PolicyRestricted, func(string) (bool, error) { return false, boom })
	if _, err := fn.Call(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped prompt error, got %v", err)
	}
}

func TestChain(t *testing.T) {
	inner := &stubFunction{result: strings.Repeat("y", 300)}
	wrap := Chain(100, func(string) (bool, error) { return true, nil })
	fn := wrap(registry.Declaration{Name: "execute_code", Policy: registry.PolicyRestricted}, inner)
	got, err := fn.Call(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "total 300 runes") {
		t.Errorf("expected truncated output, got %q", got)
	}
}
