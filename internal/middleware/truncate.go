// Package middleware decorates registry functions.
package middleware

import (
	"context"
	"strconv"
	"unicode/utf8"

	"github.com/hattiebot/funcchat/internal/registry"
)

// Truncate returns fn with its output capped at maxRunes (0 = no truncation).
// Errors pass through untouched.
func Truncate(fn registry.Function, maxRunes int) registry.Function {
	if maxRunes <= 0 {
		return fn
	}
	return registry.FunctionFunc(func(ctx context.Context, args registry.Arguments) (string, error) {
		out, err := fn.Call(ctx, args)
		if err != nil {
			return "", err
		}
		return TruncateOutput(out, maxRunes), nil
	})
}

// TruncateOutput keeps the head of s and appends a marker with the total rune count
// when s is longer than maxRunes runes. The result, marker included, is never longer than
// maxRunes runes; a cap too small for the marker gets the bare head. The cut never splits a rune.
func TruncateOutput(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	total := utf8.RuneCountInString(s)
	if total <= maxRunes {
		return s
	}
	marker := "\n...[output truncated, total " + strconv.Itoa(total) + " runes]"
	keep := maxRunes - utf8.RuneCountInString(marker)
	if keep <= 0 {
		return head(s, maxRunes)
	}
	return head(s, keep) + marker
}

// head returns the first n runes of s.
func head(s string, n int) string {
	cut := 0
	for i := 0; i < n && cut < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[cut:])
		cut += size
	}
	return s[:cut]
}
