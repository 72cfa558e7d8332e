package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/hattiebot/funcchat/internal/registry"
	"github.com/hattiebot/funcchat/internal/websearch"
)

// Result count bounds for web_search.
const (
	DefaultSearchResults = 5
	MaxSearchResults     = 10
)

// WebSearch runs {"search_query": "...", "max_results": n}. n below 1 uses the default,
// above MaxSearchResults is clamped. The output is a JSON object
// keyed "1".."n" in rank order; a failed search comes back as {"error": "..."}.
func WebSearch(s websearch.Searcher) registry.Function {
	return registry.FunctionFunc(func(ctx context.Context, args registry.Arguments) (string, error) {
		query, _ := args.String("search_query")
		max := DefaultSearchResults
		if n, ok := args.Int("max_results"); ok && n > 0 {
			max = n
		}
		if max > MaxSearchResults {
			max = MaxSearchResults
		}
		results, err := s.Search(ctx, query, max)
		if err != nil {
			return ErrJSON(err), nil
		}
		if len(results) > max {
			results = results[:max]
		}
		return encodeResults(results)
	})
}

// encodeResults writes an object with numeric keys in order; a Go map would sort "10" before "2".
func encodeResults(results []websearch.Result) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range results {
		if i > 0 {
			buf.WriteString(", ")
		}
		v, err := json.Marshal(r)
		if err != nil {
			return "", err
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i + 1)))
		buf.WriteString(": ")
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}
