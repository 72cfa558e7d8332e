// Package websearch queries a search backend for the web_search function.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Result is one search hit.
type Result struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// Searcher returns at most max results for query.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]Result, error)
}

// DefaultBaseURL is the DuckDuckGo Instant Answer endpoint.
const DefaultBaseURL = "https://api.duckduckgo.com/"

// DuckDuckGo searches with the Instant Answer API. It needs no API key.
type DuckDuckGo struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
}

// NewDuckDuckGo returns a client for the public endpoint.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		BaseURL:   DefaultBaseURL,
		UserAgent: "funcchat/1.0",
		HTTP:      http.DefaultClient,
	}
}

// Search returns the abstract (if any) followed by related topics, flattening topic groups.
func (d *DuckDuckGo) Search(ctx context.Context, query string, max int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("websearch: empty query")
	}
	if max <= 0 {
		return nil, nil
	}
	base := d.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	hc := d.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("websearch: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websearch: HTTP %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("websearch: invalid JSON response")
	}
	return parseInstantAnswer(body, max), nil
}

func parseInstantAnswer(body []byte, max int) []Result {
	doc := gjson.ParseBytes(body)
	var out []Result
	if text := doc.Get("AbstractText").String(); text != "" {
		title := doc.Get("Heading").String()
		if title == "" {
			title = text
		}
		out = append(out, Result{Title: title, Href: doc.Get("AbstractURL").String(), Body: text})
	}
	var walk func(topics gjson.Result)
	walk = func(topics gjson.Result) {
		topics.ForEach(func(_, t gjson.Result) bool {
			if len(out) >= max {
				return false
			}
			if nested := t.Get("Topics"); nested.IsArray() {
				walk(nested)
				return len(out) < max
			}
			text := t.Get("Text").String()
			if text == "" {
				return true
			}
			out = append(out, Result{Title: topicTitle(text), Href: t.Get("FirstURL").String(), Body: text})
			return true
		})
	}
	walk(doc.Get("RelatedTopics"))
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// topicTitle takes the lead of a related-topic text ("Go (language) - A statically typed ...").
func topicTitle(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	return text
}
