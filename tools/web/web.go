// Package web provides the web_fetch and download_file tools.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/nevindra/catalyst"
)

const maxContentChars = 10000

const userAgent = "Mozilla/5.0 (compatible; CatalystBot/1.0)"

// Fetch downloads a web page and extracts its readable text.
type Fetch struct {
	client *http.Client
}

var _ catalyst.Tool = (*Fetch)(nil)

// NewFetch creates a web_fetch tool with a 15-second timeout.
func NewFetch() *Fetch {
	return &Fetch{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *Fetch) Name() string { return "web_fetch" }

func (f *Fetch) Description() string {
	return "Fetches a URL and extracts its readable text content. Use for reading web pages, articles, documentation."
}

func (f *Fetch) Schema() catalyst.Schema {
	return catalyst.Schema{
		Params: []catalyst.Param{
			{Name: "url", Type: "string", Description: "The full URL to fetch, including http:// or https://", Required: true},
		},
		Example: `web_fetch(url="https://example.com/article")`,
	}
}

func (f *Fetch) Execute(ctx context.Context, args map[string]any) (any, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("missing required parameter: url")
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	html := string(body)

	// Try readability extraction, fall back to simple tag stripping.
	var title, content string
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		title = article.Title
		content = strings.TrimSpace(article.TextContent)
	} else {
		content = stripHTML(html)
	}

	if len(content) > maxContentChars {
		content = content[:maxContentChars] + "\n[Content truncated...]"
	}

	return map[string]any{
		"url":     rawURL,
		"title":   title,
		"content": content,
		"length":  len(content),
	}, nil
}
