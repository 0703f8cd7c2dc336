package web

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// gm renders agent output with GitHub-flavored extensions (tables,
// strikethrough, autolinks). Raw HTML in the source is filtered by the
// default renderer, so agent output cannot inject markup.
var gm = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// RenderHTML converts a markdown response to HTML. On conversion
// failure it falls back to the escaped plain text.
func RenderHTML(md string) string {
	var buf bytes.Buffer
	if err := gm.Convert([]byte(md), &buf); err != nil {
		return "<p>" + htmlEscape(md) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}

// htmlEscape escapes <, >, & for HTML output.
func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
