package web

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stripHTML removes tags, scripts, styles, and decodes common entities.
// Used when readability extraction comes back empty.
func stripHTML(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inTag, inScript, inStyle := false, false, false
	var tag strings.Builder
	readingTag := false

	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])

		if r == '<' {
			inTag, readingTag = true, true
			tag.Reset()
			i += size
			continue
		}

		if inTag {
			if readingTag {
				if unicode.IsSpace(r) || r == '>' || (r == '/' && tag.Len() > 0) {
					readingTag = false
					switch name := strings.ToLower(tag.String()); name {
					case "script":
						inScript = true
					case "/script":
						inScript = false
					case "style":
						inStyle = true
					case "/style":
						inStyle = false
					default:
						if blockTags[strings.TrimPrefix(name, "/")] {
							out.WriteByte('\n')
						}
					}
				} else {
					tag.WriteRune(r)
				}
			}
			if r == '>' {
				inTag = false
			}
			i += size
			continue
		}

		if inScript || inStyle {
			i += size
			continue
		}

		if r == '&' {
			if decoded, n := decodeEntity(content[i:]); n > 0 {
				out.WriteString(decoded)
				i += n
				continue
			}
		}

		out.WriteRune(r)
		i += size
	}

	return collapseBlankLines(out.String())
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"blockquote": true, "pre": true, "section": true, "article": true,
	"header": true, "footer": true, "nav": true, "main": true,
}

var namedEntities = map[string]string{
	"&amp;":    "&",
	"&lt;":     "<",
	"&gt;":     ">",
	"&quot;":   "\"",
	"&#39;":    "'",
	"&apos;":   "'",
	"&nbsp;":   " ",
	"&mdash;":  "—",
	"&ndash;":  "–",
	"&hellip;": "…",
	"&copy;":   "©",
	"&bull;":   "•",
}

// decodeEntity decodes an HTML entity at the start of s, returning the
// decoded text and bytes consumed, or ("", 0) when s does not start
// with a recognized entity.
func decodeEntity(s string) (string, int) {
	limit := len(s)
	if limit > 12 {
		limit = 12
	}
	semi := strings.IndexByte(s[:limit], ';')
	if semi <= 0 {
		return "", 0
	}
	entity := s[:semi+1]
	if decoded, ok := namedEntities[entity]; ok {
		return decoded, len(entity)
	}
	// Numeric entities: &#123; or &#x7B;
	if len(entity) > 3 && entity[1] == '#' {
		inner := entity[2 : len(entity)-1]
		base := 10
		if len(inner) > 1 && (inner[0] == 'x' || inner[0] == 'X') {
			inner, base = inner[1:], 16
		}
		if cp, err := strconv.ParseInt(inner, base, 32); err == nil && cp > 0 && cp <= 0x10FFFF {
			return string(rune(cp)), len(entity)
		}
	}
	return "", 0
}

// collapseBlankLines trims each line and collapses runs of blank lines,
// keeping at most one.
func collapseBlankLines(text string) string {
	var out strings.Builder
	blank := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if out.Len() > 0 {
				blank++
			}
			continue
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
			if blank > 1 {
				out.WriteByte('\n')
			}
		}
		out.WriteString(line)
		blank = 0
	}
	return out.String()
}
