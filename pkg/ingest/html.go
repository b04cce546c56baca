package ingest

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// skipElements are HTML elements whose text content is boilerplate rather
// than document content.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"head":     true,
	"nav":      true,
	"footer":   true,
	"form":     true,
}

// blockElements force a paragraph break in the extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "br": true, "blockquote": true, "pre": true,
	"table": true, "ul": true, "ol": true,
}

// extractHTMLText tokenizes an HTML document and returns its <title> and
// readable body text with collapsed whitespace and paragraph breaks at
// block boundaries. Malformed HTML is handled by the tokenizer's error
// recovery; extraction stops at EOF.
func extractHTMLText(r io.Reader) (title, text string) {
	tokenizer := html.NewTokenizer(r)

	var sb strings.Builder
	var skipDepth int
	var inTitle bool

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return title, collapseText(sb.String())

		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "title" {
				inTitle = true
			}
			if skipElements[tag] {
				skipDepth++
			}
			if blockElements[tag] {
				sb.WriteString("\n\n")
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "title" {
				inTitle = false
			}
			if skipElements[tag] && skipDepth > 0 {
				skipDepth--
			}
			if blockElements[tag] {
				sb.WriteString("\n\n")
			}

		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if blockElements[string(name)] {
				sb.WriteString("\n\n")
			}

		case html.TextToken:
			raw := string(tokenizer.Text())
			if inTitle {
				if t := strings.TrimSpace(raw); t != "" && title == "" {
					title = t
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			sb.WriteString(raw)
		}
	}
}

// collapseText normalizes runs of whitespace: spaces and tabs collapse to
// one space, three or more newlines collapse to a paragraph break.
func collapseText(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if !blank {
				out = append(out, "")
				blank = true
			}
			continue
		}
		out = append(out, strings.Join(fields, " "))
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
