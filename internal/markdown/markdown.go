// Package markdown renders the restricted markdown dialect used in chat
// replies into HTML that is safe to insert into a page.
//
// Supported: fenced code blocks, # to ### headings, horizontal rules,
// unordered and ordered lists, inline code, bold and italic. Anything else is
// shown as escaped text.
package markdown

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	fencePattern = regexp.MustCompile("(?s)```(\\w*)\\n?(.*?)```")

	h3Pattern = regexp.MustCompile(`^###\s+(.+)$`)
	h2Pattern = regexp.MustCompile(`^##\s+(.+)$`)
	h1Pattern = regexp.MustCompile(`^#\s+(.+)$`)

	ulPattern = regexp.MustCompile(`^[-*]\s+(.+)$`)
	olPattern = regexp.MustCompile(`^\d+\.\s+(.+)$`)

	// Span bodies stay on one line and never contain a tag, so a span cannot
	// cross a block boundary. Inline code placeholders are the one exception.
	inlineCodePattern = regexp.MustCompile("`([^`\\n<]+)`")
	boldPattern       = regexp.MustCompile(`\*\*((?:[^*\n<]|<inline-code-\d+>)+)\*\*`)
	italicPattern     = regexp.MustCompile(`\*((?:[^*\n<]|<inline-code-\d+>)+)\*`)
)

const lineBreak = "<br>"

// Placeholders contain a raw '<', which escaped user text never does, so they
// cannot collide with input.
func blockToken(i int) string  { return fmt.Sprintf("<code-block-%d>", i) }
func inlineToken(i int) string { return fmt.Sprintf("<inline-code-%d>", i) }

// Format converts text to HTML. It never fails; malformed markdown is
// rendered as literal text.
func Format(text string) string {
	text, blocks := extractCodeBlocks(text)

	text = renderBlocks(text)
	text = renderInline(text)
	text = strings.ReplaceAll(text, "\n", lineBreak)

	for i, block := range blocks {
		text = strings.Replace(text, blockToken(i), block, 1)
	}
	return text
}

// extractCodeBlocks escapes text, replacing every fenced block with a
// placeholder. Block bodies are rendered here and never see later stages.
func extractCodeBlocks(text string) (string, []string) {
	var (
		sb     strings.Builder
		blocks []string
		last   int
	)
	for _, m := range fencePattern.FindAllStringSubmatchIndex(text, -1) {
		sb.WriteString(html.EscapeString(text[last:m[0]]))
		code := strings.TrimSpace(text[m[4]:m[5]])
		sb.WriteString(blockToken(len(blocks)))
		blocks = append(blocks, "<pre><code>"+html.EscapeString(code)+"</code></pre>")
		last = m[1]
	}
	sb.WriteString(html.EscapeString(text[last:]))
	return sb.String(), blocks
}

type listKind int

const (
	noList listKind = iota
	unordered
	ordered
)

func (k listKind) tag() string {
	if k == ordered {
		return "ol"
	}
	return "ul"
}

type blockWriter struct {
	out   []string
	kind  listKind
	items []string
}

func (w *blockWriter) closeList() {
	if w.kind == noList {
		return
	}
	if len(w.items) > 0 {
		tag := w.kind.tag()
		w.out = append(w.out, "<"+tag+">"+strings.Join(w.items, "")+"</"+tag+">")
	}
	w.items = nil
	w.kind = noList
}

func (w *blockWriter) listItem(kind listKind, body string) {
	if w.kind != kind {
		w.closeList()
		w.kind = kind
	}
	w.items = append(w.items, "<li>"+body+"</li>")
}

func (w *blockWriter) emit(s string) {
	w.out = append(w.out, s)
}

func renderBlocks(text string) string {
	w := &blockWriter{}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == "---" || trimmed == "***" || trimmed == "___" {
			w.closeList()
			w.emit("<hr>")
			continue
		}

		if heading, ok := matchHeading(line); ok {
			w.closeList()
			w.emit(heading)
			continue
		}

		if m := ulPattern.FindStringSubmatch(line); m != nil {
			w.listItem(unordered, m[1])
			continue
		}
		if m := olPattern.FindStringSubmatch(line); m != nil {
			w.listItem(ordered, m[1])
			continue
		}

		w.closeList()

		if trimmed == "" {
			if n := len(w.out); n > 0 && w.out[n-1] != lineBreak {
				w.emit(lineBreak)
			}
			continue
		}

		w.emit(line)
	}
	w.closeList()

	return strings.Join(w.out, "\n")
}

func matchHeading(line string) (string, bool) {
	if m := h3Pattern.FindStringSubmatch(line); m != nil {
		return "<h3>" + m[1] + "</h3>", true
	}
	if m := h2Pattern.FindStringSubmatch(line); m != nil {
		return "<h2>" + m[1] + "</h2>", true
	}
	if m := h1Pattern.FindStringSubmatch(line); m != nil {
		return "<h1>" + m[1] + "</h1>", true
	}
	return "", false
}

// renderInline applies code, bold and italic spans in that order. Code span
// bodies are parked behind placeholders so emphasis does not reach into them.
func renderInline(text string) string {
	var spans []string
	text = inlineCodePattern.ReplaceAllStringFunc(text, func(m string) string {
		spans = append(spans, "<code>"+m[1:len(m)-1]+"</code>")
		return inlineToken(len(spans) - 1)
	})

	text = boldPattern.ReplaceAllString(text, "<strong>$1</strong>")
	text = italicPattern.ReplaceAllString(text, "<em>$1</em>")

	for i, span := range spans {
		text = strings.Replace(text, inlineToken(i), span, 1)
	}
	return text
}
