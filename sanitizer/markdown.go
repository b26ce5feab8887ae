package sanitizer

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// MarkdownEngine selects how Markdown is turned into HTML before scrubbing.
type MarkdownEngine string

const (
	// EngineBasic is the constrained subset: headings, bold, italic, inline code, paragraphs.
	EngineBasic MarkdownEngine = "basic"
	// EngineCommonMark renders CommonMark with GFM extensions through goldmark.
	EngineCommonMark MarkdownEngine = "commonmark"
)

// ParseMarkdownEngine maps a config value to an engine, defaulting to EngineBasic.
func ParseMarkdownEngine(s string) MarkdownEngine {
	switch MarkdownEngine(strings.ToLower(strings.TrimSpace(s))) {
	case EngineCommonMark:
		return EngineCommonMark
	default:
		return EngineBasic
	}
}

var (
	iframeBlock = regexp.MustCompile(`(?is)<iframe\b.*?</iframe\s*>`)

	// longest prefix first: "##" must never claim a "###" line
	headingRules = []struct {
		re  *regexp.Regexp
		tag string
	}{
		{regexp.MustCompile(`(?m)^######[ \t]+(.+?)[ \t]*$`), "h6"},
		{regexp.MustCompile(`(?m)^#####[ \t]+(.+?)[ \t]*$`), "h5"},
		{regexp.MustCompile(`(?m)^####[ \t]+(.+?)[ \t]*$`), "h4"},
		{regexp.MustCompile(`(?m)^###[ \t]+(.+?)[ \t]*$`), "h3"},
		{regexp.MustCompile(`(?m)^##[ \t]+(.+?)[ \t]*$`), "h2"},
		{regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t]*$`), "h1"},
	}
	boldRule   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRule = regexp.MustCompile(`_([^_\n]+)_`)
	codeRule   = regexp.MustCompile("`([^`\n]+)`")
	blockStart = regexp.MustCompile(`^<(?:h[1-6]|ul|ol|p|blockquote|table|pre)\b`)

	markdownEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// basicToHTML is Phase A for EngineBasic. Iframe blocks are swapped for
// placeholder tokens before escaping and restored after every other rule ran.
// Tokens are letters and digits only so no emphasis or code rule can touch them.
func basicToHTML(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")

	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	var embeds []string
	src = iframeBlock.ReplaceAllStringFunc(src, func(m string) string {
		token := fmt.Sprintf("EMBEDTOKEN%sN%dX", nonce, len(embeds))
		embeds = append(embeds, m)
		return token
	})

	out := markdownEscaper.Replace(src)
	for _, r := range headingRules {
		out = r.re.ReplaceAllString(out, "<"+r.tag+">$1</"+r.tag+">")
	}
	out = boldRule.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicRule.ReplaceAllString(out, "<em>$1</em>")
	out = codeRule.ReplaceAllString(out, "<code>$1</code>")

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || blockStart.MatchString(trimmed) || isPlaceholderLine(trimmed, nonce) {
			lines[i] = trimmed
			continue
		}
		lines[i] = "<p>" + trimmed + "</p>"
	}
	out = strings.Join(lines, "\n")

	for i, m := range embeds {
		out = strings.Replace(out, fmt.Sprintf("EMBEDTOKEN%sN%dX", nonce, i), m, 1)
	}
	return out
}

var placeholderToken = regexp.MustCompile(`EMBEDTOKEN[0-9a-f]+N[0-9]+X`)

func isPlaceholderLine(line, nonce string) bool {
	if !strings.Contains(line, "EMBEDTOKEN"+nonce) {
		return false
	}
	return strings.TrimSpace(placeholderToken.ReplaceAllString(line, "")) == ""
}

func newCommonMark() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			// raw HTML passes through here; the tree scrub runs afterwards
			gmhtml.WithUnsafe(),
		),
	)
}

// commonMarkToHTML is Phase A for EngineCommonMark.
func commonMarkToHTML(md goldmark.Markdown, src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return basicToHTML(src)
	}
	return buf.String()
}
