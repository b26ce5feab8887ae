package sanitizer

import (
	"strings"

	"golang.org/x/net/html"
)

// scrubTokens is the streaming scrubber behind Inline. It never builds a tree:
// tags are re-serialized one by one, text is buffered across removed tags so
// fragments split by markup are checked as a whole before being escaped.
func (a *allowlist) scrubTokens(input string) string {
	var (
		b       strings.Builder
		pending strings.Builder

		rawSkip   string // script, style or iframe whose raw content is swallowed
		keptFrame bool
		drop      string // disallowed element removed with its subtree
		dropDepth int
	)
	b.Grow(len(input))

	flush := func() {
		if pending.Len() == 0 {
			return
		}
		b.WriteString(html.EscapeString(stripInjections(pending.String())))
		pending.Reset()
	}

	z := html.NewTokenizer(strings.NewReader(input))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.TextToken:
			if rawSkip != "" || drop != "" {
				continue
			}
			pending.Write(z.Text())

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			tag := tok.Data
			if drop != "" {
				if tag == drop && tt == html.StartTagToken && !isVoid(tag) {
					dropDepth++
				}
				continue
			}
			switch tag {
			case "script", "style":
				rawSkip = tag
				continue
			case "iframe":
				attrs := a.filterAttrs(tag, tok.Attr, true)
				keep := a.tagAllowed(tag) && a.policy.AllowsEmbed(getAttr(attrs, "src"))
				if keep {
					flush()
					writeStartTag(&b, tag, attrs)
				}
				rawSkip, keptFrame = tag, keep
				continue
			}
			if !a.tagAllowed(tag) {
				if a.policy.StripDisallowed && tt == html.StartTagToken && !isVoid(tag) {
					drop, dropDepth = tag, 1
				}
				continue
			}
			flush()
			writeStartTag(&b, tag, a.filterAttrs(tag, tok.Attr, true))

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if drop != "" {
				if tag == drop {
					if dropDepth--; dropDepth == 0 {
						drop = ""
					}
				}
				continue
			}
			if rawSkip != "" {
				if tag == rawSkip {
					if keptFrame {
						b.WriteString("</iframe>")
						keptFrame = false
					}
					rawSkip = ""
				}
				continue
			}
			if tag == "iframe" || !a.tagAllowed(tag) || isVoid(tag) {
				continue
			}
			flush()
			b.WriteString("</" + tag + ">")
		}
	}
	flush()
	if keptFrame {
		b.WriteString("</iframe>")
	}
	return b.String()
}

func writeStartTag(b *strings.Builder, tag string, attrs []html.Attribute) {
	b.WriteByte('<')
	b.WriteString(tag)
	for _, at := range attrs {
		b.WriteByte(' ')
		b.WriteString(at.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(at.Val))
		b.WriteByte('"')
	}
	b.WriteByte('>')
}

func isVoid(tag string) bool {
	switch tag {
	case "area", "base", "br", "col", "embed", "hr", "img", "input",
		"link", "meta", "param", "source", "track", "wbr":
		return true
	}
	return false
}
