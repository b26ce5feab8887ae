package sanitizer

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// scrubTree parses src as a body fragment, prunes it against the allow-list
// and returns the serialized inner HTML.
func (a *allowlist) scrubTree(src string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	a.scrubChildren(body)

	var b strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// scrubChildren walks parent's children depth-first. Disallowed elements are
// removed with their subtree, or unwrapped when the policy keeps their text.
func (a *allowlist) scrubChildren(parent *html.Node) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		switch a.verdict(c) {
		case keepNode:
			if c.Type == html.ElementNode && c.Data != "iframe" {
				a.scrubChildren(c)
			}
		case unwrapNode:
			a.scrubChildren(c)
			for gc := c.FirstChild; gc != nil; gc = c.FirstChild {
				c.RemoveChild(gc)
				parent.InsertBefore(gc, c)
			}
			parent.RemoveChild(c)
		default:
			parent.RemoveChild(c)
		}
		c = next
	}
}

type nodeVerdict int

const (
	removeNode nodeVerdict = iota
	keepNode
	unwrapNode
)

// verdict decides n's fate and, for kept elements, filters its attributes.
func (a *allowlist) verdict(n *html.Node) nodeVerdict {
	switch n.Type {
	case html.TextNode:
		return keepNode
	case html.ElementNode:
	default:
		return removeNode
	}

	tag := strings.ToLower(n.Data)
	if n.Namespace != "" || !a.tagAllowed(tag) {
		switch {
		case a.policy.StripDisallowed, tag == "script", tag == "style", tag == "iframe":
			return removeNode
		default:
			return unwrapNode
		}
	}
	n.Attr = a.filterAttrs(tag, n.Attr, false)

	if tag == "iframe" {
		if !a.policy.AllowsEmbed(getAttr(n.Attr, "src")) {
			return removeNode
		}
		for c := n.FirstChild; c != nil; c = n.FirstChild {
			n.RemoveChild(c)
		}
	}
	return keepNode
}
