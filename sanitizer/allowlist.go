package sanitizer

import (
	"regexp"
	"strings"
)

var (
	// step 2: on<word>= in double-quoted, single-quoted and unquoted form
	eventHandler = regexp.MustCompile(`(?i)\bon[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]*)`)
	// step 3
	javascriptScheme = regexp.MustCompile(`(?i)javascript:`)
)

// allowlist is a Policy compiled into lookup sets.
type allowlist struct {
	policy   Policy
	tags     map[string]struct{}
	attrs    map[string]map[string]struct{}
	schemes  map[string]struct{}
	features map[string]struct{}
}

func compile(p Policy) *allowlist {
	a := &allowlist{
		policy:   p,
		tags:     toSet(p.AllowedTags),
		attrs:    make(map[string]map[string]struct{}, len(p.AllowedAttributes)),
		schemes:  toSet(p.AllowedURLSchemes),
		features: toSet(p.IframeAllowFeatures),
	}
	for tag, names := range p.AllowedAttributes {
		a.attrs[strings.ToLower(tag)] = toSet(names)
	}
	return a
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, v := range list {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		m[v] = struct{}{}
	}
	return m
}

func (a *allowlist) tagAllowed(tag string) bool {
	if tag == "iframe" && !a.policy.AllowVideo {
		return false
	}
	_, ok := a.tags[tag]
	return ok
}

func (a *allowlist) attrAllowed(tag, attr string) bool {
	if strings.HasPrefix(attr, "on") {
		return false
	}
	set, ok := a.attrs[tag]
	if !ok {
		set = a.attrs[AnyTag]
	}
	_, ok = set[attr]
	return ok
}

func isURLAttr(attr string) bool {
	switch attr {
	case "href", "src", "poster":
		return true
	}
	return false
}

// urlAllowed applies the scheme allow-list. Relative URLs pass; protocol-relative
// ones do not. data: is only accepted as an image source.
func (a *allowlist) urlAllowed(tag, attr, raw string) bool {
	v := strings.ToLower(strings.Map(func(r rune) rune {
		if r <= 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, raw))
	if v == "" {
		return true
	}
	if strings.HasPrefix(v, "javascript:") || strings.HasPrefix(v, "vbscript:") {
		return false
	}
	if strings.HasPrefix(v, "data:") {
		return tag == "img" && attr == "src" && a.policy.AllowDataImages && strings.HasPrefix(v, "data:image/")
	}
	if strings.HasPrefix(v, "//") || strings.HasPrefix(v, `\`) {
		return false
	}
	i := strings.IndexAny(v, ":/?#")
	if i <= 0 || v[i] != ':' {
		return true
	}
	_, ok := a.schemes[v[:i]]
	return ok
}

// filterAllow intersects an iframe allow= value with the curated features.
func (a *allowlist) filterAllow(v string) string {
	kept := make([]string, 0, len(a.features))
	seen := make(map[string]struct{}, len(a.features))
	for _, tok := range strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == ',' }) {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if _, ok := a.features[tok]; !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		kept = append(kept, tok)
	}
	return strings.Join(kept, "; ")
}

// stripInjections removes on<word>= assignments and javascript: until neither remains.
func stripInjections(s string) string {
	for {
		next := javascriptScheme.ReplaceAllString(eventHandler.ReplaceAllString(s, ""), "")
		if next == s {
			return s
		}
		s = next
	}
}
