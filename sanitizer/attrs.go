package sanitizer

import (
	"strings"

	"golang.org/x/net/html"
)

// filterAttrs keeps the attributes tag may carry. With stripText set the values
// also go through stripInjections, as the inline scrubber requires.
func (a *allowlist) filterAttrs(tag string, attrs []html.Attribute, stripText bool) []html.Attribute {
	out := make([]html.Attribute, 0, len(attrs))
	seen := make(map[string]struct{}, len(attrs))
	for _, at := range attrs {
		if at.Namespace != "" {
			continue
		}
		key := strings.ToLower(at.Key)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if !a.attrAllowed(tag, key) {
			continue
		}
		val := at.Val
		if stripText {
			val = stripInjections(val)
		}
		if isURLAttr(key) && !a.urlAllowed(tag, key, val) {
			continue
		}
		if tag == "iframe" && key == "allow" {
			if val = a.filterAllow(val); val == "" {
				continue
			}
		}
		out = append(out, html.Attribute{Key: key, Val: val})
	}
	if tag == "iframe" {
		out = a.decorateIframe(out)
	}
	return out
}

func (a *allowlist) decorateIframe(attrs []html.Attribute) []html.Attribute {
	if v := a.policy.IframeLoading; v != "" {
		attrs = setAttr(attrs, "loading", v, true)
	}
	if v := a.policy.IframeReferrerPolicy; v != "" {
		attrs = setAttr(attrs, "referrerpolicy", v, false)
	}
	return attrs
}

func setAttr(attrs []html.Attribute, key, val string, overwrite bool) []html.Attribute {
	for i := range attrs {
		if attrs[i].Key == key {
			if overwrite {
				attrs[i].Val = val
			}
			return attrs
		}
	}
	return append(attrs, html.Attribute{Key: key, Val: val})
}

func getAttr(attrs []html.Attribute, key string) string {
	for _, at := range attrs {
		if at.Key == key {
			return at.Val
		}
	}
	return ""
}
