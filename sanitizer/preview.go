package sanitizer

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Bluemonday compiles p into an equivalent bluemonday policy. Script and style
// content is skipped by bluemonday itself and no on* attribute is ever listed.
//
// Bluemonday unwraps other disallowed elements and keeps their text, so it does
// not honour StripDisallowed. Run the tree scrub first when subtrees must go,
// as (*Sanitizer).Preview does.
func (p Policy) Bluemonday() *bluemonday.Policy {
	bm := bluemonday.NewPolicy()
	bm.AllowURLSchemes(p.AllowedURLSchemes...)
	bm.AllowRelativeURLs(true)
	bm.RequireParseableURLs(true)
	if p.AllowDataImages {
		bm.AllowDataURIImages()
	}

	for _, tag := range p.AllowedTags {
		tag = strings.ToLower(tag)
		if tag == "iframe" && !p.AllowVideo {
			continue
		}
		bm.AllowElements(tag)
		for _, attr := range p.AttributesFor(tag) {
			attr = strings.ToLower(attr)
			if strings.HasPrefix(attr, "on") {
				continue
			}
			switch {
			case tag == "iframe" && attr == "src":
				bm.AllowAttrs(attr).Matching(p.embedRegexp()).OnElements(tag)
			case tag == "iframe" && attr == "allow":
				bm.AllowAttrs(attr).Matching(p.allowFeatureRegexp()).OnElements(tag)
			default:
				bm.AllowAttrs(attr).OnElements(tag)
			}
		}
	}
	return bm
}

func (p Policy) embedRegexp() *regexp.Regexp {
	prefixes := make([]string, 0, len(p.EmbedOrigins))
	for _, o := range p.EmbedOrigins {
		prefixes = append(prefixes, regexp.QuoteMeta(o.Prefix))
	}
	if len(prefixes) == 0 {
		return regexp.MustCompile(`^\b$`)
	}
	return regexp.MustCompile(`(?i)^(?:` + strings.Join(prefixes, "|") + `)`)
}

func (p Policy) allowFeatureRegexp() *regexp.Regexp {
	features := make([]string, 0, len(p.IframeAllowFeatures))
	for _, f := range p.IframeAllowFeatures {
		features = append(features, regexp.QuoteMeta(f))
	}
	if len(features) == 0 {
		return regexp.MustCompile(`^$`)
	}
	return regexp.MustCompile(`(?i)^\s*(?:(?:` + strings.Join(features, "|") + `)\s*[;,]?\s*)+$`)
}
