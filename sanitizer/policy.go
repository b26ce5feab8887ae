package sanitizer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// AnyTag is the AllowedAttributes key used for tags that have no entry of their own.
const AnyTag = "*"

// EmbedOrigin is one allow-listed iframe source prefix.
type EmbedOrigin struct {
	Provider string `json:"provider" yaml:"provider"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// Policy describes what survives sanitization. It is a plain value: copy it,
// change fields, and hand it to New. Nothing in this package mutates a Policy
// after it was passed in.
type Policy struct {
	// AllowedTags lists the element names that may survive. Matching is case-insensitive.
	AllowedTags []string `json:"allowed_tags"`
	// AllowedAttributes maps a tag to the attributes it may keep. Tags without an
	// entry fall back to the AnyTag entry, if any.
	AllowedAttributes map[string][]string `json:"allowed_attributes"`
	// AllowedURLSchemes lists the schemes permitted in href, src and poster.
	// Relative URLs are always permitted. Default: https.
	AllowedURLSchemes []string `json:"allowed_url_schemes"`
	// EmbedOrigins is the ordered list of prefixes an iframe src must start with.
	EmbedOrigins []EmbedOrigin `json:"embed_origins"`
	// IframeAllowFeatures is the curated set of tokens kept in an iframe's allow attribute.
	IframeAllowFeatures []string `json:"iframe_allow_features"`
	// AllowVideo permits iframes at all. When false every iframe is removed.
	AllowVideo bool `json:"allow_video"`
	// AllowDataImages permits data:image/ URIs on img src.
	AllowDataImages bool `json:"allow_data_images"`
	// StripDisallowed removes a disallowed element together with its subtree.
	// When false the element is unwrapped and its text kept.
	StripDisallowed bool `json:"strip_disallowed"`
	// IframeLoading, when set, is forced onto every kept iframe.
	IframeLoading string `json:"iframe_loading,omitempty"`
	// IframeReferrerPolicy, when set, is added to kept iframes lacking one.
	IframeReferrerPolicy string `json:"iframe_referrer_policy,omitempty"`
	// MaxInputLength bounds the input in characters. Zero means unbounded.
	MaxInputLength int `json:"max_input_length,omitempty"`
}

// DefaultEmbedOrigins returns the YouTube, Vimeo and Spotify embed prefixes.
func DefaultEmbedOrigins() []EmbedOrigin {
	return []EmbedOrigin{
		{Provider: ProviderYouTube, Prefix: "https://www.youtube.com/"},
		{Provider: ProviderYouTube, Prefix: "https://youtu.be/"},
		{Provider: ProviderVimeo, Prefix: "https://player.vimeo.com/"},
		{Provider: ProviderSpotify, Prefix: "https://open.spotify.com/embed/"},
	}
}

// DefaultIframeAllowFeatures returns the curated iframe allow= tokens.
func DefaultIframeAllowFeatures() []string {
	return []string{
		"accelerometer",
		"autoplay",
		"clipboard-write",
		"encrypted-media",
		"gyroscope",
		"picture-in-picture",
	}
}

// InlinePolicy is the policy for short rich-text fields such as comments.
// Iframes are off until AllowVideo is set.
func InlinePolicy() Policy {
	return Policy{
		AllowedTags: []string{
			"a", "b", "strong", "i", "em", "u", "s", "code", "pre",
			"p", "br", "ul", "ol", "li", "blockquote", "iframe",
		},
		AllowedAttributes: map[string][]string{
			"a":      {"href", "title"},
			"iframe": {"src", "width", "height", "allow", "allowfullscreen", "frameborder", "title"},
		},
		AllowedURLSchemes:   []string{"https"},
		EmbedOrigins:        DefaultEmbedOrigins(),
		IframeAllowFeatures: DefaultIframeAllowFeatures(),
	}
}

// RichPolicy is the policy applied to rendered Markdown and stored HTML.
func RichPolicy() Policy {
	return Policy{
		AllowedTags: []string{
			"h1", "h2", "h3", "h4", "h5", "h6",
			"p", "br", "hr", "div", "span",
			"b", "strong", "i", "em", "u", "s", "del", "sup", "sub",
			"code", "pre", "blockquote",
			"ul", "ol", "li",
			"a", "img", "figure", "figcaption",
			"table", "thead", "tbody", "tfoot", "tr", "th", "td",
			"iframe",
		},
		AllowedAttributes: map[string][]string{
			"img":    {"src", "alt", "title", "width", "height", "loading"},
			"iframe": {"src", "allow", "allowfullscreen", "frameborder", "loading", "referrerpolicy"},
			"a":      {"href", "title"},
			AnyTag:   {"class", "id"},
		},
		AllowedURLSchemes:    []string{"https"},
		EmbedOrigins:         DefaultEmbedOrigins(),
		IframeAllowFeatures:  DefaultIframeAllowFeatures(),
		AllowVideo:           true,
		AllowDataImages:      true,
		StripDisallowed:      true,
		IframeLoading:        "lazy",
		IframeReferrerPolicy: "no-referrer",
	}
}

// AllowsEmbed reports whether src starts with one of the embed origins.
func (p Policy) AllowsEmbed(src string) bool {
	src = strings.ToLower(strings.TrimSpace(src))
	if src == "" {
		return false
	}
	for _, o := range p.EmbedOrigins {
		if strings.HasPrefix(src, strings.ToLower(o.Prefix)) {
			return true
		}
	}
	return false
}

// AttributesFor returns the attributes tag may keep.
func (p Policy) AttributesFor(tag string) []string {
	tag = strings.ToLower(tag)
	if attrs, ok := p.AllowedAttributes[tag]; ok {
		return attrs
	}
	return p.AllowedAttributes[AnyTag]
}

// CheckLength returns ErrInputTooLarge when input exceeds MaxInputLength.
func (p Policy) CheckLength(input string) error {
	if p.MaxInputLength <= 0 || len(input) <= p.MaxInputLength {
		return nil
	}
	if n := utf8.RuneCountInString(input); n > p.MaxInputLength {
		return fmt.Errorf("%w: %d characters, limit %d", ErrInputTooLarge, n, p.MaxInputLength)
	}
	return nil
}

// PolicyDocument is the JSON shape served to browser-side previews so they
// apply the same lists as the server.
type PolicyDocument struct {
	AllowedTags         []string            `json:"allowed_tags"`
	AllowedAttributes   map[string][]string `json:"allowed_attributes"`
	AllowedURLSchemes   []string            `json:"allowed_url_schemes"`
	EmbedOrigins        []EmbedOrigin       `json:"embed_origins"`
	IframeAllowFeatures []string            `json:"iframe_allow_features"`
	ForbiddenTags       []string            `json:"forbidden_tags"`
	ForbiddenAttributes []string            `json:"forbidden_attributes"`
	AllowDataImages     bool                `json:"allow_data_images"`
}

// Document returns the browser-facing view of p.
func (p Policy) Document() PolicyDocument {
	tags := make([]string, 0, len(p.AllowedTags))
	for _, t := range p.AllowedTags {
		if strings.EqualFold(t, "iframe") && !p.AllowVideo {
			continue
		}
		tags = append(tags, strings.ToLower(t))
	}
	attrs := make(map[string][]string, len(p.AllowedAttributes))
	for k, v := range p.AllowedAttributes {
		attrs[k] = append([]string(nil), v...)
	}
	return PolicyDocument{
		AllowedTags:         tags,
		AllowedAttributes:   attrs,
		AllowedURLSchemes:   append([]string(nil), p.AllowedURLSchemes...),
		EmbedOrigins:        append([]EmbedOrigin(nil), p.EmbedOrigins...),
		IframeAllowFeatures: append([]string(nil), p.IframeAllowFeatures...),
		ForbiddenTags:       []string{"script", "style"},
		ForbiddenAttributes: []string{"on*", "onerror", "onclick", "onload"},
		AllowDataImages:     p.AllowDataImages,
	}
}
