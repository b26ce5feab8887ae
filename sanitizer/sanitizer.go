package sanitizer

import (
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// Sanitizer applies an inline policy and a rich policy. Build it once with New
// and share it; it holds no mutable state.
type Sanitizer struct {
	inline  *allowlist
	rich    *allowlist
	engine  MarkdownEngine
	md      goldmark.Markdown
	preview *bluemonday.Policy
}

type options struct {
	inline Policy
	rich   Policy
	engine MarkdownEngine
}

// Option customises New.
type Option func(*options)

// WithInlinePolicy replaces the inline policy.
func WithInlinePolicy(p Policy) Option {
	return func(o *options) { o.inline = p }
}

// WithRichPolicy replaces the policy used by Markdown, HTML and Preview.
func WithRichPolicy(p Policy) Option {
	return func(o *options) { o.rich = p }
}

// WithAllowVideo toggles iframes for the inline policy.
func WithAllowVideo(allow bool) Option {
	return func(o *options) { o.inline.AllowVideo = allow }
}

// WithMaxInputLength bounds inputs of both policies; zero disables the check.
func WithMaxInputLength(n int) Option {
	return func(o *options) {
		o.inline.MaxInputLength = n
		o.rich.MaxInputLength = n
	}
}

// WithURLSchemes replaces the allowed URL schemes of both policies.
func WithURLSchemes(schemes ...string) Option {
	return func(o *options) {
		o.inline.AllowedURLSchemes = append([]string(nil), schemes...)
		o.rich.AllowedURLSchemes = append([]string(nil), schemes...)
	}
}

// WithMarkdownEngine selects the Markdown converter.
func WithMarkdownEngine(e MarkdownEngine) Option {
	return func(o *options) { o.engine = e }
}

// New builds a Sanitizer from InlinePolicy and RichPolicy plus opts.
func New(opts ...Option) *Sanitizer {
	o := options{inline: InlinePolicy(), rich: RichPolicy(), engine: EngineBasic}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Sanitizer{
		inline:  compile(o.inline),
		rich:    compile(o.rich),
		engine:  o.engine,
		preview: o.rich.Bluemonday(),
	}
	if s.engine == EngineCommonMark {
		s.md = newCommonMark()
	}
	return s
}

// InlinePolicy returns the inline policy in effect.
func (s *Sanitizer) InlinePolicy() Policy { return s.inline.policy }

// RichPolicy returns the rich policy in effect.
func (s *Sanitizer) RichPolicy() Policy { return s.rich.policy }

// Inline scrubs a short HTML fragment. The only error is ErrInputTooLarge.
func (s *Sanitizer) Inline(input string) (string, error) {
	if err := s.inline.policy.CheckLength(input); err != nil {
		return "", err
	}
	return s.inline.scrubTokens(input), nil
}

// Markdown converts src to HTML and scrubs the result with the rich policy.
func (s *Sanitizer) Markdown(src string) (string, error) {
	if err := s.rich.policy.CheckLength(src); err != nil {
		return "", err
	}
	return s.scrubRich(s.toHTML(src)), nil
}

// HTML scrubs already-rendered HTML with the rich policy.
func (s *Sanitizer) HTML(src string) (string, error) {
	if err := s.rich.policy.CheckLength(src); err != nil {
		return "", err
	}
	return s.scrubRich(src), nil
}

// Preview converts src like Markdown does, prunes it with the rich policy and
// then runs the bluemonday rendition of that policy, matching what the editor
// preview shows. The prune comes first so subtrees the published page drops
// are dropped here too instead of being unwrapped by bluemonday.
func (s *Sanitizer) Preview(src string) (string, error) {
	if err := s.rich.policy.CheckLength(src); err != nil {
		return "", err
	}
	return s.preview.Sanitize(s.scrubRich(s.toHTML(src))), nil
}

func (s *Sanitizer) toHTML(src string) string {
	if s.md != nil {
		return commonMarkToHTML(s.md, src)
	}
	return basicToHTML(src)
}

// scrubRich never returns unscrubbed input: if the tree cannot be built the
// streaming scrubber runs with the same policy.
func (s *Sanitizer) scrubRich(src string) string {
	out, err := s.rich.scrubTree(src)
	if err != nil {
		return s.rich.scrubTokens(src)
	}
	return out
}

// SanitizeInline scrubs input with a fresh InlinePolicy.
func SanitizeInline(input string, allowVideo bool) string {
	p := InlinePolicy()
	p.AllowVideo = allowVideo
	return compile(p).scrubTokens(input)
}

// SanitizeMarkdown converts and scrubs src with a fresh RichPolicy.
func SanitizeMarkdown(src string) string {
	return SanitizeHTML(basicToHTML(src))
}

// SanitizeHTML scrubs rendered HTML with a fresh RichPolicy.
func SanitizeHTML(src string) string {
	a := compile(RichPolicy())
	out, err := a.scrubTree(src)
	if err != nil {
		return a.scrubTokens(src)
	}
	return out
}
