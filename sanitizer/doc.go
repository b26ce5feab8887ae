// Package sanitizer turns untrusted rich text into HTML that is safe to render
// without further escaping.
//
// All surfaces are driven by a single Policy value:
//
//   - Inline scrubs short HTML fragments such as comment bodies. Disallowed tags
//     are unwrapped so their text survives, script and style blocks disappear
//     with their content, and iframes survive only for allow-listed embed origins.
//   - Markdown converts a constrained Markdown subset to HTML and then prunes the
//     resulting tree against the rich policy. Iframe blocks written inline in the
//     Markdown source are carried through the conversion untouched and validated
//     afterwards.
//   - HTML runs only the tree pruning step on HTML that is already rendered.
//   - Preview compiles the same policy into a bluemonday policy for live editor
//     previews.
//
// The embed allow-list used by the scrubbers and the URL parsers used by the
// editor toolbar (ParseYouTubeID, ParseVimeoID, ParseSpotify) are derived from
// the same EmbedOrigin list, so a URL the toolbar can turn into an iframe is
// always an iframe the scrubbers keep.
//
// A Sanitizer is immutable after New and safe for concurrent use.
//
// Basic usage:
//
//	s := sanitizer.New(sanitizer.WithAllowVideo(true))
//	clean, err := s.Inline(body)
//	if errors.Is(err, sanitizer.ErrInputTooLarge) {
//		// reject the request
//	}
package sanitizer
