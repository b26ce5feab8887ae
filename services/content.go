// Package services holds the application logic shared by the HTTP handlers and the CLI.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cppla/folio/config"
	"github.com/cppla/folio/metrics"
	"github.com/cppla/folio/models"
	"github.com/cppla/folio/sanitizer"
	"github.com/cppla/folio/utils"
)

// ErrEmptyContent is returned when nothing is left after sanitization.
var ErrEmptyContent = errors.New("content is empty after sanitization")

const (
	// MaxCommentRunes caps stored comments.
	MaxCommentRunes = 5000
	// MaxBioRunes caps stored profile bios.
	MaxBioRunes = 500

	postHTMLPrefix = "cache:post:html:"
	renderCacheTTL = time.Hour
)

// ContentService turns user input into the HTML the site stores and serves.
type ContentService struct {
	comments *sanitizer.Sanitizer
	plain    *sanitizer.Sanitizer
	notice   string
}

// NewContentService builds the sanitizers from the sanitizer and site settings.
func NewContentService(cfg config.SanitizerSection, site config.SiteSection) *ContentService {
	opts := []sanitizer.Option{
		sanitizer.WithMaxInputLength(cfg.MaxInputLength),
		sanitizer.WithMarkdownEngine(sanitizer.ParseMarkdownEngine(cfg.MarkdownEngine)),
	}
	if len(cfg.AllowedURLSchemes) > 0 {
		opts = append(opts, sanitizer.WithURLSchemes(cfg.AllowedURLSchemes...))
	}
	build := func(allowVideo bool) *sanitizer.Sanitizer {
		return sanitizer.New(append([]sanitizer.Option{sanitizer.WithAllowVideo(allowVideo)}, opts...)...)
	}
	return &ContentService{
		comments: build(cfg.AllowVideoInComments),
		plain:    build(false),
		notice:   site.NoticeMarkdown,
	}
}

// Sanitizer returns the sanitizer used for comments and post bodies.
func (s *ContentService) Sanitizer() *sanitizer.Sanitizer {
	return s.comments
}

// CleanComment sanitizes a comment body and truncates it to MaxCommentRunes.
func (s *ContentService) CleanComment(body string) (string, error) {
	out, err := s.run("inline", body, s.comments.Inline)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(s.truncate(s.comments, out, MaxCommentRunes))
	if out == "" {
		return "", ErrEmptyContent
	}
	return out, nil
}

// CleanBio sanitizes a profile bio without embeds. An empty bio is allowed.
func (s *ContentService) CleanBio(bio string) (string, error) {
	out, err := s.run("inline", strings.TrimSpace(bio), s.plain.Inline)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s.truncate(s.plain, out, MaxBioRunes)), nil
}

// RenderPost returns the sanitized HTML of a post body. Results are cached in
// Redis keyed by id and update time; Redis failures fall back to rendering.
func (s *ContentService) RenderPost(ctx context.Context, post models.Post) (string, error) {
	key := postHTMLKey(post)
	if b, ok := utils.CacheGetBytes(ctx, key); ok {
		metrics.RecordCacheLookup(true)
		return string(b), nil
	}
	metrics.RecordCacheLookup(false)

	out, err := s.RenderMarkdown(post.Body)
	if err != nil {
		return "", err
	}
	utils.CacheSetBytes(ctx, key, []byte(out), renderCacheTTL)
	return out, nil
}

// RenderMarkdown converts and sanitizes Markdown without caching.
func (s *ContentService) RenderMarkdown(src string) (string, error) {
	return s.run("markdown", src, s.comments.Markdown)
}

// Preview renders Markdown the way the editor preview shows it.
func (s *ContentService) Preview(src string) (string, error) {
	return s.run("preview", src, s.comments.Preview)
}

// InvalidatePost drops every cached rendering of the post.
func (s *ContentService) InvalidatePost(ctx context.Context, id uint) {
	utils.InvalidateByPrefix(ctx, fmt.Sprintf("%s%d:", postHTMLPrefix, id))
}

// RenderNotice renders the configured site notice.
func (s *ContentService) RenderNotice() (string, error) {
	if strings.TrimSpace(s.notice) == "" {
		return "", nil
	}
	return s.RenderMarkdown(s.notice)
}

func (s *ContentService) run(mode, input string, fn func(string) (string, error)) (string, error) {
	start := time.Now()
	out, err := fn(input)
	metrics.RecordSanitize(mode, len(input), time.Since(start).Seconds(), err)
	if err != nil {
		utils.Sugar.Debugw("sanitize rejected input", "mode", mode, "bytes", len(input), "err", err)
	}
	return out, err
}

func postHTMLKey(p models.Post) string {
	return fmt.Sprintf("%s%d:%d", postHTMLPrefix, p.ID, p.UpdatedAt.Unix())
}

// truncate cuts sanitized HTML to at most n runes. The cut never lands inside
// a tag or entity, and the result is scrubbed again so an element left open at
// the boundary cannot leak into the page. Scrubbing closes a cut iframe, so the
// cut shrinks until the scrubbed text fits.
func (s *ContentService) truncate(san *sanitizer.Sanitizer, html string, n int) string {
	if utf8.RuneCountInString(html) <= n {
		return html
	}
	for limit := n; limit > 0; {
		out, err := san.Inline(safeCut(truncateRunes(html, limit)))
		if err != nil {
			return ""
		}
		size := utf8.RuneCountInString(out)
		if size <= n {
			return out
		}
		limit -= size - n
	}
	return ""
}

// safeCut drops a trailing partial tag or character reference.
func safeCut(s string) string {
	if i := strings.LastIndexByte(s, '<'); i >= 0 && !strings.Contains(s[i:], ">") {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '&'); i >= 0 && !strings.Contains(s[i:], ";") {
		s = s[:i]
	}
	return s
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	return string(rs[:n])
}
