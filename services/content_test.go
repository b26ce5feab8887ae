package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/folio/config"
	"github.com/cppla/folio/models"
	"github.com/cppla/folio/sanitizer"
	"github.com/cppla/folio/utils"
)

func newService(t *testing.T, mutate func(*config.SanitizerSection)) *ContentService {
	t.Helper()
	c := config.Get()
	if mutate != nil {
		mutate(&c.Sanitizer)
	}
	c.Site.NoticeMarkdown = "## Maintenance\n**Tonight**"
	return NewContentService(c.Sanitizer, c.Site)
}

func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	utils.SetRedis(rc)
	t.Cleanup(func() {
		utils.SetRedis(nil)
		_ = rc.Close()
	})
	return mr
}

func TestCleanComment(t *testing.T) {
	svc := newService(t, nil)

	out, err := svc.CleanComment(`<p onclick="x()">hi <script>evil()</script><b>there</b></p>`)
	require.NoError(t, err)
	assert.Equal(t, `<p>hi <b>there</b></p>`, out)

	_, err = svc.CleanComment(`<script>only()</script>   `)
	assert.ErrorIs(t, err, ErrEmptyContent)

	out, err = svc.CleanComment(strings.Repeat("a", MaxCommentRunes+100))
	require.NoError(t, err)
	assert.Equal(t, MaxCommentRunes, utf8.RuneCountInString(out))
}

func TestCleanComment_VideoFollowsConfig(t *testing.T) {
	iframe := `<iframe src="https://www.youtube.com/embed/abc123"></iframe>`

	off := newService(t, func(s *config.SanitizerSection) { s.AllowVideoInComments = false })
	_, err := off.CleanComment(iframe)
	assert.ErrorIs(t, err, ErrEmptyContent)

	on := newService(t, func(s *config.SanitizerSection) { s.AllowVideoInComments = true })
	out, err := on.CleanComment(iframe)
	require.NoError(t, err)
	assert.Contains(t, out, "<iframe")
}

func TestCleanComment_TruncationRescrubs(t *testing.T) {
	svc := newService(t, nil)
	body := strings.Repeat("x", MaxCommentRunes-10) + `<a href="https://example.com/a/very/long/path">link</a>`
	out, err := svc.CleanComment(body)
	require.NoError(t, err)
	assert.NotContains(t, out, `href="https://exa`)
	assert.False(t, strings.HasSuffix(out, `"`))
	assert.LessOrEqual(t, utf8.RuneCountInString(out), MaxCommentRunes)
}

func TestCleanComment_TruncationKeepsEntitiesWhole(t *testing.T) {
	svc := newService(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"ampersands at boundary", strings.Repeat("a", MaxCommentRunes-2) + "&&&&&&&&", strings.Repeat("a", MaxCommentRunes-2)},
		{"one entity fits", strings.Repeat("a", MaxCommentRunes-5) + "&&&", strings.Repeat("a", MaxCommentRunes-5) + "&amp;"},
		{"less-than at boundary", strings.Repeat("b", MaxCommentRunes-1) + "<<", strings.Repeat("b", MaxCommentRunes-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := svc.CleanComment(tt.body)
			require.NoError(t, err)
			assert.LessOrEqual(t, utf8.RuneCountInString(out), MaxCommentRunes)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCleanComment_TruncationClosesIframe(t *testing.T) {
	svc := newService(t, func(s *config.SanitizerSection) { s.AllowVideoInComments = true })
	// the iframe start tag ends right at the limit, so the rescrub appends </iframe>
	body := strings.Repeat("c", MaxCommentRunes-51) + `<iframe src="https://www.youtube.com/embed/abc123"></iframe>`
	out, err := svc.CleanComment(body)
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), MaxCommentRunes)
	assert.Equal(t, strings.Count(out, "<iframe"), strings.Count(out, "</iframe>"))
	assert.True(t, strings.HasPrefix(out, strings.Repeat("c", MaxCommentRunes-51)))
}

func TestSafeCut(t *testing.T) {
	assert.Equal(t, "ab", safeCut("ab&am"))
	assert.Equal(t, "ab&amp;", safeCut("ab&amp;"))
	assert.Equal(t, "ab", safeCut(`ab<a href="x`))
	assert.Equal(t, "ab<b>c", safeCut("ab<b>c"))
	assert.Equal(t, "ab", safeCut(`ab<a title="&amp`))
}

func TestCleanComment_TooLarge(t *testing.T) {
	svc := newService(t, func(s *config.SanitizerSection) { s.MaxInputLength = 16 })
	_, err := svc.CleanComment(strings.Repeat("b", 17))
	assert.True(t, errors.Is(err, sanitizer.ErrInputTooLarge))
}

func TestCleanBio(t *testing.T) {
	svc := newService(t, func(s *config.SanitizerSection) { s.AllowVideoInComments = true })

	out, err := svc.CleanBio(`  I write <em>Go</em><iframe src="https://youtu.be/abc"></iframe>  `)
	require.NoError(t, err)
	assert.Equal(t, "I write <em>Go</em>", out)

	out, err = svc.CleanBio("")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = svc.CleanBio(strings.Repeat("é", MaxBioRunes*2))
	require.NoError(t, err)
	assert.Equal(t, MaxBioRunes, utf8.RuneCountInString(out))
}

func TestRenderPost_CachesByUpdateTime(t *testing.T) {
	mr := withRedis(t)
	svc := newService(t, nil)
	ctx := context.Background()

	post := models.Post{ID: 42, Body: "# Title\n<script>x</script>", UpdatedAt: time.Unix(1700000000, 0)}
	html, err := svc.RenderPost(ctx, post)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.NotContains(t, html, "<script")

	key := "cache:post:html:42:1700000000"
	require.True(t, mr.Exists(key))

	// a cached value is served as is
	require.NoError(t, mr.Set(key, "<p>cached</p>"))
	html, err = svc.RenderPost(ctx, post)
	require.NoError(t, err)
	assert.Equal(t, "<p>cached</p>", html)

	// a new update time misses the old entry
	post.UpdatedAt = post.UpdatedAt.Add(time.Second)
	html, err = svc.RenderPost(ctx, post)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Title</h1>")

	svc.InvalidatePost(ctx, 42)
	assert.False(t, mr.Exists(key))
	assert.False(t, mr.Exists("cache:post:html:42:1700000001"))
}

func TestRenderPost_InvalidateKeepsOtherPosts(t *testing.T) {
	mr := withRedis(t)
	svc := newService(t, nil)
	ctx := context.Background()

	_, err := svc.RenderPost(ctx, models.Post{ID: 4, Body: "four", UpdatedAt: time.Unix(1, 0)})
	require.NoError(t, err)
	_, err = svc.RenderPost(ctx, models.Post{ID: 42, Body: "forty-two", UpdatedAt: time.Unix(1, 0)})
	require.NoError(t, err)

	svc.InvalidatePost(ctx, 4)
	assert.False(t, mr.Exists("cache:post:html:4:1"))
	assert.True(t, mr.Exists("cache:post:html:42:1"))
}

func TestRenderPost_WithoutRedis(t *testing.T) {
	utils.SetRedis(nil)
	svc := newService(t, nil)
	html, err := svc.RenderPost(context.Background(), models.Post{ID: 1, Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", html)
}

func TestRenderNotice(t *testing.T) {
	svc := newService(t, nil)
	html, err := svc.RenderNotice()
	require.NoError(t, err)
	assert.Equal(t, "<h2>Maintenance</h2>\n<p><strong>Tonight</strong></p>", html)

	empty := NewContentService(config.Get().Sanitizer, config.SiteSection{})
	html, err = empty.RenderNotice()
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestPreview(t *testing.T) {
	svc := newService(t, nil)
	html, err := svc.Preview("**b** <iframe src=\"https://evil.com\"></iframe>")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>b</strong>")
	assert.NotContains(t, html, "evil.com")
}
