package sanitizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMarkdown_Headings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"h6", "###### H6", "<h6>H6</h6>"},
		{"h5", "##### Five", "<h5>Five</h5>"},
		{"h2", "## Two", "<h2>Two</h2>"},
		{"h1 after h3", "### Three\n# One", "<h3>Three</h3>\n<h1>One</h1>"},
		{"no space is text", "#hashtag", "<p>#hashtag</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeMarkdown(tt.src))
		})
	}
}

func TestSanitizeMarkdown_Emphasis(t *testing.T) {
	got := SanitizeMarkdown("**bold** and _it_ and `code`")
	assert.Equal(t, "<p><strong>bold</strong> and <em>it</em> and <code>code</code></p>", got)
}

func TestSanitizeMarkdown_EscapesRawHTML(t *testing.T) {
	got := SanitizeMarkdown("<script>alert(1)</script>\n<img src=x onerror=alert(1)>")
	assert.NotContains(t, got, "<script")
	assert.NotContains(t, got, "<img")
	assert.Contains(t, got, "&lt;script&gt;")
}

func TestSanitizeMarkdown_Iframes(t *testing.T) {
	t.Run("allowed iframe survives with decorations", func(t *testing.T) {
		src := "Intro\n<iframe src=\"https://www.youtube.com/embed/abc_def_123\" allow=\"autoplay; camera\"></iframe>\nOutro"
		got := SanitizeMarkdown(src)
		assert.Contains(t, got, "<p>Intro</p>")
		assert.Contains(t, got, "<p>Outro</p>")
		assert.Contains(t, got, `src="https://www.youtube.com/embed/abc_def_123"`)
		assert.Contains(t, got, `allow="autoplay"`)
		assert.Contains(t, got, `loading="lazy"`)
		assert.Contains(t, got, `referrerpolicy="no-referrer"`)
		assert.NotContains(t, got, "camera")
		assert.NotContains(t, got, "<p><iframe")
		assert.NotContains(t, got, "EMBEDTOKEN")
	})

	t.Run("foreign iframe removed", func(t *testing.T) {
		got := SanitizeMarkdown(`<iframe src="https://evil.com/x"></iframe>`)
		assert.NotContains(t, got, "<iframe")
		assert.NotContains(t, got, "evil.com")
	})

	t.Run("spotify allowed", func(t *testing.T) {
		got := SanitizeMarkdown(`<iframe src="https://open.spotify.com/embed/track/4uLU6hMCjMI75M1A2tKUQC"></iframe>`)
		assert.Equal(t, 1, strings.Count(got, "<iframe"))
	})

	t.Run("event handler on iframe dropped", func(t *testing.T) {
		got := SanitizeMarkdown(`<iframe src="https://player.vimeo.com/video/1" onload="x()"></iframe>`)
		assert.Contains(t, got, "<iframe")
		assert.False(t, eventAttrPattern.MatchString(got), got)
	})
}

func TestBasicToHTML_PlaceholdersAreNotWrapped(t *testing.T) {
	got := basicToHTML("<iframe src=\"https://youtu.be/a_b_c\"></iframe>")
	assert.Equal(t, `<iframe src="https://youtu.be/a_b_c"></iframe>`, got)
}

func TestBasicToHTML_CRLF(t *testing.T) {
	assert.Equal(t, "<p>a</p>\n<p>b</p>", basicToHTML("a\r\nb"))
}

func TestSanitizeHTML_TablesAndImages(t *testing.T) {
	src := `<table><tr><td>1</td></tr></table><img src="https://x.test/y.png" onerror="alert(1)" style="a" alt="pic" data-x="1">`
	got := SanitizeHTML(src)
	assert.Contains(t, got, "<table>")
	assert.Contains(t, got, "<td>1</td>")
	assert.Contains(t, got, `<img src="https://x.test/y.png" alt="pic"/>`)
	assert.NotContains(t, got, "onerror")
	assert.NotContains(t, got, "style")
	assert.NotContains(t, got, "data-x")
}

func TestSanitizeHTML_Attributes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"javascript href", `<a href="javascript:alert(1)" title="t">x</a>`, `<a title="t">x</a>`},
		{"class on a dropped", `<a href="https://x.test" class="c">x</a>`, `<a href="https://x.test">x</a>`},
		{"global attrs", `<p class="lead" style="x" id="a">t</p>`, `<p class="lead" id="a">t</p>`},
		{"data image", `<img src="data:image/png;base64,AAAA">`, `<img src="data:image/png;base64,AAAA"/>`},
		{"data html", `<img src="data:text/html;base64,AAAA">`, `<img/>`},
		{"subtree removed", `<div>keep<form><input>gone text</form></div>`, `<div>keep</div>`},
		{"svg removed", `<svg><script>x</script></svg>ok`, `ok`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeHTML(tt.src))
		})
	}
}

func TestSanitizeHTML_Idempotent(t *testing.T) {
	inputs := []string{
		`<table><tr><td>1</td></tr></table>`,
		`<p>a & b <i>c</i></p>`,
		`<iframe src="https://www.youtube.com/embed/x" allow="autoplay; camera"></iframe>`,
		`<ul><li>one<li>two</ul>`,
		`<a href="https://x.test/?a=1&b=2" title='"q"'>l</a>`,
	}
	for _, in := range inputs {
		once := SanitizeHTML(in)
		assert.Equal(t, once, SanitizeHTML(once), "input %q", in)
	}
}

func TestSanitizer_MarkdownCommonMark(t *testing.T) {
	s := New(WithMarkdownEngine(EngineCommonMark))
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n\n<script>x</script>\n\n[link](javascript:alert(1))\n\n- item"
	got, err := s.Markdown(src)
	require.NoError(t, err)
	assert.Contains(t, got, "<table>")
	assert.Contains(t, got, "<li>item</li>")
	assert.NotContains(t, got, "<script")
	assert.NotContains(t, strings.ToLower(got), "javascript:")
}

func TestSanitizer_MarkdownTooLarge(t *testing.T) {
	s := New(WithMaxInputLength(4))
	_, err := s.Markdown("# heading")
	assert.True(t, errors.Is(err, ErrInputTooLarge))
	_, err = s.HTML("<p>long</p>")
	assert.True(t, errors.Is(err, ErrInputTooLarge))
	_, err = s.Preview("# heading")
	assert.True(t, errors.Is(err, ErrInputTooLarge))
}

func TestParseMarkdownEngine(t *testing.T) {
	assert.Equal(t, EngineCommonMark, ParseMarkdownEngine(" CommonMark "))
	assert.Equal(t, EngineBasic, ParseMarkdownEngine("basic"))
	assert.Equal(t, EngineBasic, ParseMarkdownEngine(""))
	assert.Equal(t, EngineBasic, ParseMarkdownEngine("markdown-it"))
}
