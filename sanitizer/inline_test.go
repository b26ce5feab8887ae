package sanitizer

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventAttrPattern = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)

func TestInline_RemovesScriptAndStyleBlocks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"script block", `<p>Hello</p><script>alert('x')</script>`, `<p>Hello</p>`},
		{"style block", `<style>p{color:red}</style><b>x</b>`, `<b>x</b>`},
		{"upper case", `<SCRIPT type="text/javascript">evil()</SCRIPT>ok`, `ok`},
		{"orphan closer", `a</script>b`, `ab`},
		{"unterminated", `ok<script>never closed`, `ok`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeInline(tt.input, false)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, strings.ToLower(got), "<script")
		})
	}
}

func TestInline_StripsEventHandlersInEveryQuotingStyle(t *testing.T) {
	inputs := []string{
		`<a href="https://x.com" onclick="evil()">a</a>`,
		`<b onmouseover='x()'>b</b>`,
		`<i onload=y()>c</i>`,
		`<p ONERROR = "z">d</p>`,
		`plain text onclick=alert(1) here`,
		`on<span>click=alert(1)</span>`,
	}
	for _, in := range inputs {
		got := SanitizeInline(in, true)
		assert.False(t, eventAttrPattern.MatchString(got), "input %q produced %q", in, got)
	}
	assert.Equal(t, `<a href="https://x.com">a</a>`, SanitizeInline(inputs[0], false))
}

func TestInline_StripsJavascriptScheme(t *testing.T) {
	inputs := []string{
		`<a href="JaVaScRiPt:alert(1)">x</a>`,
		`text javascript:foo`,
		`javajavascript:script:alert(1)`,
		`<a href="java&#115;cript:alert(1)">y</a>`,
		`java<b>script:</b>`,
		`java<u>script:x`,
	}
	for _, in := range inputs {
		got := SanitizeInline(in, false)
		assert.NotContains(t, strings.ToLower(got), "javascript:", "input %q", in)
	}
}

func TestInline_UnwrapsDisallowedTags(t *testing.T) {
	got := SanitizeInline(`<div class="x"><span>hi</span> <marquee>there</marquee></div>`, false)
	assert.Equal(t, "hi there", got)
}

func TestInline_FiltersAttributesAndURLs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"keeps allowed", `<a href="https://example.com/a" title="t" target="_blank">x</a>`, `<a href="https://example.com/a" title="t">x</a>`},
		{"relative link", `<a href="/posts/1">x</a>`, `<a href="/posts/1">x</a>`},
		{"protocol relative", `<a href="//evil.com">x</a>`, `<a>x</a>`},
		{"http is not https", `<a href="http://example.com">x</a>`, `<a>x</a>`},
		{"data link", `<a href="data:text/html;base64,PHNjcmlwdD4=">x</a>`, `<a>x</a>`},
		{"no attrs on b", `<b class="x" style="color:red">x</b>`, `<b>x</b>`},
		{"escapes text", `Tom & Jerry <3`, `Tom &amp; Jerry &lt;3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeInline(tt.input, false))
		})
	}
}

func TestInline_Iframes(t *testing.T) {
	t.Run("youtube kept when video allowed", func(t *testing.T) {
		got := SanitizeInline(`<iframe src="https://www.youtube.com/embed/abc123"></iframe>`, true)
		assert.Equal(t, 1, strings.Count(got, "<iframe"))
		assert.Contains(t, got, "youtube.com/embed/abc123")
	})

	t.Run("foreign origin dropped", func(t *testing.T) {
		got := SanitizeInline(`<iframe src="https://evil.com/embed/x"></iframe>after`, true)
		assert.Equal(t, 0, strings.Count(got, "<iframe"))
		assert.NotContains(t, got, "</iframe>")
		assert.Equal(t, "after", got)
	})

	t.Run("dropped when video disallowed", func(t *testing.T) {
		got := SanitizeInline(`<iframe src="https://www.youtube.com/embed/abc123"></iframe>x</iframe>`, false)
		assert.Equal(t, "x", got)
	})

	t.Run("vimeo end to end", func(t *testing.T) {
		in := `<p>Intro</p><iframe src="https://player.vimeo.com/video/987654" frameborder="0"></iframe><p>After</p>`
		got := SanitizeInline(in, true)
		assert.Equal(t, in, got)
	})

	t.Run("allow attribute intersected", func(t *testing.T) {
		got := SanitizeInline(`<iframe src="https://youtu.be/x" allow="Autoplay; camera, encrypted-media ;autoplay"></iframe>`, true)
		assert.Contains(t, got, `allow="autoplay; encrypted-media"`)
		assert.NotContains(t, got, "camera")
	})

	t.Run("allow attribute omitted when empty", func(t *testing.T) {
		got := SanitizeInline(`<iframe src="https://youtu.be/x" allow="camera; microphone"></iframe>`, true)
		assert.NotContains(t, got, "allow=")
		assert.Contains(t, got, "<iframe")
	})

	t.Run("unterminated iframe is closed", func(t *testing.T) {
		got := SanitizeInline(`<iframe src="https://player.vimeo.com/video/1">`, true)
		assert.Equal(t, `<iframe src="https://player.vimeo.com/video/1"></iframe>`, got)
	})
}

func TestInline_Idempotent(t *testing.T) {
	inputs := []string{
		`<p>Hello <b>world</b></p>`,
		`<a href="https://a.b/?q=1&x=2" title='He said "hi"'>l</a>`,
		`Tom & Jerry's <3`,
		`<div>unwrapped <span>text</span></div>`,
		`<iframe src="https://www.youtube.com/embed/abc123" allow="autoplay; camera"></iframe>`,
		`<scr<script>ipt>alert(1)</script>`,
		`<b>unclosed <i>tags`,
		`<br/><br>line<hr>`,
		`<textarea><b>raw</b></textarea>`,
		`<noscript><img src=x onerror=alert(1)></noscript>`,
		`<!-- comment --><p>after comment</p>`,
		`javajavascript:script:on<u>click=1`,
		`<a href="//evil.com" onclick=x>y</a></b>`,
	}
	for _, allowVideo := range []bool{false, true} {
		for _, in := range inputs {
			once := SanitizeInline(in, allowVideo)
			twice := SanitizeInline(once, allowVideo)
			assert.Equal(t, once, twice, "input %q allowVideo=%v", in, allowVideo)
		}
	}
}

func TestSanitizer_InlineMaxInputLength(t *testing.T) {
	s := New(WithMaxInputLength(10))

	out, err := s.Inline(strings.Repeat("a", 10))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 10), out)

	_, err = s.Inline(strings.Repeat("a", 11))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInputTooLarge))

	// multibyte characters count once
	_, err = s.Inline(strings.Repeat("é", 10))
	assert.NoError(t, err)
}

func TestSanitizer_InlineEmptyInput(t *testing.T) {
	out, err := New().Inline("")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestSanitizer_ConcurrentUse(t *testing.T) {
	s := New(WithAllowVideo(true))
	in := `<p onclick="x">a</p><iframe src="https://youtu.be/abc"></iframe><script>z</script>`
	want, err := s.Inline(in)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := s.Inline(in)
				if assert.NoError(t, err) {
					assert.Equal(t, want, got)
				}
				_, _ = s.Markdown("# title\n" + in)
			}
		}()
	}
	wg.Wait()
}
