package sanitizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYouTubeID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ", true},
		{"youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"https://www.youtube.com/channel/UCxyz", "", false},
		{"https://evil.com/watch?v=dQw4w9WgXcQ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			id, ok := ParseYouTubeID(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestParseVimeoID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://vimeo.com/987654", "987654", true},
		{"https://vimeo.com/channels/staffpicks/123", "123", true},
		{"https://player.vimeo.com/video/42?h=abc", "42", true},
		{"https://player.vimeo.com/42", "", false},
		{"https://vimeo.com/about", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			id, ok := ParseVimeoID(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestParseSpotify(t *testing.T) {
	const id = "4uLU6hMCjMI75M1A2tKUQC"
	tests := []struct {
		raw      string
		wantKind string
		ok       bool
	}{
		{"https://open.spotify.com/track/" + id + "?si=x", "track", true},
		{"https://open.spotify.com/intl-de/album/" + id, "album", true},
		{"https://open.spotify.com/embed/playlist/" + id, "playlist", true},
		{"spotify:episode:" + id, "episode", true},
		{"https://open.spotify.com/user/" + id, "", false},
		{"https://open.spotify.com/track/tooshort", "", false},
		{"spotify:track", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			kind, got, ok := ParseSpotify(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantKind, kind)
			if tt.ok {
				assert.Equal(t, id, got)
			}
		})
	}
}

func TestResolveEmbed_OutputSurvivesBothPolicies(t *testing.T) {
	urls := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://vimeo.com/987654",
		"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
	}
	for _, raw := range urls {
		t.Run(raw, func(t *testing.T) {
			e, err := ResolveEmbed(raw)
			require.NoError(t, err)
			assert.True(t, RichPolicy().AllowsEmbed(e.Src))
			assert.True(t, InlinePolicy().AllowsEmbed(e.Src))

			inline := SanitizeInline(e.HTML, true)
			assert.Equal(t, 1, strings.Count(inline, "<iframe"), inline)
			assert.Contains(t, inline, `src="`+e.Src+`"`)

			rich := SanitizeHTML(e.HTML)
			assert.Equal(t, 1, strings.Count(rich, "<iframe"), rich)
			assert.Contains(t, rich, `loading="lazy"`)
		})
	}
}

func TestResolveEmbed_Errors(t *testing.T) {
	_, err := ResolveEmbed("https://example.com/video")
	assert.True(t, errors.Is(err, ErrUnsupportedEmbed))

	p := RichPolicy()
	p.EmbedOrigins = []EmbedOrigin{{Provider: ProviderVimeo, Prefix: "https://player.vimeo.com/"}}
	_, err = p.ResolveEmbed("https://youtu.be/dQw4w9WgXcQ")
	assert.True(t, errors.Is(err, ErrEmbedNotAllowed))

	e, err := p.ResolveEmbed("https://vimeo.com/1")
	require.NoError(t, err)
	assert.Equal(t, ProviderVimeo, e.Provider)
}

func TestPolicy_AllowsEmbed(t *testing.T) {
	p := InlinePolicy()
	assert.True(t, p.AllowsEmbed("https://www.youtube.com/embed/abc"))
	assert.True(t, p.AllowsEmbed("  HTTPS://PLAYER.VIMEO.COM/video/1"))
	assert.False(t, p.AllowsEmbed("https://www.youtube.com.evil.com/embed/abc"))
	assert.False(t, p.AllowsEmbed("http://www.youtube.com/embed/abc"))
	assert.False(t, p.AllowsEmbed(""))
}
