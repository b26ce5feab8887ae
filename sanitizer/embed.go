package sanitizer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Embed providers known to the toolbar and the embed allow-list.
const (
	ProviderYouTube = "youtube"
	ProviderVimeo   = "vimeo"
	ProviderSpotify = "spotify"
)

var (
	youTubeID   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	vimeoID     = regexp.MustCompile(`^[0-9]+$`)
	spotifyID   = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
	spotifyKind = map[string]struct{}{
		"track": {}, "album": {}, "playlist": {}, "episode": {}, "show": {}, "artist": {},
	}
)

// Embed is a toolbar URL resolved into iframe markup.
type Embed struct {
	Provider string `json:"provider"`
	Kind     string `json:"kind,omitempty"`
	ID       string `json:"id"`
	Src      string `json:"src"`
	HTML     string `json:"html"`
}

func parseURL(raw string) (*url.URL, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, "", false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	return u, host, true
}

func pathSegments(u *url.URL) []string {
	return strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
}

// ParseYouTubeID extracts the video id from watch, short, embed and shorts URLs.
func ParseYouTubeID(raw string) (string, bool) {
	u, host, ok := parseURL(raw)
	if !ok {
		return "", false
	}
	segs := pathSegments(u)
	var id string
	switch host {
	case "youtu.be":
		if len(segs) > 0 {
			id = segs[0]
		}
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		switch {
		case len(segs) == 1 && segs[0] == "watch":
			id = u.Query().Get("v")
		case len(segs) >= 2 && (segs[0] == "embed" || segs[0] == "shorts" || segs[0] == "live" || segs[0] == "v"):
			id = segs[1]
		}
	}
	if !youTubeID.MatchString(id) {
		return "", false
	}
	return id, true
}

// ParseVimeoID extracts the numeric video id from vimeo.com and player URLs.
func ParseVimeoID(raw string) (string, bool) {
	u, host, ok := parseURL(raw)
	if !ok {
		return "", false
	}
	segs := pathSegments(u)
	switch host {
	case "vimeo.com":
		for i := len(segs) - 1; i >= 0; i-- {
			if vimeoID.MatchString(segs[i]) {
				return segs[i], true
			}
		}
	case "player.vimeo.com":
		if len(segs) >= 2 && segs[0] == "video" && vimeoID.MatchString(segs[1]) {
			return segs[1], true
		}
	}
	return "", false
}

// ParseSpotify extracts the resource kind and id from open.spotify.com URLs
// and spotify:<kind>:<id> URIs.
func ParseSpotify(raw string) (kind, id string, ok bool) {
	raw = strings.TrimSpace(raw)
	if rest, found := strings.CutPrefix(raw, "spotify:"); found {
		parts := strings.Split(rest, ":")
		if len(parts) == 2 {
			return validSpotify(parts[0], parts[1])
		}
		return "", "", false
	}
	u, host, parsed := parseURL(raw)
	if !parsed || host != "open.spotify.com" {
		return "", "", false
	}
	segs := pathSegments(u)
	if len(segs) > 0 && segs[0] == "embed" {
		segs = segs[1:]
	}
	if len(segs) > 0 && strings.HasPrefix(segs[0], "intl-") {
		segs = segs[1:]
	}
	if len(segs) < 2 {
		return "", "", false
	}
	return validSpotify(segs[0], segs[1])
}

func validSpotify(kind, id string) (string, string, bool) {
	kind = strings.ToLower(kind)
	if _, ok := spotifyKind[kind]; !ok || !spotifyID.MatchString(id) {
		return "", "", false
	}
	return kind, id, true
}

// ResolveEmbed turns a pasted URL into iframe markup using the rich policy.
func ResolveEmbed(raw string) (Embed, error) {
	return RichPolicy().ResolveEmbed(raw)
}

// ResolveEmbed turns a pasted URL into iframe markup whose src is guaranteed
// to pass p.AllowsEmbed.
func (p Policy) ResolveEmbed(raw string) (Embed, error) {
	var e Embed
	width, height := "560", "315"
	if id, ok := ParseYouTubeID(raw); ok {
		e = Embed{Provider: ProviderYouTube, ID: id, Src: "https://www.youtube.com/embed/" + id}
	} else if id, ok := ParseVimeoID(raw); ok {
		e = Embed{Provider: ProviderVimeo, ID: id, Src: "https://player.vimeo.com/video/" + id}
	} else if kind, id, ok := ParseSpotify(raw); ok {
		e = Embed{Provider: ProviderSpotify, Kind: kind, ID: id, Src: "https://open.spotify.com/embed/" + kind + "/" + id}
		width, height = "100%", "152"
	} else {
		return Embed{}, fmt.Errorf("%w: %q", ErrUnsupportedEmbed, raw)
	}
	if !p.AllowsEmbed(e.Src) {
		return Embed{}, fmt.Errorf("%w: %s", ErrEmbedNotAllowed, e.Src)
	}

	var b strings.Builder
	b.WriteString(`<iframe src="`)
	b.WriteString(html.EscapeString(e.Src))
	b.WriteString(`" width="` + width + `" height="` + height + `" frameborder="0"`)
	if len(p.IframeAllowFeatures) > 0 {
		b.WriteString(` allow="`)
		b.WriteString(html.EscapeString(strings.Join(p.IframeAllowFeatures, "; ")))
		b.WriteByte('"')
	}
	b.WriteString(` allowfullscreen loading="lazy" referrerpolicy="no-referrer"></iframe>`)
	e.HTML = b.String()
	return e, nil
}
