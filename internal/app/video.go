package app

import (
	"net/url"
	"strings"
)

const youtubeEmbedBase = "https://www.youtube.com/embed/"

// VideoID extracts the YouTube video id from a watch, short, embed or
// youtu.be link. ok is false for anything it does not recognise.
func VideoID(link string) (id string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
	case "www.youtube.com", "youtube.com", "m.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"),
			strings.HasPrefix(u.Path, "/v/"),
			strings.HasPrefix(u.Path, "/shorts/"):
			parts := strings.Split(u.Path, "/")
			if len(parts) > 2 {
				id = parts[2]
			}
		}
	default:
		return "", false
	}

	if !validVideoID(id) {
		return "", false
	}
	return id, true
}

// EmbedURL is the iframe source for a video id.
func EmbedURL(id string) string {
	return youtubeEmbedBase + id
}

func validVideoID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
