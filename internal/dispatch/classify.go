package dispatch

import (
	"net/url"
	"strings"
)

// Class is the dispatch path a URL falls into.
type Class string

const (
	// ClassDeepLink is a URL launched as an app link over Companion.
	ClassDeepLink Class = "deep_link"

	// ClassMediaURL is a URL played as media over AirPlay.
	ClassMediaURL Class = "media_url"
)

// directMediaExtensions mark URLs that are playable streams rather than
// web pages.
var directMediaExtensions = []string{".mp4", ".m4v", ".m3u8", ".ts", ".mov", ".webm", ".mkv"}

// directMediaPaths are common streaming path shapes.
var directMediaPaths = []string{"/stream/", "/video/", "/hls/"}

// Classifier decides the dispatch path for a URL by string-pattern
// matching against a configured allow-list of app domains.
//
// Classification is deliberately not a full parser: deep-link
// eligibility is an allow-list of known app URL shapes, and a false
// negative degrades gracefully to attempted AirPlay playback.
type Classifier struct {
	deepLinkDomains []string
}

// NewClassifier creates a classifier with the given deep-link domain
// allow-list.
func NewClassifier(deepLinkDomains []string) *Classifier {
	domains := make([]string, len(deepLinkDomains))
	for i, d := range deepLinkDomains {
		domains[i] = strings.ToLower(d)
	}
	return &Classifier{deepLinkDomains: domains}
}

// Classify returns the dispatch path for a URL.
//
// YouTube is classified as media even though it is an app domain: its
// pages resolve to direct streams for AirPlay, which preserves quality
// selection. The orchestrator still falls back to a youtube:// deep
// link when AirPlay is not paired.
func (c *Classifier) Classify(rawURL string) Class {
	if IsYouTube(rawURL) {
		return ClassMediaURL
	}
	lower := strings.ToLower(rawURL)
	for _, domain := range c.deepLinkDomains {
		if strings.Contains(lower, domain) {
			return ClassDeepLink
		}
	}
	return ClassMediaURL
}

// IsDirectMedia reports whether a URL looks like a playable stream
// rather than a web page.
func IsDirectMedia(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if idx := strings.IndexByte(lower, '?'); idx >= 0 {
		lower = lower[:idx]
	}
	for _, ext := range directMediaExtensions {
		if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+"/") {
			return true
		}
	}
	for _, p := range directMediaPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsHLS reports whether a URL is an HLS playlist.
func IsHLS(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), ".m3u8")
}

// IsYouTube reports whether a URL points at YouTube.
func IsYouTube(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be")
}

// YouTubeDeepLink converts a YouTube page URL to the youtube:// scheme
// that opens the video in the device's YouTube app.
func YouTubeDeepLink(rawURL string) (string, bool) {
	if !IsYouTube(rawURL) {
		return "", false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	videoID := ""
	switch {
	case strings.Contains(strings.ToLower(u.Host), "youtu.be"):
		videoID = strings.Trim(u.Path, "/")
	default:
		videoID = u.Query().Get("v")
		if videoID == "" && strings.HasPrefix(u.Path, "/shorts/") {
			videoID = strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
		}
	}

	if videoID == "" {
		return "", false
	}
	return "youtube://www.youtube.com/watch?v=" + videoID, true
}
