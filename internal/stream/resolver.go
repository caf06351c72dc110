package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Resolved is a single direct stream URL extracted from a page URL.
type Resolved struct {
	URL          string
	QualityLabel string
}

// SplitStreams are separately-hosted video and audio elementary streams
// that need a server-side merge before the device can play them.
type SplitStreams struct {
	VideoURL string
	AudioURL string
	Height   int
}

// Resolver turns page URLs (YouTube etc.) into direct stream URLs.
type Resolver interface {
	// ResolveSingle extracts the best single playable URL at the
	// requested quality ceiling.
	ResolveSingle(ctx context.Context, url, quality string) (*Resolved, error)

	// ResolveSplit extracts separate video and audio URLs for a
	// server-side merge. Fails when the source only offers combined
	// formats; the caller falls back to ResolveSingle.
	ResolveSplit(ctx context.Context, url, quality string) (*SplitStreams, error)
}

// YtdlpResolver resolves URLs through the yt-dlp CLI's JSON dump.
type YtdlpResolver struct {
	binary  string
	timeout time.Duration
}

// NewYtdlpResolver creates a resolver using the given yt-dlp binary.
func NewYtdlpResolver(binary string, timeout time.Duration) *YtdlpResolver {
	return &YtdlpResolver{binary: binary, timeout: timeout}
}

// ytdlpInfo is the subset of yt-dlp's JSON output we consume.
type ytdlpInfo struct {
	URL              string       `json:"url"`
	Height           int          `json:"height"`
	FormatNote       string       `json:"format_note"`
	Formats          []ytdlpEntry `json:"formats"`
	RequestedFormats []ytdlpEntry `json:"requested_formats"`
}

type ytdlpEntry struct {
	URL    string `json:"url"`
	VCodec string `json:"vcodec"`
	ACodec string `json:"acodec"`
	Height int    `json:"height"`
}

// singleFormat builds the yt-dlp format string for one combined URL.
//
// YouTube serves 720p+ as DASH (video-only); combined video+audio tops
// out around 360p. Auto prefers a combined mp4 because video-only DASH
// streams fail AirPlay RTSP setup.
func singleFormat(quality string) string {
	switch strings.ToLower(strings.TrimSpace(quality)) {
	case "1080p":
		return "bestvideo[height<=1080][ext=mp4]/bestvideo[height<=1080]/best[height<=1080]/best"
	case "720p":
		return "bestvideo[height<=720][ext=mp4]/bestvideo[height<=720]/best[height<=720]/best"
	case "480p":
		return "best[height<=480][ext=mp4]/best[height<=480]/best"
	case "360p":
		return "best[height<=360][ext=mp4]/best[height<=360]/best"
	default: // auto
		return "best[ext=mp4]/best"
	}
}

// splitFormat builds the yt-dlp format string for separate video+audio.
func splitFormat(quality string) string {
	switch strings.ToLower(strings.TrimSpace(quality)) {
	case "1080p":
		return "bestvideo[height<=1080]+bestaudio/best"
	case "720p":
		return "bestvideo[height<=720]+bestaudio/best"
	default:
		return "bestvideo+bestaudio/best"
	}
}

// ResolveSingle extracts the best single playable URL.
func (r *YtdlpResolver) ResolveSingle(ctx context.Context, url, quality string) (*Resolved, error) {
	info, err := r.dump(ctx, url, singleFormat(quality))
	if err != nil {
		return nil, err
	}

	resultURL := info.URL
	if resultURL == "" {
		for _, f := range info.Formats {
			if f.URL != "" {
				resultURL = f.URL
				break
			}
		}
	}
	if resultURL == "" {
		return nil, fmt.Errorf("%w: no playable url in output", ErrResolveFailed)
	}

	return &Resolved{
		URL:          resultURL,
		QualityLabel: qualityLabel(info),
	}, nil
}

// ResolveSplit extracts separate video and audio URLs for merging.
func (r *YtdlpResolver) ResolveSplit(ctx context.Context, url, quality string) (*SplitStreams, error) {
	info, err := r.dump(ctx, url, splitFormat(quality))
	if err != nil {
		return nil, err
	}

	return extractSplit(info)
}

// extractSplit pulls the video+audio pair out of an info dump.
func extractSplit(info *ytdlpInfo) (*SplitStreams, error) {
	if len(info.RequestedFormats) < 2 {
		return nil, fmt.Errorf("%w: source has no separate video+audio formats", ErrResolveFailed)
	}

	var split SplitStreams
	for _, f := range info.RequestedFormats {
		if f.URL == "" {
			continue
		}
		if f.VCodec != "" && f.VCodec != "none" {
			split.VideoURL = f.URL
			if f.Height > 0 {
				split.Height = f.Height
			}
		}
		if f.ACodec != "" && f.ACodec != "none" {
			split.AudioURL = f.URL
		}
	}

	if split.VideoURL == "" || split.AudioURL == "" {
		return nil, fmt.Errorf("%w: incomplete video+audio pair", ErrResolveFailed)
	}
	if split.Height == 0 {
		split.Height = info.Height
	}

	return &split, nil
}

// dump runs yt-dlp -j and decodes the info JSON.
func (r *YtdlpResolver) dump(ctx context.Context, url, format string) (*ytdlpInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	//nolint:gosec // Binary path comes from validated config
	cmd := exec.CommandContext(ctx, r.binary,
		"--format", format,
		"--no-warnings",
		"--quiet",
		"-j",
		url,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: resolution timed out", ErrResolveFailed)
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrResolveFailed, err, firstLine(stderr.String()))
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("%w: decoding output: %v", ErrResolveFailed, err)
	}
	return &info, nil
}

// qualityLabel builds a user-visible quality string from the info dump.
func qualityLabel(info *ytdlpInfo) string {
	height := info.Height
	if height == 0 {
		for _, f := range info.RequestedFormats {
			if f.Height > 0 {
				height = f.Height
				break
			}
		}
	}
	if height > 0 {
		return fmt.Sprintf("%dp", height)
	}
	return info.FormatNote
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
