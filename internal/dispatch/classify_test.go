package dispatch

import "testing"

var testDomains = []string{"netflix.com", "disneyplus.com", "tv.apple.com"}

func TestClassify(t *testing.T) {
	c := NewClassifier(testDomains)

	tests := []struct {
		name string
		url  string
		want Class
	}{
		{name: "netflix title", url: "https://www.netflix.com/title/81040344", want: ClassDeepLink},
		{name: "disney", url: "https://www.disneyplus.com/movies/soul", want: ClassDeepLink},
		{name: "apple tv plus", url: "https://tv.apple.com/show/severance", want: ClassDeepLink},
		{name: "direct mp4", url: "https://cdn.example.com/movie.mp4", want: ClassMediaURL},
		{name: "hls playlist", url: "https://cdn.example.com/live/master.m3u8", want: ClassMediaURL},
		{name: "youtube prefers airplay", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: ClassMediaURL},
		{name: "youtu.be prefers airplay", url: "https://youtu.be/dQw4w9WgXcQ", want: ClassMediaURL},
		{name: "unknown site", url: "https://vimeo.com/12345", want: ClassMediaURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.url); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsDirectMedia(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "mp4", url: "https://cdn.example.com/video.mp4", want: true},
		{name: "mp4 with query", url: "https://cdn.example.com/video.mp4?token=abc", want: true},
		{name: "m3u8", url: "https://cdn.example.com/master.m3u8", want: true},
		{name: "mkv", url: "https://cdn.example.com/video.mkv", want: true},
		{name: "hls path segment", url: "https://cdn.example.com/hls/stream", want: true},
		{name: "page url", url: "https://www.youtube.com/watch?v=abc", want: false},
		{name: "html page", url: "https://example.com/watch.html", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDirectMedia(tt.url); got != tt.want {
				t.Errorf("IsDirectMedia(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestYouTubeDeepLink(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{
			name:   "watch url",
			url:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			want:   "youtube://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantOK: true,
		},
		{
			name:   "short url",
			url:    "https://youtu.be/dQw4w9WgXcQ",
			want:   "youtube://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantOK: true,
		},
		{
			name:   "shorts",
			url:    "https://www.youtube.com/shorts/abc123",
			want:   "youtube://www.youtube.com/watch?v=abc123",
			wantOK: true,
		},
		{name: "not youtube", url: "https://vimeo.com/12345", wantOK: false},
		{name: "youtube without id", url: "https://www.youtube.com/", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := YouTubeDeepLink(tt.url)
			if ok != tt.wantOK {
				t.Fatalf("YouTubeDeepLink(%q) ok = %v, want %v", tt.url, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("YouTubeDeepLink(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
