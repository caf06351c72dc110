package dispatch

import (
	"context"
	"strings"
	"testing"

	"github.com/tvcastd/tvcast/internal/atv"
)

func testPlayerApps() []PlayerApp {
	return []PlayerApp{
		{Name: "VidHub", Scheme: "open-vidhub", Action: "open", HLSOnly: true},
		{Name: "Infuse", Scheme: "infuse", Action: "play"},
	}
}

func TestPlayerAppCallbackURL(t *testing.T) {
	app := PlayerApp{Name: "Infuse", Scheme: "infuse", Action: "play"}

	got := app.CallbackURL("https://cdn.example.com/a b.mp4?tok=1&x=2")
	want := "infuse://x-callback-url/play?url=https%3A%2F%2Fcdn.example.com%2Fa%20b.mp4%3Ftok%3D1%26x%3D2"
	if got != want {
		t.Errorf("CallbackURL = %q, want %q", got, want)
	}
}

func TestPlayAppHandoffDirectMedia(t *testing.T) {
	h := newHarness(testDevice(map[atv.Protocol]string{
		atv.ProtocolAirPlay:   "blob",
		atv.ProtocolCompanion: "blob",
	}))
	h.repo.defaultID = "atv-1"
	h.orch.SetPlayerApps(testPlayerApps())

	result, err := h.orch.Play(context.Background(), PlayRequest{URL: "https://cdn.example.com/movie.mp4"})
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if result.Method != MethodDeepLink {
		t.Errorf("method = %q, want %q", result.Method, MethodDeepLink)
	}
	if result.Message != "Opened on Living Room (Infuse)" {
		t.Errorf("message = %q", result.Message)
	}

	// VidHub only takes HLS, so the mp4 goes straight to Infuse.
	if len(h.controller.launched) != 1 || !strings.HasPrefix(h.controller.launched[0], "infuse://x-callback-url/play?url=") {
		t.Errorf("launched = %v, want one infuse callback URL", h.controller.launched)
	}
	if len(h.controller.played) != 0 {
		t.Errorf("played = %v, want none once an app took the stream", h.controller.played)
	}
}

func TestPlayAppHandoffHLSTriesVidHubFirst(t *testing.T) {
	h := newHarness(testDevice(map[atv.Protocol]string{
		atv.ProtocolAirPlay:   "blob",
		atv.ProtocolCompanion: "blob",
	}))
	h.repo.defaultID = "atv-1"
	h.orch.SetPlayerApps(testPlayerApps())

	result, err := h.orch.Play(context.Background(), PlayRequest{URL: "https://cdn.example.com/live.m3u8"})
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if result.Message != "Opened on Living Room (VidHub)" {
		t.Errorf("message = %q, want VidHub to take the HLS stream", result.Message)
	}
	if len(h.controller.launched) != 1 || !strings.HasPrefix(h.controller.launched[0], "open-vidhub://x-callback-url/open?url=") {
		t.Errorf("launched = %v, want one vidhub callback URL", h.controller.launched)
	}
}

func TestPlayAppHandoffFallsBackToAirPlay(t *testing.T) {
	h := newHarness(testDevice(map[atv.Protocol]string{
		atv.ProtocolAirPlay:   "blob",
		atv.ProtocolCompanion: "blob",
	}))
	h.repo.defaultID = "atv-1"
	h.orch.SetPlayerApps(testPlayerApps())
	h.controller.launchErr = atv.ErrUnreachable

	result, err := h.orch.Play(context.Background(), PlayRequest{URL: "https://cdn.example.com/movie.mp4"})
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if result.Method != MethodAirPlay {
		t.Errorf("method = %q, want %q after every app refused", result.Method, MethodAirPlay)
	}
	if len(h.controller.played) != 1 {
		t.Errorf("played = %v, want the direct stream", h.controller.played)
	}
}

func TestPlayAppHandoffNeedsCompanion(t *testing.T) {
	h := newHarness(testDevice(map[atv.Protocol]string{atv.ProtocolAirPlay: "blob"}))
	h.repo.defaultID = "atv-1"
	h.orch.SetPlayerApps(testPlayerApps())

	result, err := h.orch.Play(context.Background(), PlayRequest{URL: "https://cdn.example.com/movie.mp4"})
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if result.Method != MethodAirPlay {
		t.Errorf("method = %q, want %q without a Companion pairing", result.Method, MethodAirPlay)
	}
	if len(h.controller.launched) != 0 {
		t.Errorf("launched = %v, want no app launches", h.controller.launched)
	}
}
