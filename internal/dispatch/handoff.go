package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tvcastd/tvcast/internal/atv"
	"github.com/tvcastd/tvcast/internal/store"
)

// PlayerApp is a third-party tvOS player reachable through an
// x-callback-url scheme. When one is installed on the target, handing
// the stream to it beats raw AirPlay for format support and seeking.
type PlayerApp struct {
	Name    string
	Scheme  string // e.g. "open-vidhub"
	Action  string // callback path, e.g. "open" or "play"
	HLSOnly bool   // only offer .m3u8 URLs to this app
}

// CallbackURL builds the app launch URL for a media URL.
func (a PlayerApp) CallbackURL(mediaURL string) string {
	// QueryEscape uses + for spaces, which callback handlers reject.
	escaped := strings.ReplaceAll(url.QueryEscape(mediaURL), "+", "%20")
	return fmt.Sprintf("%s://x-callback-url/%s?url=%s", a.Scheme, a.Action, escaped)
}

// accepts reports whether the app should be offered this URL.
func (a PlayerApp) accepts(mediaURL string) bool {
	if !strings.HasPrefix(mediaURL, "http://") && !strings.HasPrefix(mediaURL, "https://") {
		return false
	}
	if a.HLSOnly && !strings.Contains(mediaURL, ".m3u8") {
		return false
	}
	return true
}

// SetPlayerApps configures the player apps tried before AirPlay, in
// order. Nil or empty disables app handoff.
func (o *Orchestrator) SetPlayerApps(apps []PlayerApp) {
	o.playerApps = apps
}

// tryAppHandoff offers the media URL to each configured player app over
// Companion. Returns nil when no app took it, so the caller falls
// through to AirPlay.
func (o *Orchestrator) tryAppHandoff(ctx context.Context, device *store.Device, mediaURL string) *PlayResult {
	if len(o.playerApps) == 0 {
		return nil
	}
	cred, ok := device.Credential(atv.ProtocolCompanion)
	if !ok {
		return nil
	}

	for _, app := range o.playerApps {
		if !app.accepts(mediaURL) {
			continue
		}
		if err := o.controller.LaunchApp(ctx, device.Address, cred, app.CallbackURL(mediaURL)); err != nil {
			o.logger.Info("player app handoff failed, trying next",
				"app", app.Name, "device", device.Name, "error", err)
			continue
		}
		return &PlayResult{
			Status:  "SUCCESS",
			Message: fmt.Sprintf("Opened on %s (%s)", device.Name, app.Name),
			Method:  MethodDeepLink,
		}
	}
	return nil
}
