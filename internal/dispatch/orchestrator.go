package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tvcastd/tvcast/internal/activity"
	"github.com/tvcastd/tvcast/internal/atv"
	"github.com/tvcastd/tvcast/internal/infrastructure/logging"
	"github.com/tvcastd/tvcast/internal/store"
	"github.com/tvcastd/tvcast/internal/stream"
)

// Dispatch methods recorded in the activity log.
const (
	MethodAirPlay      = "airplay"
	MethodAirPlayMerge = "airplay-merge"
	MethodAirPlayRemux = "airplay-remux"
	MethodDeepLink     = "deep-link"
)

// PlayRequest is one user-submitted dispatch.
type PlayRequest struct {
	URL      string
	DeviceID string // empty means the default device
	Quality  string // auto, 360p, 480p, 720p, 1080p
}

// PlayResult reports a successful dispatch.
type PlayResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Method    string `json:"method"`
	MergeUsed bool   `json:"merge_used"`
	Quality   string `json:"quality,omitempty"`
}

// Transformer is the stream-transform collaborator the orchestrator
// hands media off to. Implemented by stream.Service.
type Transformer interface {
	CreateMerge(split *stream.SplitStreams) *stream.Job
	CreateRemux(hlsURL string) *stream.Job
	WaitReady(ctx context.Context, job *stream.Job) error
	ServingURL(id string) string
}

// MetricsRecorder receives one measurement per dispatch attempt.
// Optional; nil disables recording.
type MetricsRecorder interface {
	RecordDispatch(method string, mergeUsed bool, duration time.Duration, success bool)
}

// Orchestrator turns a submitted URL and target device into a single
// play action, logging every attempt.
type Orchestrator struct {
	repo       store.Repository
	controller atv.Controller
	transforms Transformer
	resolver   stream.Resolver
	classifier *Classifier
	log        *activity.Log
	metrics    MetricsRecorder
	logger     *logging.Logger
	playerApps []PlayerApp
}

// NewOrchestrator creates a dispatch orchestrator. metrics may be nil.
func NewOrchestrator(
	repo store.Repository,
	controller atv.Controller,
	transforms Transformer,
	resolver stream.Resolver,
	classifier *Classifier,
	log *activity.Log,
	metrics MetricsRecorder,
	logger *logging.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		repo:       repo,
		controller: controller,
		transforms: transforms,
		resolver:   resolver,
		classifier: classifier,
		log:        log,
		metrics:    metrics,
		logger:     logger.With("component", "dispatch"),
	}
}

// Play dispatches one URL to the target device.
//
// A start entry is appended before the command is issued and exactly one
// terminal entry after, panics included, so the log reflects every
// attempt exactly once.
func (o *Orchestrator) Play(ctx context.Context, req PlayRequest) (result *PlayResult, err error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, ErrEmptyURL
	}
	req.URL = strings.TrimSpace(req.URL)

	device, err := o.target(ctx, req.DeviceID)
	if err != nil {
		// The attempt still shows up in the log even though no device
		// could be resolved to receive it.
		o.log.Append(activity.Entry{
			Status:  activity.StatusError,
			URL:     req.URL,
			Message: err.Error(),
		})
		return nil, err
	}

	started := time.Now()
	o.log.Append(activity.Entry{
		Status: activity.StatusStart,
		URL:    req.URL,
		Device: device.Name,
	})

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("dispatch panic: %v", r)
			o.logger.Error("dispatch panicked", "url", req.URL, "panic", r)
		}

		entry := activity.Entry{URL: req.URL, Device: device.Name}
		method := ""
		mergeUsed := false
		if err != nil {
			entry.Status = activity.StatusError
			entry.Message = err.Error()
		} else {
			entry.Status = activity.StatusSuccess
			entry.Method = result.Method
			entry.MergeUsed = result.MergeUsed
			entry.Message = result.Message
			method = result.Method
			mergeUsed = result.MergeUsed
		}
		o.log.Append(entry)

		if o.metrics != nil {
			o.metrics.RecordDispatch(method, mergeUsed, time.Since(started), err == nil)
		}
	}()

	result, err = o.play(ctx, device, req)
	return result, err
}

// Stop halts playback on the default device. Idempotent: stopping when
// nothing is playing succeeds.
func (o *Orchestrator) Stop(ctx context.Context) error {
	device, err := o.repo.GetDefault(ctx)
	if err != nil {
		return err
	}

	cred, ok := device.Credential(atv.ProtocolCompanion)
	if !ok {
		if cred, ok = device.Credential(atv.ProtocolAirPlay); !ok {
			return NotPaired(atv.ProtocolCompanion)
		}
	}

	if err := o.controller.Stop(ctx, device.Address, cred); err != nil {
		return fmt.Errorf("stopping playback: %w", err)
	}
	return nil
}

// target resolves the dispatch target: explicit device or default.
func (o *Orchestrator) target(ctx context.Context, deviceID string) (*store.Device, error) {
	if deviceID != "" {
		return o.repo.GetByID(ctx, deviceID)
	}
	return o.repo.GetDefault(ctx)
}

// play routes the request down the deep-link or media path.
func (o *Orchestrator) play(ctx context.Context, device *store.Device, req PlayRequest) (*PlayResult, error) {
	switch o.classifier.Classify(req.URL) {
	case ClassDeepLink:
		return o.launchDeepLink(ctx, device, req.URL)
	default:
		return o.playMedia(ctx, device, req)
	}
}

// launchDeepLink opens an app link over Companion.
func (o *Orchestrator) launchDeepLink(ctx context.Context, device *store.Device, link string) (*PlayResult, error) {
	cred, ok := device.Credential(atv.ProtocolCompanion)
	if !ok {
		return nil, NotPaired(atv.ProtocolCompanion)
	}

	if err := o.controller.LaunchApp(ctx, device.Address, cred, link); err != nil {
		return nil, fmt.Errorf("launching app: %w", err)
	}

	return &PlayResult{
		Status:  "SUCCESS",
		Message: fmt.Sprintf("Opened on %s", device.Name),
		Method:  MethodDeepLink,
	}, nil
}

// playMedia plays a media URL over AirPlay, transforming server-side
// when the quality ask needs it.
func (o *Orchestrator) playMedia(ctx context.Context, device *store.Device, req PlayRequest) (*PlayResult, error) {
	airplayCred, hasAirplay := device.Credential(atv.ProtocolAirPlay)
	if !hasAirplay {
		// YouTube still works through its app when only Companion is paired
		if link, ok := YouTubeDeepLink(req.URL); ok {
			if cred, paired := device.Credential(atv.ProtocolCompanion); paired {
				if err := o.controller.LaunchApp(ctx, device.Address, cred, link); err == nil {
					return &PlayResult{
						Status:  "SUCCESS",
						Message: fmt.Sprintf("Opened in YouTube app on %s", device.Name),
						Method:  MethodDeepLink,
					}, nil
				}
			}
		}
		return nil, NotPaired(atv.ProtocolAirPlay)
	}

	if IsDirectMedia(req.URL) {
		// A paired player app on the box handles more formats than raw
		// AirPlay, so offer it the stream first.
		if result := o.tryAppHandoff(ctx, device, req.URL); result != nil {
			return result, nil
		}
		return o.playDirect(ctx, device, airplayCred, req.URL)
	}
	return o.playPage(ctx, device, airplayCred, req)
}

// playDirect plays a stream URL as-is, with an HLS remux fallback when
// the device rejects the playlist.
func (o *Orchestrator) playDirect(ctx context.Context, device *store.Device, cred, url string) (*PlayResult, error) {
	err := o.controller.PlayURL(ctx, device.Address, cred, url)
	if err == nil {
		return &PlayResult{
			Status:  "SUCCESS",
			Message: fmt.Sprintf("Playing on %s", device.Name),
			Method:  MethodAirPlay,
		}, nil
	}

	if !IsHLS(url) {
		return nil, fmt.Errorf("playing url: %w", err)
	}

	o.logger.Info("direct hls playback failed, remuxing", "error", err)

	job := o.transforms.CreateRemux(url)
	if werr := o.transforms.WaitReady(ctx, job); werr != nil {
		return nil, fmt.Errorf("playing url: %w", err)
	}
	if perr := o.controller.PlayURL(ctx, device.Address, cred, o.transforms.ServingURL(job.ID)); perr != nil {
		return nil, fmt.Errorf("playing remuxed stream: %w", perr)
	}

	return &PlayResult{
		Status:    "SUCCESS",
		Message:   fmt.Sprintf("Playing on %s (remuxed)", device.Name),
		Method:    MethodAirPlayRemux,
		MergeUsed: true,
	}, nil
}

// playPage resolves a page URL (YouTube etc.) and plays the result.
// High quality asks go through a server-side merge first; any transform
// failure degrades to direct playback of the best single stream.
func (o *Orchestrator) playPage(ctx context.Context, device *store.Device, cred string, req PlayRequest) (*PlayResult, error) {
	if wantsMerge(req.Quality) {
		if result, ok := o.tryMerge(ctx, device, cred, req); ok {
			return result, nil
		}
	}

	resolved, err := o.resolver.ResolveSingle(ctx, req.URL, req.Quality)
	if err != nil {
		return nil, err
	}

	if err := o.controller.PlayURL(ctx, device.Address, cred, resolved.URL); err != nil {
		return nil, fmt.Errorf("playing resolved url: %w", err)
	}

	return &PlayResult{
		Status:  "SUCCESS",
		Message: fmt.Sprintf("Playing on %s", device.Name),
		Method:  MethodAirPlay,
		Quality: resolved.QualityLabel,
	}, nil
}

// tryMerge attempts the full merge path. Returns ok=false on any
// failure so the caller can degrade to direct playback.
func (o *Orchestrator) tryMerge(ctx context.Context, device *store.Device, cred string, req PlayRequest) (*PlayResult, bool) {
	split, err := o.resolver.ResolveSplit(ctx, req.URL, req.Quality)
	if err != nil {
		o.logger.Info("split resolution failed, falling back to direct", "error", err)
		return nil, false
	}

	job := o.transforms.CreateMerge(split)
	if err := o.transforms.WaitReady(ctx, job); err != nil {
		o.logger.Warn("merge job not servable, falling back to direct", "error", err)
		return nil, false
	}

	if err := o.controller.PlayURL(ctx, device.Address, cred, o.transforms.ServingURL(job.ID)); err != nil {
		o.logger.Warn("playing merged stream failed, falling back to direct", "error", err)
		return nil, false
	}

	quality := ""
	if split.Height > 0 {
		quality = fmt.Sprintf("%dp", split.Height)
	}
	return &PlayResult{
		Status:    "SUCCESS",
		Message:   fmt.Sprintf("Playing on %s (merged)", device.Name),
		Method:    MethodAirPlayMerge,
		MergeUsed: true,
		Quality:   quality,
	}, true
}

// wantsMerge reports whether the quality ask exceeds what a single
// combined stream can deliver.
func wantsMerge(quality string) bool {
	switch strings.ToLower(strings.TrimSpace(quality)) {
	case "720p", "1080p":
		return true
	default:
		return false
	}
}
