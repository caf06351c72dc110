package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tvcastd/tvcast/internal/infrastructure/config"
)

func testConfig() config.StreamConfig {
	return config.StreamConfig{
		BaseURL:        "http://192.168.1.10:8090",
		FFmpegBinary:   "echo",
		YtdlpBinary:    "yt-dlp",
		ResolveTimeout: 5,
		SessionTTL:     3600,
		PrewarmBytes:   1,
		PrewarmTimeout: 5,
	}
}

func newTestService(t *testing.T, cfg config.StreamConfig) *Service {
	t.Helper()
	s := NewService(cfg, nil, nil)
	t.Cleanup(s.Close)
	return s
}

func TestServingURL(t *testing.T) {
	s := newTestService(t, testConfig())

	got := s.ServingURL("abc123")
	want := "http://192.168.1.10:8090/api/appletv/stream/abc123"
	if got != want {
		t.Errorf("ServingURL() = %q, want %q", got, want)
	}
}

func TestServingURLTrimsTrailingSlash(t *testing.T) {
	cfg := testConfig()
	cfg.BaseURL = "http://192.168.1.10:8090/"
	s := newTestService(t, cfg)

	got := s.ServingURL("abc123")
	if got != "http://192.168.1.10:8090/api/appletv/stream/abc123" {
		t.Errorf("ServingURL() = %q", got)
	}
}

func TestJobIDLength(t *testing.T) {
	s := newTestService(t, testConfig())

	job := s.newJob(KindMerge)
	if len(job.ID) != 12 {
		t.Errorf("job ID length = %d, want 12", len(job.ID))
	}
	if job.State() != StateStarting {
		t.Errorf("new job state = %v, want starting", job.State())
	}
}

func TestGetUnknownJob(t *testing.T) {
	s := newTestService(t, testConfig())

	if _, err := s.Get("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestGetExpiredJob(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTTL = 1
	s := newTestService(t, cfg)

	job := s.newJob(KindRemux)
	job.CreatedAt = time.Now().Add(-2 * time.Second)

	if _, err := s.Get(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Get(expired) error = %v, want ErrJobNotFound", err)
	}
}

func TestWaitReadySucceedsOnOutput(t *testing.T) {
	// echo stands in for ffmpeg: it prints its arguments and exits, which
	// is enough output to settle the job as ready.
	s := newTestService(t, testConfig())

	job := s.CreateRemux("http://example.com/playlist.m3u8")
	if err := s.WaitReady(context.Background(), job); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if job.State() != StateReady {
		t.Errorf("State = %v, want ready", job.State())
	}
	if job.BytesProduced() == 0 {
		t.Error("expected some output bytes")
	}
}

func TestWaitReadyFailsWithoutOutput(t *testing.T) {
	// true exits cleanly without producing any output
	cfg := testConfig()
	cfg.FFmpegBinary = "true"
	s := newTestService(t, cfg)

	job := s.CreateMerge(&SplitStreams{
		VideoURL: "http://example.com/v",
		AudioURL: "http://example.com/a",
	})

	err := s.WaitReady(context.Background(), job)
	if !errors.Is(err, ErrTransformFailed) {
		t.Fatalf("WaitReady() error = %v, want ErrTransformFailed", err)
	}

	// Failed jobs are removed from the registry
	if _, err := s.Get(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Get() after failure error = %v, want ErrJobNotFound", err)
	}
}

func TestChunksDrainAfterCompletion(t *testing.T) {
	s := newTestService(t, testConfig())

	job := s.CreateRemux("http://example.com/playlist.m3u8")
	if err := s.WaitReady(context.Background(), job); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}

	var total int
	for chunk := range job.Chunks() {
		total += len(chunk)
	}
	if int64(total) != job.BytesProduced() {
		t.Errorf("drained %d bytes, produced %d", total, job.BytesProduced())
	}
}

func TestEvictExpired(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTTL = 1
	s := newTestService(t, cfg)

	job := s.newJob(KindMerge)
	job.cancel = func() {}
	job.CreatedAt = time.Now().Add(-2 * time.Second)

	s.evictExpired()

	s.mu.RLock()
	_, ok := s.jobs[job.ID]
	s.mu.RUnlock()
	if ok {
		t.Error("expired job should have been evicted")
	}
}

func TestJobSettlesOnce(t *testing.T) {
	s := newTestService(t, testConfig())
	job := s.newJob(KindMerge)

	job.markReady()
	job.markFailed(errors.New("late failure"))

	if job.State() != StateReady {
		t.Errorf("State = %v, want ready (first settle wins)", job.State())
	}
	if job.Err() != nil {
		t.Errorf("Err = %v, want nil", job.Err())
	}
}
