package stream

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tvcastd/tvcast/internal/infrastructure/config"
	"github.com/tvcastd/tvcast/internal/infrastructure/logging"
)

// janitorInterval is how often expired jobs are swept.
const janitorInterval = time.Minute

// Service owns stream transform jobs: creation, readiness, serving
// lookup, and TTL eviction.
//
// Safe for concurrent use.
type Service struct {
	cfg      config.StreamConfig
	resolver Resolver
	logger   *logging.Logger

	mu   sync.RWMutex
	jobs map[string]*Job

	stop     chan struct{}
	stopOnce sync.Once
}

// NewService creates a stream service and starts its eviction janitor.
func NewService(cfg config.StreamConfig, resolver Resolver, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		cfg:      cfg,
		resolver: resolver,
		logger:   logger.With("component", "stream"),
		jobs:     make(map[string]*Job),
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Close cancels all jobs and stops the janitor.
func (s *Service) Close() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.cancel != nil {
			job.cancel()
		}
		delete(s.jobs, id)
	}
}

// Resolver exposes the URL resolver for callers that need a direct
// stream URL without a transform job.
func (s *Service) Resolver() Resolver {
	return s.resolver
}

// CreateMerge starts a merge job for separate video+audio streams.
// ffmpeg begins producing immediately so data is buffered by the time
// the device requests the stream.
func (s *Service) CreateMerge(split *SplitStreams) *Job {
	job := s.newJob(KindMerge)
	args := []string{
		"-y", "-loglevel", "error",
		"-probesize", "32K", "-analyzeduration", "500000",
		"-i", split.VideoURL,
		"-i", split.AudioURL,
		"-c", "copy",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4", "pipe:1",
	}
	s.startProducer(job, args)
	s.logger.Info("merge job started", "stream_id", job.ID, "height", split.Height)
	return job
}

// CreateRemux starts an HLS to fragmented MP4 remux job.
func (s *Service) CreateRemux(hlsURL string) *Job {
	job := s.newJob(KindRemux)
	args := []string{
		"-y", "-loglevel", "error",
		"-probesize", "32K", "-analyzeduration", "500000",
		"-allowed_extensions", "ALL",
		"-i", hlsURL,
		"-c", "copy",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4", "pipe:1",
	}
	s.startProducer(job, args)
	s.logger.Info("remux job started", "stream_id", job.ID)
	return job
}

// WaitReady blocks until the job is servable, failed, or the prewarm
// timeout elapses. A timeout fails the transform; dispatch then degrades
// to direct playback.
func (s *Service) WaitReady(ctx context.Context, job *Job) error {
	timer := time.NewTimer(s.cfg.GetPrewarmTimeout())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTransformFailed, ctx.Err())
	case <-timer.C:
		s.remove(job.ID)
		return fmt.Errorf("%w: no output within prewarm window", ErrTransformFailed)
	case <-job.settled:
		if job.State() == StateFailed {
			s.remove(job.ID)
			return fmt.Errorf("%w: %v", ErrTransformFailed, job.Err())
		}
		return nil
	}
}

// Get looks up a job. Expired jobs are treated as absent.
func (s *Service) Get(id string) (*Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrJobNotFound
	}
	if time.Since(job.CreatedAt) > s.cfg.GetSessionTTL() {
		s.remove(id)
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ServingURL is the device-facing URL for a job. The base URL must be
// reachable from the Apple TV, not from this host's loopback.
func (s *Service) ServingURL(id string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/api/appletv/stream/" + id
}

// newJob registers a fresh job in the registry.
func (s *Service) newJob(kind Kind) *Job {
	job := &Job{
		ID:        uuid.NewString()[:12],
		Kind:      kind,
		CreatedAt: time.Now(),
		chunks:    make(chan []byte, chunkBuffer),
		settled:   make(chan struct{}),
		state:     StateStarting,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

// startProducer launches ffmpeg and feeds its stdout into the job.
func (s *Service) startProducer(job *Job, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel

	//nolint:gosec // Binary path comes from validated config
	cmd := exec.CommandContext(ctx, s.cfg.FFmpegBinary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		job.markFailed(fmt.Errorf("creating stdout pipe: %w", err))
		close(job.chunks)
		cancel()
		return
	}

	if err := cmd.Start(); err != nil {
		job.markFailed(fmt.Errorf("starting ffmpeg: %w", err))
		close(job.chunks)
		cancel()
		return
	}

	go s.produce(ctx, job, cmd, stdout)
}

// produce reads ffmpeg output in fixed chunks until EOF or cancellation.
// The job becomes ready once the prewarm threshold is buffered.
func (s *Service) produce(ctx context.Context, job *Job, cmd *exec.Cmd, stdout io.Reader) {
	defer close(job.chunks)

	buf := make([]byte, chunkSize)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			job.addBytes(n)

			select {
			case job.chunks <- chunk:
			case <-ctx.Done():
				_ = cmd.Wait() //nolint:errcheck // Cancelled mid-stream
				return
			}

			if job.BytesProduced() >= int64(s.cfg.PrewarmBytes) {
				job.markReady()
			}
		}
		if readErr != nil {
			break
		}
	}

	err := cmd.Wait()
	switch {
	case job.BytesProduced() == 0:
		if err == nil {
			err = fmt.Errorf("ffmpeg produced no output")
		}
		job.markFailed(err)
		s.logger.Warn("transform produced no output",
			"stream_id", job.ID, "kind", job.Kind, "error", err)
	default:
		// Short streams can finish under the prewarm threshold; output
		// exists, so the job is servable.
		job.markReady()
		if err != nil {
			s.logger.Warn("ffmpeg exited with error after producing output",
				"stream_id", job.ID, "bytes", job.BytesProduced(), "error", err)
		}
	}
}

// remove cancels and deletes a job.
func (s *Service) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		if job.cancel != nil {
			job.cancel()
		}
		delete(s.jobs, id)
	}
}

// janitor sweeps expired jobs until Close.
func (s *Service) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

// evictExpired removes jobs past the session TTL.
func (s *Service) evictExpired() {
	ttl := s.cfg.GetSessionTTL()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if time.Since(job.CreatedAt) > ttl {
			if job.cancel != nil {
				job.cancel()
			}
			delete(s.jobs, id)
			s.logger.Debug("stream job expired", "stream_id", id)
		}
	}
}
