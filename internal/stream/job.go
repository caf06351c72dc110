package stream

import (
	"sync"
	"time"
)

// Kind distinguishes the two transform types.
type Kind string

const (
	// KindMerge combines separate video and audio streams into one
	// fragmented MP4.
	KindMerge Kind = "merge"

	// KindRemux repackages an HLS playlist into fragmented MP4 without
	// re-encoding.
	KindRemux Kind = "remux"
)

// State is a job's lifecycle state.
type State string

const (
	// StateStarting means ffmpeg is running but no servable output has
	// been buffered yet.
	StateStarting State = "starting"

	// StateReady means enough output is buffered that the device can
	// start pulling the stream.
	StateReady State = "ready"

	// StateFailed means the transform produced no servable output.
	StateFailed State = "failed"
)

// chunkSize is how much ffmpeg output is read per chunk.
const chunkSize = 64 * 1024

// chunkBuffer bounds how far the producer can run ahead of the device.
const chunkBuffer = 128

// Job is one stream transform: a background ffmpeg process feeding a
// bounded chunk channel that the device drains over HTTP.
//
// The job's lifetime is decoupled from any HTTP request; dispatch waits
// only for readiness and the device pulls the output later.
type Job struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time

	chunks   chan []byte
	settled  chan struct{}
	settleMu sync.Once
	cancel   func()

	mu       sync.Mutex
	state    State
	err      error
	bytesOut int64
}

// Chunks returns the channel the producer feeds. Closed when the
// transform finishes. Intended for a single consumer.
func (j *Job) Chunks() <-chan []byte {
	return j.chunks
}

// State reports the job's current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure cause, if the job failed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// BytesProduced reports how much output the transform has emitted.
func (j *Job) BytesProduced() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.bytesOut
}

// markReady settles the job as servable. First settle wins.
func (j *Job) markReady() {
	j.settleMu.Do(func() {
		j.mu.Lock()
		j.state = StateReady
		j.mu.Unlock()
		close(j.settled)
	})
}

// markFailed settles the job as failed. First settle wins.
func (j *Job) markFailed(err error) {
	j.settleMu.Do(func() {
		j.mu.Lock()
		j.state = StateFailed
		j.err = err
		j.mu.Unlock()
		close(j.settled)
	})
}

// addBytes accumulates the output counter.
func (j *Job) addBytes(n int) {
	j.mu.Lock()
	j.bytesOut += int64(n)
	j.mu.Unlock()
}
