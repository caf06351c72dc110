package stream

import "errors"

// Sentinel errors for stream transform operations.
var (
	// ErrTransformFailed indicates a merge/remux job could not produce a
	// servable stream. Dispatch degrades to direct playback.
	ErrTransformFailed = errors.New("stream transform failed")

	// ErrResolveFailed indicates the source URL could not be resolved to
	// direct stream URLs.
	ErrResolveFailed = errors.New("stream url resolution failed")

	// ErrJobNotFound indicates the stream id is unknown or expired.
	ErrJobNotFound = errors.New("stream job not found")
)
