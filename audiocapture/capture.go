// Package audiocapture provides microphone capture behind a small
// interface. Samples are delivered as mono float32 in [-1, 1] at the rate
// the capturer was created with.
package audiocapture

import "errors"

var (
	// ErrUnsupported is returned where no capture backend exists.
	ErrUnsupported = errors.New("audiocapture: no capture backend on this platform")
	// ErrRunning is returned when Start is called on an active capturer.
	ErrRunning = errors.New("audiocapture: already capturing")
	// ErrPermission indicates the OS denied microphone access.
	ErrPermission = errors.New("audiocapture: microphone access denied")
	// ErrDevice indicates no usable input device was found or it is busy.
	ErrDevice = errors.New("audiocapture: input device unavailable")
)

// Capturer delivers captured audio to a handler until stopped.
type Capturer interface {
	// Start begins capture, invoking handler for each frame of samples.
	// The handler runs on the capture goroutine and must not block.
	Start(handler func(samples []float32)) error

	// Stop ends capture. Safe to call multiple times.
	Stop() error

	// SampleRate returns the native capture rate in Hz.
	SampleRate() int
}
