//go:build !linux

package playback

import "errors"

// OpenDefault returns the platform playback backend. No backend exists on
// this platform.
func OpenDefault() OpenFunc {
	return func(sampleRate int) (Sink, error) {
		return nil, errors.New("playback: no audio backend on this platform")
	}
}
