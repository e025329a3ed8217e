//go:build !linux

package audiocapture

// New returns ErrUnsupported on platforms without a capture backend.
func New(sampleRate int) (Capturer, error) {
	return nil, ErrUnsupported
}
