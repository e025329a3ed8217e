// Package mock provides an in-memory Capturer for tests.
package mock

import (
	"sync"

	"go.dubash.app/dubash/audiocapture"
)

// Capturer records Start/Stop calls and lets tests push frames through the
// registered handler.
type Capturer struct {
	Rate int

	mu      sync.Mutex
	handler func([]float32)
	started int
	stopped int
}

var _ audiocapture.Capturer = (*Capturer)(nil)

func New(rate int) *Capturer {
	if rate == 0 {
		rate = 48000
	}
	return &Capturer{Rate: rate}
}

func (c *Capturer) Start(handler func(samples []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler != nil {
		return audiocapture.ErrRunning
	}
	c.handler = handler
	c.started++
	return nil
}

func (c *Capturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = nil
	c.stopped++
	return nil
}

func (c *Capturer) SampleRate() int { return c.Rate }

// Push feeds a frame to the handler as if captured from the device.
// No-op when not started.
func (c *Capturer) Push(samples []float32) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler(samples)
	}
}

// Running reports whether capture is currently active.
func (c *Capturer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

// Starts returns how many times Start succeeded.
func (c *Capturer) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Stops returns how many times Stop was called.
func (c *Capturer) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
