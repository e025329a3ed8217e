//go:build linux

package audiocapture

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// frameSamples is the number of samples delivered per handler invocation.
const frameSamples = 4096

// alsaCapture reads raw PCM from an arecord subprocess. Keeping the device
// behind a pipe avoids a CGo dependency on libasound.
type alsaCapture struct {
	mu         sync.Mutex
	sampleRate int
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	done       chan error // receives the process exit exactly once
	running    bool
}

// New creates a microphone capturer at the given sample rate (default
// 48000 if zero).
func New(sampleRate int) (Capturer, error) {
	if sampleRate == 0 {
		sampleRate = 48000
	}
	if _, err := exec.LookPath("arecord"); err != nil {
		return nil, fmt.Errorf("%w: arecord not found", ErrUnsupported)
	}
	return &alsaCapture{sampleRate: sampleRate}, nil
}

func (c *alsaCapture) Start(handler func(samples []float32)) error {
	if handler == nil {
		return errors.New("audiocapture: nil handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrRunning
	}

	cmd := exec.Command("arecord",
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-c", "1",
		"-r", strconv.Itoa(c.sampleRate),
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open capture pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// arecord exits immediately when it cannot open the device; give it a
	// moment so that surfaces as a Start error instead of a dead stream.
	select {
	case err := <-done:
		_ = stdout.Close()
		detail := strings.TrimSpace(stderr.String())
		if detail == "" && err != nil {
			detail = err.Error()
		}
		return fmt.Errorf("%w: %s", classifyCaptureError(detail), detail)
	case <-time.After(100 * time.Millisecond):
	}

	c.cmd = cmd
	c.stdout = stdout
	c.done = done
	c.running = true

	go c.readLoop(stdout, handler, &stderr)
	return nil
}

// classifyCaptureError maps arecord's failure output to the capture error
// taxonomy: permission problems need user action, everything else is a
// device condition.
func classifyCaptureError(detail string) error {
	if strings.Contains(strings.ToLower(detail), "permission denied") {
		return ErrPermission
	}
	return ErrDevice
}

func (c *alsaCapture) readLoop(r io.Reader, handler func([]float32), stderr *strings.Builder) {
	buf := make([]byte, frameSamples*2)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}

		samples := make([]float32, frameSamples)
		for i := range samples {
			s := int16(buf[i*2]) | int16(buf[i*2+1])<<8
			samples[i] = float32(s) / 32768
		}
		handler(samples)
	}
}

func (c *alsaCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	_ = c.stdout.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	<-c.done
	c.cmd = nil
	c.stdout = nil
	c.done = nil
	return nil
}

func (c *alsaCapture) SampleRate() int {
	return c.sampleRate
}
