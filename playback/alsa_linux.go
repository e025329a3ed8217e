//go:build linux

package playback

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"
)

// alsaSink streams scheduled buffers into an aplay subprocess. The player
// consumes the pipe in real time, so sequential writes of back-to-back
// buffers come out gapless without explicit timing on our side.
type alsaSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// OpenDefault returns the platform playback backend.
func OpenDefault() OpenFunc { return OpenALSA() }

// OpenALSA returns an OpenFunc backed by aplay.
func OpenALSA() OpenFunc {
	return func(sampleRate int) (Sink, error) {
		cmd := exec.Command("aplay",
			"-q",
			"-t", "raw",
			"-f", "S16_LE",
			"-c", "1",
			"-r", strconv.Itoa(sampleRate),
		)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("open playback pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start aplay: %w", err)
		}
		return &alsaSink{cmd: cmd, stdin: stdin}, nil
	}
}

func (s *alsaSink) PlayAt(pcm []byte, sampleRate int, at time.Duration) error {
	// Ordering is what matters on a pipe sink; the scheduler already
	// guarantees buffers arrive in start-time order.
	_, err := s.stdin.Write(pcm)
	return err
}

func (s *alsaSink) Close() error {
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}
