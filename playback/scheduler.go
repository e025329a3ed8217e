// Package playback schedules decoded PCM buffers for gapless sequential
// output.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.dubash.app/dubash/internal/types"
)

// DefaultRate is the sample rate assumed for inbound synthesized audio
// when the session does not declare one.
const DefaultRate = 24000

// Sink is an open playback destination. Buffers arrive in scheduling
// order; at is the offset from the moment the sink was opened.
type Sink interface {
	PlayAt(pcm []byte, sampleRate int, at time.Duration) error
	Close() error
}

// OpenFunc opens a playback destination at the given sample rate.
type OpenFunc func(sampleRate int) (Sink, error)

// Scheduler accepts PCM buffers in arrival order and schedules them
// back-to-back on a single Sink. The sink is opened lazily on the first
// buffer and reused until Stop.
type Scheduler struct {
	mu    sync.Mutex
	open  OpenFunc
	clock func() time.Duration
	sink  Sink
	epoch time.Time
	next  time.Duration
}

// NewScheduler creates a scheduler over the given sink opener.
func NewScheduler(open OpenFunc) *Scheduler {
	return &Scheduler{open: open}
}

// Play schedules one buffer of little-endian 16-bit mono PCM. A
// zero-length buffer is a no-op. Each buffer starts at
// max(now, previous end), so bursts play with no gap and no overlap.
func (s *Scheduler) Play(pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		sampleRate = DefaultRate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		sink, err := s.open(sampleRate)
		if err != nil {
			return fmt.Errorf("open playback sink: %w", err)
		}
		s.sink = sink
		s.epoch = time.Now()
		s.next = 0
		slog.Debug("playback sink opened", "rate", sampleRate)
	}

	now := s.now()
	start := now
	if s.next > start {
		start = s.next
	}

	duration := types.WireFrame{Data: pcm, SampleRate: sampleRate}.Duration()
	if err := s.sink.PlayAt(pcm, sampleRate, start); err != nil {
		return fmt.Errorf("schedule buffer: %w", err)
	}
	s.next = start + duration
	return nil
}

// Stop tears down the playback destination and resets the cursor. Safe to
// call when nothing is playing; the next Play reopens a fresh sink.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			slog.Warn("close playback sink", "error", err)
		}
		s.sink = nil
	}
	s.next = 0
}

func (s *Scheduler) now() time.Duration {
	if s.clock != nil {
		return s.clock()
	}
	return time.Since(s.epoch)
}
