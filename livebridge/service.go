// Package livebridge wires microphone capture, the live session protocol
// adapter, audio playback, and transcript aggregation into one
// bidirectional translation session.
package livebridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"go.dubash.app/dubash/audio"
	"go.dubash.app/dubash/audiocapture"
	"go.dubash.app/dubash/internal/types"
	"go.dubash.app/dubash/livebridge/gemini"
	"go.dubash.app/dubash/playback"
)

// Broker issues single-use session credentials.
type Broker interface {
	Mint(ctx context.Context, req types.SessionRequest) (types.Grant, error)
}

// Conn is the live connection a session owns once connected.
type Conn interface {
	SendAudio(types.WireFrame) error
	Disconnect()
}

// DialFunc opens the protocol adapter. Injectable for tests; defaults to
// the gemini adapter.
type DialFunc func(ctx context.Context, p gemini.Params, h gemini.Handlers) (Conn, error)

// Archiver persists turns as they grow. *history.Store implements it.
type Archiver interface {
	Put(sessionID string, turn types.ConversationTurn) error
}

// Tagger classifies the language of turn text. *langdetect.Detector
// implements it.
type Tagger interface {
	Detect(text string) (string, bool)
}

// Options configures a Service. Broker, Capture, and Playback are
// required; the rest are optional.
type Options struct {
	Broker   Broker
	Capture  audiocapture.Capturer
	Playback *playback.Scheduler
	Dial     DialFunc
	Archive  Archiver
	Detect   Tagger
	Model    string // overrides the broker's model identifier when set
	Voice    string
	// PlaybackRate is the sample rate assumed for synthesized audio
	// frames that do not declare one. Zero means the adapter default.
	PlaybackRate int
}

// Service is the session orchestrator: the only component the UI layer
// talks to. It owns exactly one live connection, one capture stream, and
// one playback destination at a time, and serializes all state mutation
// behind one mutex so capture, network, and user callbacks never
// interleave.
type Service struct {
	opts Options

	mu         sync.Mutex
	gen        uint64 // bumped on every start/stop; stale callbacks check it
	active     bool
	connecting bool
	conn       Conn
	turns      *TurnLog
	sessionID  string
	errMsg     string
}

// NewService creates a session orchestrator.
func NewService(opts Options) (*Service, error) {
	if opts.Broker == nil || opts.Capture == nil || opts.Playback == nil {
		return nil, errors.New("livebridge: broker, capture, and playback are required")
	}
	if opts.Dial == nil {
		opts.Dial = func(ctx context.Context, p gemini.Params, h gemini.Handlers) (Conn, error) {
			return gemini.Dial(ctx, p, h)
		}
	}
	return &Service{opts: opts, turns: NewTurnLog()}, nil
}

// Start acquires a credential, connects the protocol adapter, and begins
// streaming microphone audio into it. Any failure along the way performs
// full cleanup and leaves no partial state behind.
func (s *Service) Start(ctx context.Context, location, language string, direction types.Direction) error {
	s.mu.Lock()
	if s.active || s.connecting {
		s.mu.Unlock()
		return errors.New("livebridge: session already starting or active")
	}
	s.gen++
	gen := s.gen
	s.connecting = true
	s.errMsg = ""
	s.sessionID = uuid.NewString()
	sessionID := s.sessionID
	s.mu.Unlock()

	slog.Info("starting live session",
		"session", sessionID, "location", location, "language", language, "direction", direction)

	grant, err := s.opts.Broker.Mint(ctx, types.SessionRequest{
		Location:       location,
		TargetLanguage: language,
		Direction:      direction,
	})
	if err != nil {
		return s.fail(gen, fmt.Errorf("acquire session credential: %w", err))
	}

	model := s.opts.Model
	if model == "" {
		model = grant.Model
	}

	conn, err := s.opts.Dial(ctx, gemini.Params{
		Token:             grant.Token,
		Model:             model,
		SystemInstruction: SystemInstruction(location, language),
		Voice:             s.opts.Voice,
		OutputRate:        s.opts.PlaybackRate,
	}, gemini.Handlers{
		Audio:      func(pcm []byte, rate int) { s.handleAudio(gen, pcm, rate) },
		Transcript: func(dir types.Direction, text string) { s.handleTranscript(gen, dir, text) },
		Closed:     func(code int, reason string) { s.handleRemoteClose(gen, code, reason) },
	})
	if err != nil {
		return s.fail(gen, fmt.Errorf("connect live session: %w", err))
	}

	s.mu.Lock()
	if s.gen != gen || !s.connecting {
		s.mu.Unlock()
		// Stopped while the connect was in flight; the late adapter must
		// not outlive the session it belonged to.
		conn.Disconnect()
		return errors.New("livebridge: session superseded during connect")
	}
	s.conn = conn
	s.mu.Unlock()

	if err := s.opts.Capture.Start(func(samples []float32) { s.forward(gen, samples) }); err != nil {
		return s.fail(gen, fmt.Errorf("start microphone capture: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// Stopped while capture was starting; the racing Stop could not
		// see this capture, so it is ours to release.
		if err := s.opts.Capture.Stop(); err != nil {
			slog.Warn("stop capture", "error", err)
		}
		return errors.New("livebridge: session superseded during connect")
	}
	s.active = true
	s.connecting = false
	slog.Info("live session active", "session", sessionID)
	return nil
}

// Stop performs full cleanup and clears the active flag. Safe to call at
// any time, any number of times.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++ // results of any in-flight connect are discarded
	s.cleanupLocked()
	s.active = false
	s.connecting = false
}

// ClearMessages empties the conversation list and resets turn numbering.
func (s *Service) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns.Reset()
}

// Status returns the UI projection of the session.
func (s *Service) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SessionStatus{
		Active:     s.active,
		Connecting: s.connecting,
		Messages:   s.turns.Turns(),
		Err:        s.errMsg,
	}
}

// fail runs full cleanup for a start that could not complete and records
// the error for the UI. The error is returned for the caller's benefit.
func (s *Service) fail(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return err // a newer session owns the state now
	}
	s.cleanupLocked()
	s.active = false
	s.connecting = false
	s.errMsg = err.Error()
	slog.Error("live session failed", "error", err)
	return err
}

// cleanupLocked releases session resources in a fixed order: capture
// first (no more outbound frames), then the connection, then playback,
// then the aggregator's open-turn pointer. Every step is idempotent.
func (s *Service) cleanupLocked() {
	if err := s.opts.Capture.Stop(); err != nil {
		slog.Warn("stop capture", "error", err)
	}
	if s.conn != nil {
		s.conn.Disconnect()
		s.conn = nil
	}
	s.opts.Playback.Stop()
	s.turns.CloseOpen()
}

// forward encodes one captured frame and sends it. Frames captured while
// no session is connected are discarded, never queued.
func (s *Service) forward(gen uint64, samples []float32) {
	s.mu.Lock()
	conn := s.conn
	live := s.gen == gen && conn != nil
	s.mu.Unlock()
	if !live {
		return
	}

	frame := audio.Encode(samples, s.opts.Capture.SampleRate())
	if err := conn.SendAudio(frame); err != nil {
		// Degraded, not fatal; the adapter's close path handles teardown.
		slog.Warn("send audio frame", "error", err)
	}
}

func (s *Service) handleAudio(gen uint64, pcm []byte, rate int) {
	s.mu.Lock()
	live := s.gen == gen
	s.mu.Unlock()
	if !live {
		return
	}
	if err := s.opts.Playback.Play(pcm, rate); err != nil {
		slog.Warn("schedule playback", "error", err)
	}
}

func (s *Service) handleTranscript(gen uint64, dir types.Direction, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}

	turn, opened, ok := s.turns.Add(dir, text)
	if !ok {
		return
	}
	if opened && s.opts.Detect != nil {
		if lang, found := s.opts.Detect.Detect(turn.Content); found {
			s.turns.Tag(turn.ID, lang)
			turn.Lang = lang
		}
	}
	if s.opts.Archive != nil {
		if err := s.opts.Archive.Put(s.sessionID, turn); err != nil {
			slog.Warn("archive turn", "error", err)
		}
	}
}

// handleRemoteClose releases capture and playback when the server ends
// the session. State already cleared by a racing Stop is not torn down
// twice; the generation check gates that.
func (s *Service) handleRemoteClose(gen uint64, code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	slog.Warn("live session ended by remote", "code", code, "reason", reason)
	s.conn = nil // transport is already gone
	s.cleanupLocked()
	s.active = false
	s.connecting = false
}
