// Package gemini implements the session protocol adapter for the remote
// live translation service: one persistent websocket per session, audio in
// both directions, transcription events for both sides of the conversation.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"go.dubash.app/dubash/internal/types"
)

// DefaultEndpoint is the live service websocket endpoint.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"

var (
	// ErrConnection indicates the handshake failed. The credential used is
	// single-use; callers must mint a fresh one before trying again.
	ErrConnection = errors.New("gemini: connection failed")
	// ErrTransmit indicates a send failed on an established session. The
	// session is closed rather than the error being fatal.
	ErrTransmit = errors.New("gemini: send failed")
	// ErrDecode marks a malformed inbound payload. The offending message is
	// dropped and the session continues.
	ErrDecode = errors.New("gemini: malformed server payload")
)

// State is the lifecycle of one session handle. There is no way back from
// Closed; a new session needs a new handle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosed
)

// Handlers receive inbound events. They are passed explicitly at dial time
// and invoked from the session's read goroutine, one event at a time.
type Handlers struct {
	// Audio receives decoded synthesized speech.
	Audio func(pcm []byte, sampleRate int)
	// Transcript receives one text fragment tagged with its direction.
	Transcript func(direction types.Direction, text string)
	// Closed fires once when the server closes the connection or the
	// transport fails. It does not fire for a local Disconnect.
	Closed func(code int, reason string)
}

// Params configures one session.
type Params struct {
	Token             string // single-use credential from the session broker
	Model             string
	SystemInstruction string
	Voice             string
	// OutputRate is assumed for synthesized audio parts whose mime type
	// carries no rate. Zero means DefaultOutputRate.
	OutputRate int
	Endpoint   string // override for tests
}

// Session is one live connection to the remote service.
type Session struct {
	conn       *websocket.Conn
	handlers   Handlers
	outputRate int
	state      atomic.Int32

	writeMu sync.Mutex
	// notify swallows the Closed callback after a local Disconnect.
	notify sync.Once
}

// Dial establishes the connection, sends the session configuration, and
// waits for the server's setup acknowledgement. The credential is consumed
// whether or not the handshake succeeds.
func Dial(ctx context.Context, p Params, h Handlers) (*Session, error) {
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.Voice == "" {
		p.Voice = DefaultVoice
	}
	if p.OutputRate == 0 {
		p.OutputRate = DefaultOutputRate
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	s := &Session{handlers: h, outputRate: p.OutputRate}
	s.state.Store(int32(StateConnecting))

	conn, _, err := websocket.Dial(ctx, endpoint+"?access_token="+url.QueryEscape(p.Token), nil)
	if err != nil {
		s.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("%w: dial: %v", ErrConnection, err)
	}
	s.conn = conn

	setup := clientMessage{Setup: &setupPayload{
		Model: p.Model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoice{VoiceName: p.Voice},
				},
			},
		},
		SystemInstruction:        &content{Parts: []part{{Text: p.SystemInstruction}}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}}
	if err := s.writeJSON(ctx, setup); err != nil {
		s.teardown()
		return nil, fmt.Errorf("%w: send setup: %v", ErrConnection, err)
	}

	// The server acknowledges configuration before any content flows.
	_, data, err := conn.Read(ctx)
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("%w: handshake: %v", ErrConnection, err)
	}
	var ack serverMessage
	if err := json.Unmarshal(data, &ack); err != nil || ack.SetupComplete == nil {
		s.teardown()
		return nil, fmt.Errorf("%w: unexpected handshake reply", ErrConnection)
	}

	s.state.Store(int32(StateConnected))
	go s.readLoop()

	slog.Info("live session connected", "model", p.Model, "voice", p.Voice)
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// SendAudio transmits one wire frame as a realtime audio input event.
// While the session is not connected this is a silent no-op: audio captured
// before the handshake or after teardown is discarded, never queued.
func (s *Session) SendAudio(frame types.WireFrame) error {
	if s.State() != StateConnected {
		return nil
	}

	msg := clientMessage{RealtimeInput: &realtimeInput{Audio: &blob{
		MimeType: pcmMimeType(frame.SampleRate),
		Data:     base64.StdEncoding.EncodeToString(frame.Data),
	}}}
	if err := s.writeJSON(context.Background(), msg); err != nil {
		// A failed send degrades the session to disconnected; the read
		// loop observes the dead transport and fires the close handler.
		s.state.Store(int32(StateClosed))
		return fmt.Errorf("%w: %v", ErrTransmit, err)
	}
	return nil
}

// Disconnect closes the session. Idempotent; never errors once closed, and
// suppresses the remote-close callback for this teardown.
func (s *Session) Disconnect() {
	s.notify.Do(func() {}) // consume: local teardown is not a remote close
	if State(s.state.Swap(int32(StateClosed))) == StateClosed {
		return
	}
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	slog.Debug("live session disconnected")
}

func (s *Session) writeJSON(ctx context.Context, msg clientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *Session) readLoop() {
	ctx := context.Background()
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.state.Store(int32(StateClosed))
			code := int(websocket.CloseStatus(err))
			s.notify.Do(func() {
				slog.Warn("live session closed by remote", "code", code, "error", err)
				if s.handlers.Closed != nil {
					s.handlers.Closed(code, err.Error())
				}
			})
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("dropping inbound message", "error", fmt.Errorf("%w: %v", ErrDecode, err))
			continue
		}
		s.dispatch(msg)
	}
}

// dispatch routes one server message to the handlers. All three
// transcription sources are equivalent transcript producers; the model's
// own text parts count as incoming.
func (s *Session) dispatch(msg serverMessage) {
	sc := msg.ServerContent
	if sc == nil {
		return
	}

	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					slog.Warn("dropping audio part", "error", fmt.Errorf("%w: %v", ErrDecode, err))
					continue
				}
				if s.handlers.Audio != nil {
					s.handlers.Audio(pcm, parseRate(p.InlineData.MimeType, s.outputRate))
				}
			}
			if p.Text != "" && s.handlers.Transcript != nil {
				s.handlers.Transcript(types.DirectionIncoming, p.Text)
			}
		}
	}

	if s.handlers.Transcript != nil {
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			s.handlers.Transcript(types.DirectionOutgoing, sc.InputTranscription.Text)
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			s.handlers.Transcript(types.DirectionIncoming, sc.OutputTranscription.Text)
		}
	}
}

// teardown closes the transport during a failed handshake.
func (s *Session) teardown() {
	s.state.Store(int32(StateClosed))
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusInternalError, "handshake failed")
	}
}
