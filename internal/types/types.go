// Package types provides shared type definitions for the application.
package types

import "time"

// Direction identifies which side of the conversation produced a speech
// fragment: the traveler speaking into the microphone, or the remote
// service's translated/synthesized reply.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// Role is the message role a direction maps to in the conversation list.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Role returns the conversation role for fragments with this direction.
func (d Direction) Role() Role {
	if d == DirectionOutgoing {
		return RoleUser
	}
	return RoleAssistant
}

// WireFrame is a block of encoded PCM audio ready for transport: mono,
// 16-bit signed little-endian samples at the declared rate.
type WireFrame struct {
	Data       []byte
	SampleRate int
}

// Duration returns the playback duration of the frame.
func (f WireFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	samples := len(f.Data) / 2
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// ConversationTurn is an aggregated message built from one or more
// transcript fragments sharing the same direction. Content grows while the
// turn is open; the timestamp is fixed at creation.
type ConversationTurn struct {
	ID        string    `json:"id"`
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"` // detected BCP-47 tag, best effort
	Timestamp time.Time `json:"timestamp"`
}

// SessionRequest is what the core sends to the session broker.
type SessionRequest struct {
	Location       string    `json:"location"`
	TargetLanguage string    `json:"targetLanguage"`
	Direction      Direction `json:"direction"`
}

// Grant is a short-lived, single-use credential issued by the session
// broker, plus the model identifier the session should be opened against.
type Grant struct {
	Token string `json:"token"`
	Model string `json:"model"`
}

// SessionStatus is the read-only projection of a live session exposed to
// the UI layer.
type SessionStatus struct {
	Active     bool               `json:"active"`
	Connecting bool               `json:"connecting"`
	Messages   []ConversationTurn `json:"messages"`
	Err        string             `json:"error,omitempty"`
}
