package livebridge

import (
	"fmt"
	"strings"
	"time"

	"go.dubash.app/dubash/internal/types"
)

// TurnLog reduces a stream of transcript fragments into an append-only
// list of conversation turns. Fragments sharing a direction accumulate
// into one open turn; a direction change closes it and opens the next.
// Not safe for concurrent use; the orchestrator serializes callers.
type TurnLog struct {
	turns   []types.ConversationTurn
	counter int
	openIdx int // index of the open turn, -1 when none
	openDir types.Direction

	now func() time.Time
}

// NewTurnLog creates an empty log.
func NewTurnLog() *TurnLog {
	return &TurnLog{openIdx: -1, now: time.Now}
}

// Add processes one fragment and returns the affected turn plus whether a
// new turn was opened. Blank fragments are ignored and return ok=false.
func (l *TurnLog) Add(dir types.Direction, text string) (turn types.ConversationTurn, opened bool, ok bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return types.ConversationTurn{}, false, false
	}

	if l.openIdx >= 0 && l.openDir == dir {
		t := &l.turns[l.openIdx]
		t.Content += " " + trimmed
		return *t, false, true
	}

	l.counter++
	l.turns = append(l.turns, types.ConversationTurn{
		ID:        fmt.Sprintf("audio-%s-%d", dir, l.counter),
		Seq:       l.counter,
		Role:      dir.Role(),
		Content:   trimmed,
		Timestamp: l.now(),
	})
	l.openIdx = len(l.turns) - 1
	l.openDir = dir
	return l.turns[l.openIdx], true, true
}

// Tag records the detected language of a turn. No-op for unknown IDs.
func (l *TurnLog) Tag(id, lang string) {
	for i := range l.turns {
		if l.turns[i].ID == id {
			l.turns[i].Lang = lang
			return
		}
	}
}

// CloseOpen closes the open turn without touching the list, so the next
// fragment starts a fresh one even if its direction matches.
func (l *TurnLog) CloseOpen() {
	l.openIdx = -1
	l.openDir = ""
}

// Turns returns a copy of the list, ordered by creation.
func (l *TurnLog) Turns() []types.ConversationTurn {
	out := make([]types.ConversationTurn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *TurnLog) Len() int {
	return len(l.turns)
}

// Reset clears the list, the open-turn pointer, and the id counter.
func (l *TurnLog) Reset() {
	l.turns = nil
	l.counter = 0
	l.CloseOpen()
}
