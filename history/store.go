// Package history archives conversation turns across sessions. Only text
// ever hits disk; audio is never persisted.
package history

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"go.dubash.app/dubash/internal/types"
)

// Store is a Badger-backed turn archive.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the archive at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return &Store{db: db}, nil
}

// Put upserts one turn under its session. Called again as an open turn
// grows, so the stored content converges on the final text.
func (s *Store) Put(sessionID string, turn types.ConversationTurn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(turnKey(sessionID, turn.Seq), data)
	})
	if err != nil {
		return fmt.Errorf("store turn: %w", err)
	}
	return nil
}

// Turns returns the archived turns for a session in creation order.
func (s *Store) Turns(sessionID string) ([]types.ConversationTurn, error) {
	var turns []types.ConversationTurn
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("turn/" + sessionID + "/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var turn types.ConversationTurn
				if err := json.Unmarshal(val, &turn); err != nil {
					return fmt.Errorf("decode turn: %w", err)
				}
				turns = append(turns, turn)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return turns, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// turnKey orders turns lexicographically by sequence within a session.
func turnKey(sessionID string, seq int) []byte {
	return fmt.Appendf(nil, "turn/%s/%08d", sessionID, seq)
}
