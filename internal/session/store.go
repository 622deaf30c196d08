// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session persists the panel widget state so a restarted daemon
// resumes where it stopped.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var stateKey = []byte("panel:state")

// State is the persisted part of a panel session.
type State struct {
	Widgets map[string]string `json:"widgets"`
	Theme   string            `json:"theme"`
	SavedAt time.Time         `json:"saved_at"`
}

// Store is a badger-backed State store.
type Store struct {
	db *badger.DB
}

// Open opens the store in dir. An empty dir keeps the state in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("session: open %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Save replaces the stored state.
func (s *Store) Save(_ context.Context, st State) error {
	if st.SavedAt.IsZero() {
		st.SavedAt = time.Now().UTC()
	}
	buf, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey, buf)
	})
}

// Load returns the stored state; ok is false when nothing was saved yet.
func (s *Store) Load(_ context.Context) (State, bool, error) {
	var st State
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("session: load: %w", err)
	}
	return st, true, nil
}

// Clear removes the stored state.
func (s *Store) Clear(_ context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(stateKey)
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
