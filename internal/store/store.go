// Package store owns typed JSON documents kept in named slots of the
// key-value namespace. It is the only code that reads or writes slots
// directly, and it isolates callers from corrupted content.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pixiworld/pixiworld/internal/kv"
)

// Backend is the persistence API a slot is stored in.
type Backend interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Slot is a JSON array of T stored under one key.
type Slot[T any] struct {
	backend  Backend
	key      string
	log      *slog.Logger
	validate func(T) error
}

// NewSlot creates a slot for key. A nil logger discards output.
func NewSlot[T any](backend Backend, key string, logger *slog.Logger) *Slot[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Slot[T]{
		backend: backend,
		key:     key,
		log:     logger.With("slot", key),
	}
}

// WithValidator sets a per-record check. Records that fail it are dropped
// on read; the rest of the slot is kept.
func (s *Slot[T]) WithValidator(fn func(T) error) *Slot[T] {
	s.validate = fn
	return s
}

// Key returns the slot key.
func (s *Slot[T]) Key() string { return s.key }

// ReadAll returns the stored records. Missing, unreadable or corrupted
// slots read as empty; a corrupted slot is also removed.
func (s *Slot[T]) ReadAll() []T {
	items, _ := s.Load()
	return items
}

// Load is ReadAll that also reports whether the slot held a usable document.
func (s *Slot[T]) Load() ([]T, bool) {
	items, found, _ := s.Fetch()
	return items, found
}

// Fetch is Load that also returns backend read faults. A faulted read is
// neither found nor absent: callers must not write defaults over it.
// Missing and corrupted slots return found == false and a nil error.
func (s *Slot[T]) Fetch() (items []T, found bool, err error) {
	raw, err := s.backend.Get(s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		s.log.Warn("read failed, treating slot as empty", "err", err)
		return nil, false, fmt.Errorf("failed to read slot %s: %w", s.key, err)
	}
	if raw == "" {
		return nil, false, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.discard(err)
		return nil, false, nil
	}

	items = make([]T, 0, len(records))
	for i, rec := range records {
		var item T
		if err := json.Unmarshal(rec, &item); err != nil {
			s.discard(fmt.Errorf("record %d: %w", i, err))
			return nil, false, nil
		}
		if s.validate != nil {
			if err := s.validate(item); err != nil {
				s.log.Warn("dropping invalid record", "index", i, "err", err)
				continue
			}
		}
		items = append(items, item)
	}
	return items, true, nil
}

// discard wipes a corrupted slot. The decode error is logged, never returned.
func (s *Slot[T]) discard(cause error) {
	s.log.Warn("corrupt slot, resetting", "err", cause)
	if err := s.backend.Remove(s.key); err != nil {
		s.log.Error("failed to remove corrupt slot", "err", err)
	}
}

// WriteAll serializes the full sequence and overwrites the slot in one write.
func (s *Slot[T]) WriteAll(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal slot %s: %w", s.key, err)
	}
	if err := s.backend.Set(s.key, string(data)); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the slot entirely, which is distinct from writing an empty array.
func (s *Slot[T]) Clear() error {
	if err := s.backend.Remove(s.key); err != nil {
		return fmt.Errorf("failed to clear slot %s: %w", s.key, err)
	}
	return nil
}
