package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/pixiworld/pixiworld/internal/kv"
)

// Text is a plain string stored under one key.
type Text struct {
	backend Backend
	key     string
	log     *slog.Logger
}

func NewText(backend Backend, key string, logger *slog.Logger) *Text {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Text{backend: backend, key: key, log: logger.With("slot", key)}
}

// Get returns the value and whether the slot exists.
func (t *Text) Get() (string, bool) {
	v, err := t.backend.Get(t.key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", false
	}
	if err != nil {
		t.log.Warn("read failed, treating slot as empty", "err", err)
		return "", false
	}
	return v, true
}

func (t *Text) Set(v string) error {
	if err := t.backend.Set(t.key, v); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", t.key, err)
	}
	return nil
}

func (t *Text) Clear() error {
	if err := t.backend.Remove(t.key); err != nil {
		return fmt.Errorf("failed to clear slot %s: %w", t.key, err)
	}
	return nil
}

// Int is a stringified integer stored under one key. Non-numeric content
// is treated like a corrupted JSON slot: removed and read as absent.
type Int struct {
	text *Text
}

func NewInt(backend Backend, key string, logger *slog.Logger) *Int {
	return &Int{text: NewText(backend, key, logger)}
}

func (i *Int) Get() (int, bool) {
	raw, ok := i.text.Get()
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		i.text.log.Warn("corrupt slot, resetting", "err", err)
		if err := i.text.Clear(); err != nil {
			i.text.log.Error("failed to remove corrupt slot", "err", err)
		}
		return 0, false
	}
	return n, true
}

func (i *Int) Set(n int) error {
	return i.text.Set(strconv.Itoa(n))
}

func (i *Int) Clear() error {
	return i.text.Clear()
}
