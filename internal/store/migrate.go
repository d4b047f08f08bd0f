package store

import (
	"errors"
	"fmt"

	"github.com/pixiworld/pixiworld/internal/kv"
)

// MigrateLegacy copies oldKey to newKey and removes oldKey, but only when
// oldKey holds data and newKey is missing or empty. It is safe to call on
// every startup. The returned bool reports whether anything was moved.
func MigrateLegacy(backend Backend, oldKey, newKey string) (bool, error) {
	if oldKey == "" || oldKey == newKey {
		return false, nil
	}

	old, err := backend.Get(oldKey)
	if errors.Is(err, kv.ErrNotFound) || (err == nil && old == "") {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read legacy slot %s: %w", oldKey, err)
	}

	cur, err := backend.Get(newKey)
	if err == nil && cur != "" {
		return false, nil
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return false, fmt.Errorf("failed to read slot %s: %w", newKey, err)
	}

	if err := backend.Set(newKey, old); err != nil {
		return false, fmt.Errorf("failed to write slot %s: %w", newKey, err)
	}
	if err := backend.Remove(oldKey); err != nil {
		return true, fmt.Errorf("failed to remove legacy slot %s: %w", oldKey, err)
	}
	return true, nil
}
