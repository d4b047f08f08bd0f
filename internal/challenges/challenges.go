// Package challenges tracks the drawing challenges the user has joined.
package challenges

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/pixiworld/pixiworld/internal/store"
	"github.com/pixiworld/pixiworld/internal/types"
)

const slotKey = "pixiworld:activeChallenges"

var (
	ErrEmptyTitle    = errors.New("challenge title is empty")
	ErrAlreadyJoined = errors.New("challenge already joined")
)

type Service struct {
	active *store.Slot[types.Challenge]
	log    *slog.Logger
}

func New(backend store.Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	slot := store.NewSlot[types.Challenge](backend, slotKey, logger).
		WithValidator(func(c types.Challenge) error {
			if strings.TrimSpace(c.Title) == "" {
				return ErrEmptyTitle
			}
			return nil
		})
	return &Service{active: slot, log: logger.With("component", "challenges")}
}

// Join adds a challenge. Titles are unique.
func (s *Service) Join(title, reward string) (types.Challenge, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Challenge{}, ErrEmptyTitle
	}
	active := s.active.ReadAll()
	if _, found := find(active, title); found {
		return types.Challenge{}, fmt.Errorf("%w: %q", ErrAlreadyJoined, title)
	}
	c := types.Challenge{Title: title, Reward: strings.TrimSpace(reward)}
	if err := s.active.WriteAll(append(active, c)); err != nil {
		return types.Challenge{}, err
	}
	s.log.Info("challenge joined", "title", title)
	return c, nil
}

// Remove drops a joined challenge. It returns false when none matches.
func (s *Service) Remove(title string) (bool, error) {
	active := s.active.ReadAll()
	idx, found := find(active, strings.TrimSpace(title))
	if !found {
		return false, nil
	}
	if err := s.active.WriteAll(append(active[:idx], active[idx+1:]...)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) List() []types.Challenge {
	return s.active.ReadAll()
}

func find(active []types.Challenge, title string) (int, bool) {
	_, idx, found := lo.FindIndexOf(active, func(c types.Challenge) bool {
		return c.Title == title
	})
	return idx, found
}
