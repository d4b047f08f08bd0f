// Package profile stores the local user's identity and UI preferences.
package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pixiworld/pixiworld/internal/config"
	"github.com/pixiworld/pixiworld/internal/store"
)

const (
	nameKey    = "pixiworld:profileName"
	bioKey     = "pixiworld:profileBio"
	avatarKey  = "pixiworld:profileAvatar"
	userIDKey  = "pixiworld:userId"
	viewKey    = "pixiworld:currentView"
	safetyKey  = "pixiworld:safetyChecked"
	defaultTab = "feed"
)

// AvatarOptions are the preset avatar images.
var AvatarOptions = []string{
	"img/avatars/avatar1.png",
	"img/avatars/avatar2.png",
	"img/avatars/avatar3.png",
	"img/avatars/avatar4.png",
	"img/avatars/avatar5.png",
	"img/avatars/avatar6.png",
	"img/avatars/avatar7.png",
	"img/avatars/avatar8.png",
}

// Views are the tabs a user can land on.
var Views = []string{"feed", "profile", "drawing", "challenges", "settings", "report"}

var (
	ErrNameTooLong = errors.New("name too long")
	ErrBioTooLong  = errors.New("bio too long")
	ErrEmptyAvatar = errors.New("avatar reference is empty")
	ErrUnknownView = errors.New("unknown view")
)

// Profile is a snapshot of the stored profile fields.
type Profile struct {
	Name   string
	Bio    string
	Avatar string
	UserID string
}

type Service struct {
	name, bio, avatar, userID, view, safety *store.Text

	maxName, maxBio int
	log             *slog.Logger
}

func New(backend store.Backend, cfg config.ProfileConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		name:    store.NewText(backend, nameKey, logger),
		bio:     store.NewText(backend, bioKey, logger),
		avatar:  store.NewText(backend, avatarKey, logger),
		userID:  store.NewText(backend, userIDKey, logger),
		view:    store.NewText(backend, viewKey, logger),
		safety:  store.NewText(backend, safetyKey, logger),
		maxName: cfg.MaxNameLength,
		maxBio:  cfg.MaxBioLength,
		log:     logger.With("component", "profile"),
	}
}

// Get returns the stored profile. Unset fields are empty, except UserID
// which is created on first access.
func (s *Service) Get() Profile {
	name, _ := s.name.Get()
	bio, _ := s.bio.Get()
	avatar, _ := s.avatar.Get()
	return Profile{Name: name, Bio: bio, Avatar: avatar, UserID: s.UserID()}
}

// SetName stores the trimmed name.
func (s *Service) SetName(name string) error {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > s.maxName {
		return fmt.Errorf("%w: must be %d characters or less", ErrNameTooLong, s.maxName)
	}
	return s.name.Set(name)
}

// SetBio stores the trimmed bio.
func (s *Service) SetBio(bio string) error {
	bio = strings.TrimSpace(bio)
	if utf8.RuneCountInString(bio) > s.maxBio {
		return fmt.Errorf("%w: must be %d characters or less", ErrBioTooLong, s.maxBio)
	}
	return s.bio.Set(bio)
}

// SetAvatar stores an avatar reference: a preset path, URL or data URI.
func (s *Service) SetAvatar(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrEmptyAvatar
	}
	return s.avatar.Set(ref)
}

// UserID returns the stable local user id, creating "u-<uuid>" if needed.
// If the new id cannot be stored it is still returned for this session.
func (s *Service) UserID() string {
	if id, ok := s.userID.Get(); ok && id != "" {
		return id
	}
	id := "u-" + uuid.NewString()
	if err := s.userID.Set(id); err != nil {
		s.log.Error("failed to store user id", "err", err)
	}
	return id
}

// View returns the last active view, or "feed".
func (s *Service) View() string {
	if v, ok := s.view.Get(); ok && slices.Contains(Views, v) {
		return v
	}
	return defaultTab
}

func (s *Service) SetView(v string) error {
	if !slices.Contains(Views, v) {
		return fmt.Errorf("%w: %q", ErrUnknownView, v)
	}
	return s.view.Set(v)
}

// SafetyChecked reports whether the user has passed the posting safety check.
func (s *Service) SafetyChecked() bool {
	v, _ := s.safety.Get()
	return v == "true"
}

func (s *Service) MarkSafetyChecked() error {
	return s.safety.Set("true")
}

func (s *Service) ResetSafetyCheck() error {
	return s.safety.Clear()
}
