// Package feed enforces the post rules on top of the feed slot. It is the
// only writer of post records.
package feed

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/pixiworld/pixiworld/internal/store"
	"github.com/pixiworld/pixiworld/internal/types"
)

// Draft is the input for a new post. Empty AuthorID and Image mean "none".
type Draft struct {
	Author      string
	AuthorID    string
	Avatar      string
	Text        string
	Image       string
	Marketplace bool
}

// Service handles post creation, deletion and listing
type Service struct {
	posts         *store.Slot[types.Post]
	log           *slog.Logger
	now           func() time.Time
	randN         func(n int) int
	defaultAuthor string
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand replaces the source of the four-digit id suffix. fn(n) must
// return a value in [0, n).
func WithRand(fn func(n int) int) Option {
	return func(s *Service) { s.randN = fn }
}

// WithDefaultAuthor sets the name used when a draft has none.
func WithDefaultAuthor(name string) Option {
	return func(s *Service) { s.defaultAuthor = name }
}

// New creates a feed service over the given slot
func New(posts *store.Slot[types.Post], logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		posts:         posts,
		log:           logger.With("component", "feed"),
		now:           time.Now,
		randN:         rand.IntN,
		defaultAuthor: "You",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create appends a new post. ok is false, and nothing is stored, when the
// trimmed text is empty and there is no image. err reports write faults.
func (s *Service) Create(d Draft) (post types.Post, ok bool, err error) {
	text := strings.TrimSpace(d.Text)
	if text == "" && d.Image == "" {
		return types.Post{}, false, nil
	}

	posts := s.posts.ReadAll()

	// createdAt never goes backwards relative to earlier user posts
	created := s.now().UTC()
	if latest, found := latestUserPost(posts); found && created.Before(latest) {
		created = latest
	}

	post = types.Post{
		ID:          s.newID(posts, created),
		Author:      lo.Ternary(d.Author != "", d.Author, s.defaultAuthor),
		Avatar:      d.Avatar,
		Text:        text,
		Marketplace: d.Marketplace,
		CreatedAt:   created,
	}
	if d.AuthorID != "" {
		post.AuthorID = lo.ToPtr(d.AuthorID)
		post.IsMine = true
	}
	if d.Image != "" {
		post.Image = lo.ToPtr(d.Image)
	}

	if err := s.posts.WriteAll(append(posts, post)); err != nil {
		return types.Post{}, false, err
	}
	s.log.Debug("post created", "id", post.ID, "marketplace", post.Marketplace)
	return post, true, nil
}

// newID returns "p-<unixms>-<1000..9999>" not used by any stored post.
func (s *Service) newID(posts []types.Post, at time.Time) string {
	taken := lo.SliceToMap(posts, func(p types.Post) (string, struct{}) {
		return p.ID, struct{}{}
	})
	for {
		id := fmt.Sprintf("%s%d-%d", types.UserPrefix, at.UnixMilli(), s.randN(9000)+1000)
		if _, dup := taken[id]; !dup {
			return id
		}
	}
}

func latestUserPost(posts []types.Post) (time.Time, bool) {
	mine := lo.Filter(posts, func(p types.Post, _ int) bool { return p.Kind() == types.KindUser })
	if len(mine) == 0 {
		return time.Time{}, false
	}
	return lo.MaxBy(mine, func(a, b types.Post) bool { return a.CreatedAt.After(b.CreatedAt) }).CreatedAt, true
}

// Delete removes the post with the given id. It returns false, and writes
// nothing, when no post matches.
func (s *Service) Delete(id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	posts := s.posts.ReadAll()
	idx := slices.IndexFunc(posts, func(p types.Post) bool { return p.ID == id })
	if idx == -1 {
		return false, nil
	}
	if err := s.posts.WriteAll(slices.Delete(posts, idx, idx+1)); err != nil {
		return false, err
	}
	s.log.Debug("post deleted", "id", id)
	return true, nil
}

// Get returns the post with the given id.
func (s *Service) Get(id string) (types.Post, bool) {
	return lo.Find(s.posts.ReadAll(), func(p types.Post) bool { return p.ID == id })
}

// Restore re-appends a previously deleted post unless its id is present.
func (s *Service) Restore(p types.Post) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, fmt.Errorf("cannot restore post: %w", err)
	}
	posts := s.posts.ReadAll()
	if lo.ContainsBy(posts, func(q types.Post) bool { return q.ID == p.ID }) {
		return false, nil
	}
	if err := s.posts.WriteAll(append(posts, p)); err != nil {
		return false, err
	}
	s.log.Debug("post restored", "id", p.ID)
	return true, nil
}

// List returns all posts in storage order, oldest first.
func (s *Service) List() []types.Post {
	return s.posts.ReadAll()
}

// Clear removes the feed slot so the next startup reseeds it.
func (s *Service) Clear() error {
	if err := s.posts.Clear(); err != nil {
		return err
	}
	s.log.Info("feed cleared")
	return nil
}
