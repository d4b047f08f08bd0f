// Package friends keeps the set of demo post ids the user has friended and
// a cached count of distinct friended authors.
package friends

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/pixiworld/pixiworld/internal/store"
	"github.com/pixiworld/pixiworld/internal/types"
)

// PostLister is the read side of the feed the registry reconciles against.
type PostLister interface {
	List() []types.Post
}

// Registry tracks friended post ids
type Registry struct {
	ids   *store.Slot[string]
	count *store.Int
	posts PostLister
	log   *slog.Logger
}

// ErrEmptyID is returned by Toggle for an empty id.
var ErrEmptyID = errors.New("empty post id")

// New creates a registry. The id slot gets a non-empty-id validator.
func New(ids *store.Slot[string], count *store.Int, posts PostLister, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ids.WithValidator(func(id string) error {
		if id == "" {
			return ErrEmptyID
		}
		return nil
	})
	return &Registry{
		ids:   ids,
		count: count,
		posts: posts,
		log:   logger.With("component", "friends"),
	}
}

// FriendIDs returns the friended ids. The first access ever, when the slot
// does not exist, stores every current demo post id as the default. If the
// slot cannot be read the demo ids are returned for this call only.
func (r *Registry) FriendIDs() []string {
	ids, err := r.load()
	if err != nil {
		r.log.Warn("friend ids unavailable, using demo defaults", "err", err)
		return demoIDs(r.posts.List())
	}
	return ids
}

// load returns the stored ids, writing the default on first access. Read
// faults are returned and nothing is written.
func (r *Registry) load() ([]string, error) {
	ids, found, err := r.ids.Fetch()
	if err != nil {
		return nil, err
	}
	if found {
		return lo.Uniq(ids), nil
	}

	defaults := demoIDs(r.posts.List())
	if err := r.ids.WriteAll(defaults); err != nil {
		r.log.Error("failed to store default friends", "err", err)
	}
	return defaults, nil
}

// IsFriend reports set membership.
func (r *Registry) IsFriend(id string) bool {
	return lo.Contains(r.FriendIDs(), id)
}

// Toggle flips membership of id and moves the cached count by one, never
// below zero. It returns the new membership state.
func (r *Registry) Toggle(id string) (bool, error) {
	if id == "" {
		return false, ErrEmptyID
	}

	ids, err := r.load()
	if err != nil {
		return false, err
	}
	current := r.CachedCount()

	friended := !lo.Contains(ids, id)
	delta := 1
	if friended {
		ids = append(ids, id)
	} else {
		ids = lo.Without(ids, id)
		delta = -1
	}

	if err := r.ids.WriteAll(ids); err != nil {
		return !friended, err
	}
	if err := r.count.Set(max(0, current+delta)); err != nil {
		return friended, err
	}
	r.log.Debug("friend toggled", "id", id, "friended", friended)
	return friended, nil
}

// ReconcileDemoFriends adds every demo post id missing from the registry.
// It never removes ids and writes only when something was added.
func (r *Registry) ReconcileDemoFriends() (int, error) {
	stored, _, err := r.ids.Fetch()
	if err != nil {
		return 0, err
	}
	missing := lo.Uniq(lo.Without(demoIDs(r.posts.List()), stored...))
	if len(missing) == 0 {
		return 0, nil
	}

	if err := r.ids.WriteAll(append(stored, missing...)); err != nil {
		return 0, fmt.Errorf("failed to reconcile demo friends: %w", err)
	}
	r.log.Info("reconciled demo friends", "added", len(missing))
	return len(missing), nil
}

// ComputeFriendsCount counts distinct authors among demo posts that are
// either seeded as friends or present in the registry, and stores the
// result in the count cache. Authors compare trimmed and case-insensitive;
// a post without an author counts as its own author.
func (r *Registry) ComputeFriendsCount() (int, error) {
	ids, err := r.load()
	if err != nil {
		return 0, err
	}
	n := r.distinctFriendAuthors(ids)
	if err := r.count.Set(n); err != nil {
		return n, err
	}
	return n, nil
}

func (r *Registry) distinctFriendAuthors(friendIDs []string) int {
	ids := lo.Keyify(friendIDs)
	keys := lo.FilterMap(r.posts.List(), func(p types.Post, _ int) (string, bool) {
		if !p.IsDemo() {
			return "", false
		}
		if _, listed := ids[p.ID]; !p.Friend && !listed {
			return "", false
		}
		return authorKey(p), true
	})
	return len(lo.Uniq(keys))
}

// CachedCount returns the cached count, recomputing without storing it when
// the cache is absent.
func (r *Registry) CachedCount() int {
	if n, ok := r.count.Get(); ok {
		return n
	}
	return r.distinctFriendAuthors(r.FriendIDs())
}

func authorKey(p types.Post) string {
	if key := strings.ToLower(strings.TrimSpace(p.Author)); key != "" {
		return key
	}
	return p.ID
}

func demoIDs(posts []types.Post) []string {
	return lo.Uniq(lo.FilterMap(posts, func(p types.Post, _ int) (string, bool) {
		return p.ID, p.IsDemo()
	}))
}
