package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/pixiworld/pixiworld/internal/action"
	"github.com/pixiworld/pixiworld/internal/challenges"
	"github.com/pixiworld/pixiworld/internal/config"
	"github.com/pixiworld/pixiworld/internal/feed"
	"github.com/pixiworld/pixiworld/internal/friends"
	"github.com/pixiworld/pixiworld/internal/profile"
	"github.com/pixiworld/pixiworld/internal/render"
	"github.com/pixiworld/pixiworld/internal/reports"
	"github.com/pixiworld/pixiworld/internal/store"
	"github.com/pixiworld/pixiworld/internal/types"
)

var (
	// ErrEmptyPost is returned when a post has neither text nor an image.
	ErrEmptyPost = errors.New("post needs text or an image")
	// ErrPostNotFound is returned when an id names no stored post.
	ErrPostNotFound = errors.New("post not found")
	// ErrNotDeletable is returned for demo posts, which leave the feed only
	// by unfriending their author.
	ErrNotDeletable = errors.New("demo posts cannot be deleted")
	// ErrNotBefriendable is returned when friending anything but a stored
	// demo post.
	ErrNotBefriendable = errors.New("only demo posts can be friended")
)

// App holds the application state.
type App struct {
	// mu serializes the read-modify-write flows across services.
	mu sync.Mutex

	config     *config.Config // immutable after creation
	backend    store.Backend
	feed       *feed.Service
	friends    *friends.Registry
	profile    *profile.Service
	reports    *reports.Service
	challenges *challenges.Service
	render     *render.Builder
	log        *slog.Logger
	now        func() time.Time
}

type options struct {
	now   func() time.Time
	randN func(n int) int
}

type Option func(*options)

// WithClock replaces time.Now for ids, timestamps and undo deadlines.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRand replaces the random source of post id suffixes.
func WithRand(fn func(n int) int) Option {
	return func(o *options) { o.randN = fn }
}

// New creates a new App over backend.
func New(cfg *config.Config, backend store.Backend, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	feedOpts := []feed.Option{
		feed.WithClock(o.now),
		feed.WithDefaultAuthor(cfg.Feed.DefaultAuthor),
	}
	if o.randN != nil {
		feedOpts = append(feedOpts, feed.WithRand(o.randN))
	}
	posts := store.NewSlot[types.Post](backend, cfg.Storage.FeedKey, logger).
		WithValidator(types.Post.Validate)
	feedSvc := feed.New(posts, logger, feedOpts...)

	registry := friends.New(
		store.NewSlot[string](backend, cfg.Storage.FriendIDsKey, logger),
		store.NewInt(backend, cfg.Storage.FriendsCountKey, logger),
		feedSvc,
		logger,
	)

	builder, err := render.New(o.now)
	if err != nil {
		return nil, err
	}

	return &App{
		config:     cfg,
		backend:    backend,
		feed:       feedSvc,
		friends:    registry,
		profile:    profile.New(backend, cfg.Profile, logger),
		reports:    reports.New(backend, logger, o.now),
		challenges: challenges.New(backend, logger),
		render:     builder,
		log:        logger.With("component", "app"),
		now:        o.now,
	}, nil
}

// Startup moves the legacy feed key, seeds demo posts into an empty feed,
// and reconciles the friend registry against the feed.
func (a *App) Startup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.config.Storage
	moved, err := store.MigrateLegacy(a.backend, st.LegacyFeedKey, st.FeedKey)
	if err != nil {
		return err
	}
	if moved {
		a.log.Info("migrated legacy feed", "from", st.LegacyFeedKey, "to", st.FeedKey)
	}

	if a.config.Feed.SeedDemo {
		if _, err := a.feed.Seed(false); err != nil {
			return err
		}
	}

	_, _, err = a.reconcile()
	return err
}

// Reconcile adds missing demo ids to the friend registry and recomputes
// the friends count.
func (a *App) Reconcile() (added, count int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reconcile()
}

func (a *App) reconcile() (int, int, error) {
	added, err := a.friends.ReconcileDemoFriends()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to reconcile friends: %w", err)
	}
	count, err := a.friends.ComputeFriendsCount()
	if err != nil {
		return added, 0, fmt.Errorf("failed to compute friends count: %w", err)
	}
	if added > 0 {
		a.log.Info("reconciled demo friends", "added", added, "count", count)
	}
	return added, count, nil
}

// Seed writes the demo posts, replacing the feed when force is set, and
// reconciles friends so the new demo ids are friended.
func (a *App) Seed(force bool) ([]types.Post, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	seeded, err := a.feed.Seed(force)
	if err != nil {
		return nil, err
	}
	if _, _, err := a.reconcile(); err != nil {
		return seeded, err
	}
	return seeded, nil
}

// SubmitPost posts as the local user. Until the safety check has been
// passed, nothing is stored and a pending request is returned instead.
func (a *App) SubmitPost(text, image string, marketplace bool) (types.Post, *action.Pending[feed.Draft], error) {
	if strings.TrimSpace(text) == "" && image == "" {
		return types.Post{}, nil, ErrEmptyPost
	}
	d := a.draft(text, image, marketplace)
	if !a.profile.SafetyChecked() {
		return types.Post{}, action.NewPending(d), nil
	}
	post, err := a.createPost(d)
	return post, nil, err
}

// ConfirmPost creates a pending post and records that the safety check
// has been passed.
func (a *App) ConfirmPost(p *action.Pending[feed.Draft]) (types.Post, error) {
	var post types.Post
	err := p.Confirm(func(d feed.Draft) error {
		created, err := a.createPost(d)
		if err != nil {
			return err
		}
		post = created
		if err := a.profile.MarkSafetyChecked(); err != nil {
			a.log.Warn("failed to store safety check", "err", err)
		}
		return nil
	})
	return post, err
}

// CancelPost drops a pending post. The safety check stays unpassed.
func (a *App) CancelPost(p *action.Pending[feed.Draft]) error {
	return p.Cancel()
}

func (a *App) draft(text, image string, marketplace bool) feed.Draft {
	me := a.profile.Get()
	return feed.Draft{
		Author:      lo.Ternary(me.Name != "", me.Name, a.config.Feed.DefaultAuthor),
		AuthorID:    me.UserID,
		Avatar:      lo.Ternary(me.Avatar != "", me.Avatar, a.config.Feed.DefaultAvatar),
		Text:        text,
		Image:       image,
		Marketplace: marketplace,
	}
}

func (a *App) createPost(d feed.Draft) (types.Post, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	post, ok, err := a.feed.Create(d)
	if err != nil {
		return types.Post{}, err
	}
	if !ok {
		return types.Post{}, ErrEmptyPost
	}
	a.log.Info("post created", "id", post.ID)
	return post, nil
}

// DeletePost removes a post and returns an undo that puts it back.
func (a *App) DeletePost(id string) (*action.Undo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	post, found := a.feed.Get(id)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	if post.IsDemo() {
		return nil, fmt.Errorf("%w: %s", ErrNotDeletable, id)
	}
	if _, err := a.feed.Delete(id); err != nil {
		return nil, err
	}
	a.refreshCount()

	window := time.Duration(a.config.Undo.PostWindowSeconds) * time.Second
	return action.NewUndo("Post removed", a.now().Add(window), func() error {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, err := a.feed.Restore(post); err != nil {
			return err
		}
		a.refreshCount()
		return nil
	}), nil
}

// ToggleFriend friends or unfriends the author of a demo post. Adding needs
// no undo. Removing also removes the post from the feed, and the returned
// undo restores both. A friended id whose post is gone can still be removed.
func (a *App) ToggleFriend(id string) (bool, *action.Undo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.friends.IsFriend(id) {
		if p, found := a.feed.Get(id); !found || !p.IsDemo() {
			return false, nil, fmt.Errorf("%w: %q", ErrNotBefriendable, id)
		}
		state, err := a.friends.Toggle(id)
		if err != nil {
			return false, nil, err
		}
		a.refreshCount()
		return state, nil, nil
	}

	post, found := a.feed.Get(id)
	if _, err := a.friends.Toggle(id); err != nil {
		return false, nil, err
	}
	removed := false
	if found && post.IsDemo() {
		var err error
		if removed, err = a.feed.Delete(id); err != nil {
			return false, nil, err
		}
	}
	a.refreshCount()

	window := time.Duration(a.config.Undo.FriendWindowSeconds) * time.Second
	return false, action.NewUndo("Removed friend", a.now().Add(window), func() error {
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.friends.IsFriend(id) {
			if _, err := a.friends.Toggle(id); err != nil {
				return err
			}
		}
		if removed {
			if _, err := a.feed.Restore(post); err != nil {
				return err
			}
		}
		a.refreshCount()
		return nil
	}), nil
}

// Now returns the app clock's current time.
func (a *App) Now() time.Time { return a.now() }

// Undo applies u at the current time.
func (a *App) Undo(u *action.Undo) error {
	return u.Apply(a.now())
}

// ResetFeed removes the feed and the safety check. Demo posts are seeded
// again on the next startup.
func (a *App) ResetFeed() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.feed.Clear(); err != nil {
		return err
	}
	return a.profile.ResetSafetyCheck()
}

// FriendsCount recomputes and stores the friends count.
func (a *App) FriendsCount() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.friends.ComputeFriendsCount()
}

// refreshCount keeps the cached count current after a flow. The count is
// derived data, so a failed write is only logged.
func (a *App) refreshCount() {
	if _, err := a.friends.ComputeFriendsCount(); err != nil {
		a.log.Warn("failed to refresh friends count", "err", err)
	}
}

// Posts returns the feed in storage order.
func (a *App) Posts() []types.Post {
	return a.feed.List()
}

// RenderFeed writes the feed, newest first, with the cached friends count.
func (a *App) RenderFeed(w io.Writer) error {
	return a.render.Feed(w, a.feed.List(), a.friends.IsFriend, a.friends.CachedCount())
}

// RenderMyPosts writes the local user's posts.
func (a *App) RenderMyPosts(w io.Writer) error {
	me := a.profile.Get()
	return a.render.MyPosts(w, a.feed.List(), render.Me{UserID: me.UserID, Name: me.Name, Avatar: me.Avatar})
}

func (a *App) Profile() *profile.Service       { return a.profile }
func (a *App) Reports() *reports.Service       { return a.reports }
func (a *App) Challenges() *challenges.Service { return a.challenges }
func (a *App) Config() *config.Config          { return a.config }
