package friends

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixiworld/pixiworld/internal/kv"
	"github.com/pixiworld/pixiworld/internal/store"
	"github.com/pixiworld/pixiworld/internal/types"
)

const (
	idsKey   = "pixiworld:postFriends"
	countKey = "pixiworld:friendsCount"
)

type staticPosts []types.Post

func (s *staticPosts) List() []types.Post { return *s }

func newRegistry(t *testing.T, posts *staticPosts) (*Registry, *kv.KV) {
	t.Helper()
	backend, err := kv.Open(filepath.Join(t.TempDir(), "friends.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	r := New(
		store.NewSlot[string](backend, idsKey, nil),
		store.NewInt(backend, countKey, nil),
		posts,
		nil,
	)
	return r, backend
}

func demo(id, author string, friend bool) types.Post {
	return types.Post{ID: id, Author: author, Text: "hi from " + author, Friend: friend}
}

func TestFriendIDsLazyDefault(t *testing.T) {
	posts := &staticPosts{
		demo("d-1", "A", true),
		{ID: "p-9", Text: "mine"},
		demo("d-2", "B", false),
	}
	r, backend := newRegistry(t, posts)

	assert.Equal(t, []string{"d-1", "d-2"}, r.FriendIDs())
	raw, err := backend.Get(idsKey)
	require.NoError(t, err)
	assert.Equal(t, `["d-1","d-2"]`, raw)

	// the stored set wins once it exists, even if new demo posts appear
	*posts = append(*posts, demo("d-3", "C", true))
	assert.Equal(t, []string{"d-1", "d-2"}, r.FriendIDs())
	assert.False(t, r.IsFriend("d-3"))
	assert.False(t, r.IsFriend("p-9"))
}

func TestToggleTwiceRestoresState(t *testing.T) {
	posts := &staticPosts{demo("d-1", "A", true), demo("d-2", "B", true)}
	r, _ := newRegistry(t, posts)
	_, err := r.ComputeFriendsCount()
	require.NoError(t, err)

	for _, id := range []string{"d-1", "d-7"} {
		wasFriend := r.IsFriend(id)
		before := r.CachedCount()

		state, err := r.Toggle(id)
		require.NoError(t, err)
		assert.Equal(t, !wasFriend, state)
		assert.Equal(t, !wasFriend, r.IsFriend(id))

		state, err = r.Toggle(id)
		require.NoError(t, err)
		assert.Equal(t, wasFriend, state)
		assert.Equal(t, wasFriend, r.IsFriend(id))
		assert.Equal(t, before, r.CachedCount())
	}
}

func TestToggleAdjustsCachedCount(t *testing.T) {
	posts := &staticPosts{demo("d-1", "A", false)}
	r, backend := newRegistry(t, posts)
	require.NoError(t, backend.Set(idsKey, `[]`))
	require.NoError(t, backend.Set(countKey, "0"))

	state, err := r.Toggle("d-1")
	require.NoError(t, err)
	assert.True(t, state)
	assert.Equal(t, 1, r.CachedCount())

	state, err = r.Toggle("d-1")
	require.NoError(t, err)
	assert.False(t, state)
	assert.Equal(t, 0, r.CachedCount())

	// floored at zero when the cache is already zero
	require.NoError(t, backend.Set(idsKey, `["d-1"]`))
	_, err = r.Toggle("d-1")
	require.NoError(t, err)
	assert.Equal(t, 0, r.CachedCount())

	_, err = r.Toggle("")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestReconcileDemoFriends(t *testing.T) {
	posts := &staticPosts{
		demo("d-1", "BunnyDraws", true),
		demo("d-2", "SophieArt", true),
		demo("d-3", "LeoGames", false),
	}
	r, backend := newRegistry(t, posts)

	added, err := r.ReconcileDemoFriends()
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.ElementsMatch(t, []string{"d-1", "d-2", "d-3"}, r.FriendIDs())

	first, err := backend.Get(idsKey)
	require.NoError(t, err)

	added, err = r.ReconcileDemoFriends()
	require.NoError(t, err)
	assert.Zero(t, added)
	second, err := backend.Get(idsKey)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// d-3 is in the registry after reconciliation, so its author counts
	n, err := r.ComputeFriendsCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReconcileNeverRemoves(t *testing.T) {
	posts := &staticPosts{demo("d-1", "A", true)}
	r, backend := newRegistry(t, posts)
	require.NoError(t, backend.Set(idsKey, `["d-gone","d-1"]`))

	added, err := r.ReconcileDemoFriends()
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, []string{"d-gone", "d-1"}, r.FriendIDs())
}

func TestReconcileHealsLateSeed(t *testing.T) {
	posts := &staticPosts{}
	r, _ := newRegistry(t, posts)
	assert.Empty(t, r.FriendIDs())

	*posts = append(*posts, demo("d-5", "Late", true))
	added, err := r.ReconcileDemoFriends()
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.True(t, r.IsFriend("d-5"))
}

func TestComputeFriendsCountRules(t *testing.T) {
	posts := &staticPosts{
		demo("d-1", "LeoGames", true),
		demo("d-2", "  leogames ", true),      // same author after normalizing
		demo("d-3", "Quiet", false),           // not friended anywhere
		demo("d-4", "", true),                 // author-less: counts by id
		demo("d-5", "", true),                 // a second author-less post stays separate
		{ID: "p-1", Author: "You", Text: "x"}, // user posts never count
	}
	r, backend := newRegistry(t, posts)
	require.NoError(t, backend.Set(idsKey, `["p-1"]`))

	n, err := r.ComputeFriendsCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	raw, err := backend.Get(countKey)
	require.NoError(t, err)
	assert.Equal(t, "3", raw)

	_, err = r.Toggle("d-3")
	require.NoError(t, err)
	n, err = r.ComputeFriendsCount()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCorruptIDSlotFallsBackToDefault(t *testing.T) {
	posts := &staticPosts{demo("d-1", "A", true)}
	r, backend := newRegistry(t, posts)
	require.NoError(t, backend.Set(idsKey, `[1,2`))

	assert.Equal(t, []string{"d-1"}, r.FriendIDs())
	raw, err := backend.Get(idsKey)
	require.NoError(t, err)
	assert.Equal(t, `["d-1"]`, raw)
}

func TestCachedCountWithoutCache(t *testing.T) {
	posts := &staticPosts{demo("d-1", "A", true), demo("d-2", "B", true)}
	r, backend := newRegistry(t, posts)

	assert.Equal(t, 2, r.CachedCount())
	ok, err := backend.Exists(countKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

// flakyBackend fails the next n reads of one key.
type flakyBackend struct {
	*kv.KV
	key string
	n   int
}

func (f *flakyBackend) Get(key string) (string, error) {
	if key == f.key && f.n > 0 {
		f.n--
		return "", errors.New("database is locked")
	}
	return f.KV.Get(key)
}

func TestReadFaultDoesNotOverwriteRegistry(t *testing.T) {
	db, err := kv.Open(filepath.Join(t.TempDir(), "friends.db"))
	require.NoError(t, err)
	defer db.Close()

	posts := &staticPosts{demo("d-1", "A", true), demo("d-2", "B", true)}
	backend := &flakyBackend{KV: db, key: idsKey}
	r := New(
		store.NewSlot[string](backend, idsKey, nil),
		store.NewInt(backend, countKey, nil),
		posts,
		nil,
	)
	require.NoError(t, db.Set(idsKey, `["d-1"]`))

	backend.n = 1
	assert.Equal(t, []string{"d-1", "d-2"}, r.FriendIDs(), "faulted reads fall back to demo ids")
	raw, err := db.Get(idsKey)
	require.NoError(t, err)
	assert.Equal(t, `["d-1"]`, raw)

	backend.n = 1
	_, err = r.Toggle("d-2")
	require.Error(t, err)

	backend.n = 1
	_, err = r.ReconcileDemoFriends()
	require.Error(t, err)

	require.NoError(t, db.Set(countKey, "1"))
	backend.n = 1
	_, err = r.ComputeFriendsCount()
	require.Error(t, err)

	raw, err = db.Get(idsKey)
	require.NoError(t, err)
	assert.Equal(t, `["d-1"]`, raw, "stored registry survives every faulted read")
	count, err := db.Get(countKey)
	require.NoError(t, err)
	assert.Equal(t, "1", count)

	// once reads recover the stored set is used again
	assert.Equal(t, []string{"d-1"}, r.FriendIDs())
}
