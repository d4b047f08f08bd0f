package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixiworld/pixiworld/internal/kv"
	"github.com/pixiworld/pixiworld/internal/types"
)

func openKV(t *testing.T) *kv.KV {
	t.Helper()
	s, err := kv.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func postSlot(b Backend) *Slot[types.Post] {
	return NewSlot[types.Post](b, "pixiworld:feed", nil).WithValidator(types.Post.Validate)
}

func TestReadAllMissingSlot(t *testing.T) {
	slot := postSlot(openKV(t))
	items, ok := slot.Load()
	assert.False(t, ok)
	assert.Empty(t, items)
}

func TestWriteAllReadAll(t *testing.T) {
	slot := postSlot(openKV(t))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	uid := "u-1"
	posts := []types.Post{
		{ID: "d-1", Author: "BunnyDraws", Text: "stars", CreatedAt: now, Friend: true},
		{ID: "p-2", Author: "You", AuthorID: &uid, Text: "hello", CreatedAt: now.Add(time.Minute), IsMine: true},
	}
	require.NoError(t, slot.WriteAll(posts))

	got := slot.ReadAll()
	require.Len(t, got, 2)
	assert.Equal(t, "d-1", got[0].ID)
	assert.Equal(t, "p-2", got[1].ID)
	assert.Equal(t, "u-1", *got[1].AuthorID)
	assert.True(t, got[1].CreatedAt.Equal(now.Add(time.Minute)))
}

func TestRoundTripIsIdempotent(t *testing.T) {
	backend := openKV(t)
	slot := postSlot(backend)
	img := "data:image/png;base64,iVBOR"
	require.NoError(t, slot.WriteAll([]types.Post{
		{ID: "p-1", Text: "a & <b>", CreatedAt: time.Now()},
		{ID: "p-2", Image: &img, Marketplace: true, CreatedAt: time.Now()},
	}))
	before, err := backend.Get("pixiworld:feed")
	require.NoError(t, err)

	require.NoError(t, slot.WriteAll(slot.ReadAll()))

	after, err := backend.Get("pixiworld:feed")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCorruptSlotIsWiped(t *testing.T) {
	backend := openKV(t)
	require.NoError(t, backend.Set("pixiworld:feed", "{not json"))

	slot := postSlot(backend)
	assert.Empty(t, slot.ReadAll())

	_, err := backend.Get("pixiworld:feed")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestNonArrayIsCorrupt(t *testing.T) {
	backend := openKV(t)
	require.NoError(t, backend.Set("pixiworld:feed", `{"id":"p-1"}`))

	assert.Empty(t, postSlot(backend).ReadAll())
	ok, err := backend.Exists("pixiworld:feed")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidRecordsAreDropped(t *testing.T) {
	backend := openKV(t)
	require.NoError(t, backend.Set("pixiworld:feed",
		`[{"id":"p-1","text":"ok"},null,{"id":"","text":"no id"},{"id":"p-3","text":"  "}]`))

	got := postSlot(backend).ReadAll()
	require.Len(t, got, 1)
	assert.Equal(t, "p-1", got[0].ID)

	ok, err := backend.Exists("pixiworld:feed")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClearRemovesSlot(t *testing.T) {
	backend := openKV(t)
	slot := postSlot(backend)
	require.NoError(t, slot.WriteAll(nil))

	raw, err := backend.Get("pixiworld:feed")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	require.NoError(t, slot.Clear())
	_, err = backend.Get("pixiworld:feed")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

type brokenBackend struct{ removed []string }

func (b *brokenBackend) Get(string) (string, error) { return "", errors.New("disk on fire") }
func (b *brokenBackend) Set(string, string) error   { return errors.New("quota exceeded") }
func (b *brokenBackend) Remove(key string) error {
	b.removed = append(b.removed, key)
	return nil
}

func TestBackendFaults(t *testing.T) {
	b := &brokenBackend{}
	slot := postSlot(b)

	assert.Empty(t, slot.ReadAll())
	assert.Empty(t, b.removed, "read faults must not wipe the slot")

	items, found, err := slot.Fetch()
	assert.Empty(t, items)
	assert.False(t, found)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")

	err = slot.WriteAll([]types.Post{{ID: "p-1", Text: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestIntSlot(t *testing.T) {
	backend := openKV(t)
	n := NewInt(backend, "pixiworld:friendsCount", nil)

	_, ok := n.Get()
	assert.False(t, ok)

	require.NoError(t, n.Set(6))
	v, ok := n.Get()
	assert.True(t, ok)
	assert.Equal(t, 6, v)

	require.NoError(t, backend.Set("pixiworld:friendsCount", "six"))
	_, ok = n.Get()
	assert.False(t, ok)
	exists, err := backend.Exists("pixiworld:friendsCount")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTextSlot(t *testing.T) {
	txt := NewText(openKV(t), "pixiworld:profileName", nil)
	_, ok := txt.Get()
	assert.False(t, ok)

	require.NoError(t, txt.Set("Pixi"))
	v, ok := txt.Get()
	assert.True(t, ok)
	assert.Equal(t, "Pixi", v)

	require.NoError(t, txt.Clear())
	_, ok = txt.Get()
	assert.False(t, ok)
}

func TestMigrateLegacy(t *testing.T) {
	backend := openKV(t)
	require.NoError(t, backend.Set("feedData", `[{"id":"d-1","text":"hi"}]`))

	moved, err := MigrateLegacy(backend, "feedData", "pixiworld:feed")
	require.NoError(t, err)
	assert.True(t, moved)

	v, err := backend.Get("pixiworld:feed")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"d-1","text":"hi"}]`, v)
	_, err = backend.Get("feedData")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	moved, err = MigrateLegacy(backend, "feedData", "pixiworld:feed")
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestMigrateLegacyKeepsExistingTarget(t *testing.T) {
	backend := openKV(t)
	require.NoError(t, backend.Set("feedData", `[{"id":"d-old","text":"old"}]`))
	require.NoError(t, backend.Set("pixiworld:feed", `[]`))

	moved, err := MigrateLegacy(backend, "feedData", "pixiworld:feed")
	require.NoError(t, err)
	assert.False(t, moved)

	v, err := backend.Get("pixiworld:feed")
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
	ok, err := backend.Exists("feedData")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMigrateLegacyOverEmptyTarget(t *testing.T) {
	backend := openKV(t)
	require.NoError(t, backend.Set("feedData", `[{"id":"d-old","text":"old"}]`))
	require.NoError(t, backend.Set("pixiworld:feed", ""))

	moved, err := MigrateLegacy(backend, "feedData", "pixiworld:feed")
	require.NoError(t, err)
	assert.True(t, moved)

	v, err := backend.Get("pixiworld:feed")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"d-old","text":"old"}]`, v)
	ok, err := backend.Exists("feedData")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRewriteKeepsUnknownFields(t *testing.T) {
	backend := openKV(t)
	require.NoError(t, backend.Set("pixiworld:feed", `[{"id":"p-1","text":"hi","likes":3}]`))
	slot := postSlot(backend)

	require.NoError(t, slot.WriteAll(slot.ReadAll()))

	raw, err := backend.Get("pixiworld:feed")
	require.NoError(t, err)
	assert.Contains(t, raw, `"likes":3`)
}
