package feed

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/pixiworld/pixiworld/internal/types"
)

type demoSeed struct {
	suffix string // appended to "d-<now>-"; a full id when fixed is set
	fixed  bool
	author string
	avatar string
	text   string
	age    time.Duration
	friend bool
}

var demoSeeds = []demoSeed{
	{suffix: "1", author: "BunnyDraws", avatar: "img/avatars/avatar3.png", text: "I Love! My space bunny. ✨ Especially the stars on its fur! SPAAAAAAAAAACCEEEEEEE 🌟🐰", age: 50 * time.Hour, friend: true},
	{suffix: "2", author: "SophieArt", avatar: "img/avatars/avatar8.png", text: "I built a tiny pixel house today! 🏠", age: 24 * time.Hour, friend: true},
	{suffix: "3", author: "LeoGames", avatar: "img/avatars/avatar4.png", text: "New game idea — who wants to test? 🎮", age: 5 * time.Hour, friend: true},
	{suffix: "4", author: "KevinCoder", avatar: "img/avatars/avatar5.png", text: "Rainbow dragon finished! 🌈🐉", age: 4 * time.Hour, friend: true},
	{suffix: "5", author: "SuperTrix", avatar: "img/avatars/avatar1.png", text: "I dont know what to post lol", age: 3 * time.Hour, friend: true},
	{suffix: "d-3", fixed: true, author: "LeoGames", avatar: "img/avatars/avatar4.png", text: "Thanks for testing my game! More levels coming soon.", age: time.Hour},
	{suffix: "6", author: "DragonChamp", avatar: "img/avatars/avatar7.png", text: "Bro I love dragons ong 🐉🔥, I just watched the latest How to train your dragons movie and it was the best! cant wait for a sequel!", age: time.Hour, friend: true},
}

// DemoPosts builds the seed posts relative to now.
func DemoPosts(now time.Time) []types.Post {
	now = now.UTC()
	return lo.Map(demoSeeds, func(d demoSeed, _ int) types.Post {
		id := d.suffix
		if !d.fixed {
			id = fmt.Sprintf("%s%d-%s", types.DemoPrefix, now.UnixMilli(), d.suffix)
		}
		return types.Post{
			ID:        id,
			Author:    d.author,
			Avatar:    d.avatar,
			Text:      d.text,
			CreatedAt: now.Add(-d.age),
			Friend:    d.friend,
		}
	})
}

// Seed writes the demo posts when the feed is empty, or always when force
// is set. It returns the posts written, or nil when it left the feed alone.
func (s *Service) Seed(force bool) ([]types.Post, error) {
	if !force && len(s.posts.ReadAll()) > 0 {
		return nil, nil
	}
	demo := DemoPosts(s.now())
	if err := s.posts.WriteAll(demo); err != nil {
		return nil, fmt.Errorf("failed to seed demo posts: %w", err)
	}
	s.log.Info("seeded demo posts", "count", len(demo), "forced", force)
	return demo, nil
}
