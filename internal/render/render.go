// Package render formats the feed and the profile post list as plain text.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/samber/lo"

	"github.com/pixiworld/pixiworld/internal/types"
)

const defaultAvatar = "img/avatars/avatar1.png"

// Builder renders posts with a parsed template
type Builder struct {
	template *template.Template
	now      func() time.Time
}

// New creates a builder. A nil now uses time.Now.
func New(now func() time.Time) (*Builder, error) {
	if now == nil {
		now = time.Now
	}
	tmpl, err := template.New("feed").Parse(feedTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Builder{template: tmpl, now: now}, nil
}

// FeedData is the template data structure
type FeedData struct {
	Title        string
	Empty        string
	Posts        []PostData
	FriendsCount int
	ShowCount    bool
}

// PostData represents a post in the template
type PostData struct {
	ID          string
	Author      string
	Avatar      string
	Text        string
	Image       string
	Age         string
	Marketplace bool

	// Befriendable posts carry a friend toggle; Friend is its state.
	Befriendable bool
	Friend       bool
	Deletable    bool
}

// Me identifies the local user for the profile post list.
type Me struct {
	UserID string
	Name   string
	Avatar string
}

// Feed writes all posts, newest first, followed by the friends count.
func (b *Builder) Feed(w io.Writer, posts []types.Post, isFriend func(id string) bool, friendsCount int) error {
	data := FeedData{
		Title:        "Feed",
		Empty:        "No posts yet.",
		Posts:        b.postData(posts, isFriend),
		FriendsCount: friendsCount,
		ShowCount:    true,
	}
	return b.execute(w, data)
}

// MyPosts writes the posts that belong to me, newest first.
func (b *Builder) MyPosts(w io.Writer, posts []types.Post, me Me) error {
	mine := lo.Filter(posts, func(p types.Post, _ int) bool { return me.owns(p) })
	data := FeedData{
		Title: "My posts",
		Empty: "You haven't posted anything yet.",
		Posts: b.postData(mine, nil),
	}
	return b.execute(w, data)
}

func (b *Builder) execute(w io.Writer, data FeedData) error {
	if err := b.template.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}
	return nil
}

func (b *Builder) postData(posts []types.Post, isFriend func(id string) bool) []PostData {
	now := b.now()
	out := make([]PostData, 0, len(posts))
	for _, p := range lo.Reverse(append([]types.Post(nil), posts...)) {
		d := PostData{
			ID:          p.ID,
			Author:      lo.Ternary(p.Author != "", p.Author, "You"),
			Avatar:      lo.Ternary(p.Avatar != "", p.Avatar, defaultAvatar),
			Text:        p.Text,
			Image:       lo.FromPtr(p.Image),
			Age:         Age(now.Sub(p.CreatedAt)),
			Marketplace: p.Marketplace,
			Deletable:   !p.IsDemo(),
		}
		if p.IsDemo() && isFriend != nil {
			d.Befriendable = true
			d.Friend = isFriend(p.ID)
		}
		out = append(out, d)
	}
	return out
}

func (m Me) owns(p types.Post) bool {
	switch {
	case p.AuthorID != nil && *p.AuthorID == m.UserID && m.UserID != "":
		return true
	case m.Name != "" && strings.TrimSpace(p.Author) == m.Name:
		return true
	case m.Avatar != "" && p.Avatar == m.Avatar:
		return true
	}
	return p.IsMine
}

// Age formats d as whole seconds, minutes, hours or days: 45s, 3m, 5h, 2d.
// Negative durations read as 0s.
func Age(d time.Duration) string {
	secs := int64(max(d, 0) / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh", secs/3600)
	default:
		return fmt.Sprintf("%dd", secs/86400)
	}
}

const feedTemplate = `== {{.Title}} ==
{{- range .Posts}}
[{{.ID}}] {{.Author}} · posted {{.Age}}
{{- if .Marketplace}} · marketplace{{end}}
{{- if .Befriendable}}{{if .Friend}} · friend (unfriend){{else}} · (add friend){{end}}{{end}}
{{- if .Deletable}} · (delete){{end}}
  {{.Text}}
{{- if .Image}}
  [image: {{.Image}}]
{{- end}}
{{- else}}
{{.Empty}}
{{- end}}
{{- if .ShowCount}}
-- friends: {{.FriendsCount}}
{{- end}}
`
