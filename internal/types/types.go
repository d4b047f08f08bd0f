package types

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ID prefixes distinguish seeded demo posts from user-authored ones.
const (
	DemoPrefix = "d-"
	UserPrefix = "p-"
)

// PostKind is derived from the id prefix.
type PostKind string

const (
	KindDemo  PostKind = "demo"
	KindUser  PostKind = "user"
	KindOther PostKind = "other"
)

// Post represents a persisted feed entry
type Post struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	AuthorID    *string   `json:"authorId"`
	Avatar      string    `json:"avatar"`
	Text        string    `json:"text"`
	Image       *string   `json:"image"`
	Marketplace bool      `json:"marketplace"`
	CreatedAt   time.Time `json:"createdAt"`
	IsMine      bool      `json:"isMine"`
	Friend      bool      `json:"friend,omitempty"` // set on seeded posts only

	// Extra keeps fields this version does not know, so rewriting a slot
	// does not lose them.
	Extra map[string]json.RawMessage `json:"-"`
}

type postFields Post

var postKeys = []string{
	"id", "author", "authorId", "avatar", "text", "image",
	"marketplace", "createdAt", "isMine", "friend",
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var f postFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range postKeys {
		delete(all, k)
	}
	f.Extra = nil
	if len(all) > 0 {
		f.Extra = all
	}
	*p = Post(f)
	return nil
}

func (p Post) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(postFields(p))
	if err != nil || len(p.Extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if _, known := all[k]; !known {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// Kind reports whether the post is a demo seed or user-authored.
func (p Post) Kind() PostKind {
	switch {
	case strings.HasPrefix(p.ID, DemoPrefix):
		return KindDemo
	case strings.HasPrefix(p.ID, UserPrefix):
		return KindUser
	default:
		return KindOther
	}
}

func (p Post) IsDemo() bool { return p.Kind() == KindDemo }

// HasContent is true when the post has non-empty text or an image.
func (p Post) HasContent() bool {
	return strings.TrimSpace(p.Text) != "" || (p.Image != nil && *p.Image != "")
}

var (
	ErrMissingID      = errors.New("post has no id")
	ErrMissingContent = errors.New("post has neither text nor image")
)

// Validate checks the fields a stored post must carry.
func (p Post) Validate() error {
	if p.ID == "" {
		return ErrMissingID
	}
	if !p.HasContent() {
		return ErrMissingContent
	}
	return nil
}

// Report is an issue submitted from the report view
type Report struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Challenge is a challenge the user has joined
type Challenge struct {
	Title  string `json:"title"`
	Reward string `json:"reward"`
}
