package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pixiworld/pixiworld/internal/action"
	"github.com/pixiworld/pixiworld/internal/app"
	"github.com/pixiworld/pixiworld/internal/feed"
)

const help = `Commands:
  feed                          show the feed
  mine                          show my posts
  post [--market] [--image=REF] TEXT
  confirm | cancel              answer the safety check for a pending post
  delete ID                     delete a post
  friend ID                     add or remove a friend
  undo                          revert the last delete or unfriend
  count                         recompute the friends count
  profile [name|bio|avatar VALUE]
  report TYPE DESCRIPTION
  join TITLE | REWARD           join a challenge
  leave TITLE                   leave a challenge
  challenges                    list joined challenges
  reset                         clear the feed; demo posts return on restart
  help | quit`

// shell is the interactive front end. It holds the one pending post and
// the one live undo, mirroring a single confirmation dialog and toast.
type shell struct {
	app     *app.App
	in      *bufio.Scanner
	out     io.Writer
	pending *action.Pending[feed.Draft]
	undo    *action.Undo
}

func newShell(a *app.App, in io.Reader, out io.Writer) *shell {
	return &shell{app: a, in: bufio.NewScanner(in), out: out}
}

// Run reads commands until quit or end of input.
func (s *shell) Run() {
	if err := s.show(s.app.Profile().View()); err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return
		}
		cmd, rest, _ := strings.Cut(strings.TrimSpace(s.in.Text()), " ")
		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := s.exec(cmd, strings.TrimSpace(rest)); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *shell) exec(cmd, arg string) error {
	switch cmd {
	case "":
		return nil
	case "help":
		fmt.Fprintln(s.out, help)
		return nil
	case "feed", "profile", "challenges":
		if cmd == "profile" && arg != "" {
			return s.editProfile(arg)
		}
		if err := s.app.Profile().SetView(cmd); err != nil {
			return err
		}
		return s.show(cmd)
	case "mine":
		return s.app.RenderMyPosts(s.out)
	case "post":
		return s.post(arg)
	case "confirm":
		if s.pending == nil {
			return errors.New("nothing to confirm")
		}
		post, err := s.app.ConfirmPost(s.pending)
		if err != nil {
			return err
		}
		s.pending = nil
		fmt.Fprintf(s.out, "Posted safely! (%s)\n", post.ID)
		return nil
	case "cancel":
		if s.pending == nil {
			return errors.New("nothing to cancel")
		}
		err := s.app.CancelPost(s.pending)
		s.pending = nil
		return err
	case "delete":
		undo, err := s.app.DeletePost(arg)
		if err != nil {
			return err
		}
		s.offer(undo)
		return nil
	case "friend":
		added, undo, err := s.app.ToggleFriend(arg)
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintln(s.out, "Friend added")
			return nil
		}
		s.offer(undo)
		return nil
	case "undo":
		if s.undo == nil {
			return errors.New("nothing to undo")
		}
		err := s.app.Undo(s.undo)
		s.undo = nil
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Undone")
		return nil
	case "count":
		n, err := s.app.FriendsCount()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "friends: %d\n", n)
		return nil
	case "report":
		kind, desc, _ := strings.Cut(arg, " ")
		if err := s.app.Profile().SetView("report"); err != nil {
			return err
		}
		r, err := s.app.Reports().Submit(kind, desc)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Report submitted, thank you! (%s)\n", r.ID)
		return nil
	case "join":
		title, reward, _ := strings.Cut(arg, "|")
		c, err := s.app.Challenges().Join(title, reward)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Joined: %s\n", c.Title)
		return nil
	case "leave":
		removed, err := s.app.Challenges().Remove(arg)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("not in challenge %q", arg)
		}
		return nil
	case "reset":
		if err := s.app.ResetFeed(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Feed cleared. Demo posts return on next start.")
		return nil
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func (s *shell) show(view string) error {
	switch view {
	case "profile":
		p := s.app.Profile().Get()
		fmt.Fprintf(s.out, "name: %s\nbio: %s\navatar: %s\nid: %s\n", p.Name, p.Bio, p.Avatar, p.UserID)
		return s.app.RenderMyPosts(s.out)
	case "challenges":
		list := s.app.Challenges().List()
		if len(list) == 0 {
			fmt.Fprintln(s.out, "No active challenges yet. Go join one!")
		}
		for _, c := range list {
			fmt.Fprintf(s.out, "- %s (%s)\n", c.Title, c.Reward)
		}
		return nil
	default:
		return s.app.RenderFeed(s.out)
	}
}

func (s *shell) editProfile(arg string) error {
	field, value, _ := strings.Cut(arg, " ")
	p := s.app.Profile()
	switch field {
	case "name":
		return p.SetName(value)
	case "bio":
		return p.SetBio(value)
	case "avatar":
		return p.SetAvatar(value)
	default:
		return fmt.Errorf("unknown profile field %q", field)
	}
}

func (s *shell) post(arg string) error {
	var (
		market bool
		image  string
		words  []string
	)
	for _, w := range strings.Fields(arg) {
		switch {
		case w == "--market":
			market = true
		case strings.HasPrefix(w, "--image="):
			image = strings.TrimPrefix(w, "--image=")
		default:
			words = append(words, w)
		}
	}

	post, pending, err := s.app.SubmitPost(strings.Join(words, " "), image, market)
	if err != nil {
		return err
	}
	if pending != nil {
		s.pending = pending
		fmt.Fprintln(s.out, "Safety check: be kind and keep personal details private. Type confirm to post or cancel.")
		return nil
	}
	fmt.Fprintf(s.out, "Posted safely! (%s)\n", post.ID)
	return nil
}

func (s *shell) offer(u *action.Undo) {
	s.undo = u
	fmt.Fprintf(s.out, "%s. Type undo within %s.\n", u.Label, u.Deadline.Sub(s.app.Now()).Round(time.Second))
}
