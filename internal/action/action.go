// Package action models short-lived user commands: a pending request that
// waits for confirmation, and a time-boxed undo of a destructive change.
package action

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrResolved is returned when a command has already been confirmed,
	// cancelled or applied.
	ErrResolved = errors.New("action already resolved")
	// ErrExpired is returned when an undo is applied after its window.
	ErrExpired = errors.New("undo window has passed")
)

type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
)

// Pending holds a request of type T until it is confirmed or cancelled.
type Pending[T any] struct {
	Request T
	state   State
}

func NewPending[T any](req T) *Pending[T] {
	return &Pending[T]{Request: req, state: StatePending}
}

func (p *Pending[T]) State() State { return p.state }

// Confirm runs fn with the request and moves to confirmed. If fn fails the
// request stays pending so it can be retried or cancelled.
func (p *Pending[T]) Confirm(fn func(T) error) error {
	if p.state != StatePending {
		return fmt.Errorf("confirm: %w", ErrResolved)
	}
	if err := fn(p.Request); err != nil {
		return err
	}
	p.state = StateConfirmed
	return nil
}

// Cancel drops the request.
func (p *Pending[T]) Cancel() error {
	if p.state != StatePending {
		return fmt.Errorf("cancel: %w", ErrResolved)
	}
	p.state = StateCancelled
	return nil
}

// Undo reverts one change if applied before its deadline. There is no
// durable log; an Undo lives only as long as whoever shows it.
type Undo struct {
	Label    string
	Deadline time.Time
	revert   func() error
	used     bool
}

func NewUndo(label string, deadline time.Time, revert func() error) *Undo {
	return &Undo{Label: label, Deadline: deadline, revert: revert}
}

// Available reports whether Apply would run at now.
func (u *Undo) Available(now time.Time) bool {
	return !u.used && now.Before(u.Deadline)
}

// Apply runs the revert once.
func (u *Undo) Apply(now time.Time) error {
	if u.used {
		return ErrResolved
	}
	if !now.Before(u.Deadline) {
		return ErrExpired
	}
	u.used = true
	return u.revert()
}
