// Package deletion deletes objects on backends that apply deletes
// asynchronously.
//
// A 2xx response to DeleteObject does not mean the object is gone. The
// Confirmer re-checks existence after each delete and re-issues the delete a
// bounded number of times with a fixed delay in between.
//
//	CheckExists --absent--> Deleted
//	     |present
//	     v
//	  Delete --> ConfirmDeleted --absent--> Deleted
//	     ^              |present
//	     +--wait--------+ (retries < max)
//	                    |
//	                    +--> Failed (retries exhausted)
package deletion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

const (
	// DefaultMaxRetries is the number of confirmations before giving up.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the fixed wait between a failed confirmation and
	// the next delete.
	DefaultRetryDelay = time.Second
)

// State is a step of the delete-and-confirm machine.
type State string

// States
const (
	StateCheckExists    State = "check_exists"
	StateDelete         State = "delete"
	StateConfirmDeleted State = "confirm_deleted"
	StateDeleted        State = "deleted"
	StateFailed         State = "failed"
)

// Terminal reports whether s ends the machine.
func (s State) Terminal() bool {
	return s == StateDeleted || s == StateFailed
}

// Store is the part of the storage client the confirmer needs. Head must
// return (nil, nil) for a missing object.
type Store interface {
	Bucket() string
	Head(ctx context.Context, key string) (*s3types.StoredObject, error)
	Delete(ctx context.Context, key string) error
}

// Sleeper waits between attempts. Implementations must return early with
// ctx.Err() when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
}

// Result describes a finished deletion.
type Result struct {
	Key   string
	State State

	// Existed is false when the object was absent on the first check
	Existed bool

	// Deletes is the number of DeleteObject requests issued
	Deletes int

	// Retries is the number of confirmations that still saw the object
	Retries int

	Transitions []Transition
}

// Confirmer runs the delete-and-confirm machine.
type Confirmer struct {
	store      Store
	sleeper    Sleeper
	maxRetries int
	delay      time.Duration
	logger     *slog.Logger
}

// Option configures a Confirmer.
type Option func(*Confirmer)

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(s Sleeper) Option {
	return func(c *Confirmer) {
		if s != nil {
			c.sleeper = s
		}
	}
}

// WithMaxRetries sets how many confirmations may see the object before the
// deletion fails. Default is 3.
func WithMaxRetries(n int) Option {
	return func(c *Confirmer) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the fixed delay between attempts. Default is 1s.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Confirmer) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Confirmer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConfirmer returns a Confirmer over store.
func NewConfirmer(store Store, opts ...Option) *Confirmer {
	c := &Confirmer{
		store:      store,
		sleeper:    timerSleeper{},
		maxRetries: DefaultMaxRetries,
		delay:      DefaultRetryDelay,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "deletion")
	return c
}

// Delete removes key and waits until a HEAD no longer sees it. Deleting a
// missing object succeeds. When the object outlives every retry the error
// wraps ErrDeletionConsistency. The Result is returned in every case.
func (c *Confirmer) Delete(ctx context.Context, key string) (*Result, error) {
	res := &Result{Key: key, State: StateCheckExists}
	run := &run{c: c, res: res}

	for !res.State.Terminal() {
		if err := run.step(ctx); err != nil {
			run.to(StateFailed)
			metrics.Get().RecordDeletion(res.Deletes)
			return res, err
		}
	}

	metrics.Get().RecordDeletion(res.Deletes)
	if res.State == StateFailed {
		return res, errors.NewObjectError("delete", c.store.Bucket(), key, errors.ErrDeletionConsistency).
			WithMessage(fmt.Sprintf("object still present after %d confirmations", res.Retries))
	}
	return res, nil
}

type run struct {
	c   *Confirmer
	res *Result
}

func (r *run) to(next State) {
	r.res.Transitions = append(r.res.Transitions, Transition{From: r.res.State, To: next})
	r.res.State = next
}

func (r *run) step(ctx context.Context) error {
	key := r.res.Key
	switch r.res.State {
	case StateCheckExists:
		exists, err := r.exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			r.c.logger.Debug("object already absent", "key", key)
			r.to(StateDeleted)
			return nil
		}
		r.res.Existed = true
		r.to(StateDelete)

	case StateDelete:
		r.res.Deletes++
		if err := r.c.store.Delete(ctx, key); err != nil {
			return err
		}
		r.to(StateConfirmDeleted)

	case StateConfirmDeleted:
		exists, err := r.exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			if r.res.Retries > 0 {
				r.c.logger.Info("deletion confirmed after retry", "key", key, "retries", r.res.Retries)
			}
			r.to(StateDeleted)
			return nil
		}
		r.res.Retries++
		if r.res.Retries >= r.c.maxRetries {
			r.c.logger.Warn("object still present after deletion", "key", key, "retries", r.res.Retries)
			r.to(StateFailed)
			return nil
		}
		r.c.logger.Debug("object still visible, retrying delete", "key", key, "retry", r.res.Retries)
		if err := r.c.sleeper.Sleep(ctx, r.c.delay); err != nil {
			return err
		}
		r.to(StateDelete)
	}
	return nil
}

func (r *run) exists(ctx context.Context) (bool, error) {
	obj, err := r.c.store.Head(ctx, r.res.Key)
	if err != nil {
		return false, err
	}
	return obj != nil, nil
}
