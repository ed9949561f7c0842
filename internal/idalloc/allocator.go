// Package idalloc issues short numeric registration identifiers.
//
// Values are drawn at random from a 4-digit space and checked against the
// store. After a bounded number of collisions the allocator moves to a
// 6-digit space so allocation always terminates. The check-then-insert is
// not atomic: two concurrent allocations may observe the same value absent.
package idalloc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
)

var ErrExhausted = errors.New("no free registration id found")

// Checker reports whether a registration already carries id.
type Checker interface {
	RegistrationIDExists(ctx context.Context, id string) (bool, error)
}

// Space is the inclusive range [Min, Max] values are drawn from.
type Space struct {
	Min, Max int
}

var (
	ShortSpace = Space{Min: 1000, Max: 9999}
	LongSpace  = Space{Min: 100000, Max: 999999}
)

const DefaultAttempts = 20

type Allocator struct {
	store    Checker
	spaces   []Space
	attempts int
	intN     func(n int) int
}

type Option func(*Allocator)

func WithAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.attempts = n
		}
	}
}

func WithSpaces(spaces ...Space) Option {
	return func(a *Allocator) {
		if len(spaces) > 0 {
			a.spaces = spaces
		}
	}
}

// WithRand replaces the random source; intN must return a value in [0, n).
func WithRand(intN func(n int) int) Option {
	return func(a *Allocator) {
		a.intN = intN
	}
}

func New(store Checker, opts ...Option) *Allocator {
	a := &Allocator{
		store:    store,
		spaces:   []Space{ShortSpace, LongSpace},
		attempts: DefaultAttempts,
		intN:     rand.Intn,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for _, space := range a.spaces {
		for i := 0; i < a.attempts; i++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			id := strconv.Itoa(space.Min + a.intN(space.Max-space.Min+1))
			taken, err := a.store.RegistrationIDExists(ctx, id)
			if err != nil {
				return "", fmt.Errorf("check registration id %s: %w", id, err)
			}
			if !taken {
				return id, nil
			}
		}
	}
	return "", ErrExhausted
}
