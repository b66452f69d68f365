// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the parallelism used when a limit of zero or less is
// given.
func DefaultLimit() int {
	return runtime.GOMAXPROCS(0)
}

// Group runs functions on at most limit goroutines at once. The context
// passed to each function is cancelled as soon as one of them fails.
type Group struct {
	eg  *errgroup.Group
	ctx context.Context
}

// NewGroup returns a group bounded to limit concurrent functions.
func NewGroup(ctx context.Context, limit int) *Group {
	if limit <= 0 {
		limit = DefaultLimit()
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	return &Group{eg: eg, ctx: ctx}
}

// Go runs f once a slot frees up. It blocks while the group is full.
func (g *Group) Go(f func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if err := g.ctx.Err(); err != nil {
			return err
		}
		return f(g.ctx)
	})
}

// Wait waits for every function and returns the first error.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

// Map calls f for every item with at most limit calls in flight and
// returns the results in the order of items. The first error cancels the
// remaining calls and is returned.
func Map[T, R any](ctx context.Context, limit int, items []T, f func(ctx context.Context, item T) (R, error)) ([]R, error) {
	return MapDiscard[T, R](ctx, limit, items, f, nil)
}

// MapDiscard is Map for results that own resources. When any call fails,
// discard is called on the result of every call that succeeded before the
// error is returned.
func MapDiscard[T, R any](ctx context.Context, limit int, items []T, f func(ctx context.Context, item T) (R, error), discard func(R)) ([]R, error) {
	out := make([]R, len(items))
	done := make([]bool, len(items))
	g := NewGroup(ctx, limit)
	for i := range items {
		i := i
		g.Go(func(ctx context.Context) error {
			r, err := f(ctx, items[i])
			if err != nil {
				return err
			}
			out[i], done[i] = r, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if discard != nil {
			for i, ok := range done {
				if ok {
					discard(out[i])
				}
			}
		}
		return nil, err
	}
	return out, nil
}
