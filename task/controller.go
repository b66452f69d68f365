// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"

	"github.com/featurebasedb/cohort/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Controller bounds the number of asynchronous operations in flight and,
// optionally, the rate at which they start. A nil *Controller imposes no
// bound.
type Controller struct {
	slots   int64
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewController returns a controller with the given number of slots. Zero
// or less means DefaultLimit. A positive perSecond paces acquisitions to
// that many per second.
func NewController(slots int, perSecond float64) *Controller {
	if slots <= 0 {
		slots = DefaultLimit()
	}
	c := &Controller{
		slots: int64(slots),
		sem:   semaphore.NewWeighted(int64(slots)),
	}
	if perSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), slots)
	}
	return c
}

// Slots returns the number of concurrent operations allowed.
func (c *Controller) Slots() int {
	if c == nil {
		return 0
	}
	return int(c.slots)
}

// Acquire waits for a slot. It fails with ErrLock when ctx ends first.
func (c *Controller) Acquire(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.WithCode(err, errors.ErrLock)
		}
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return errors.WithCode(err, errors.ErrLock)
	}
	return nil
}

// TryAcquire takes a slot if one is free right now.
func (c *Controller) TryAcquire() bool {
	if c == nil {
		return true
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return false
	}
	return c.sem.TryAcquire(1)
}

// Release returns a slot taken by Acquire or TryAcquire.
func (c *Controller) Release() {
	if c == nil {
		return
	}
	c.sem.Release(1)
}

// Do runs f while holding a slot.
func (c *Controller) Do(ctx context.Context, f func(ctx context.Context) error) error {
	if err := c.Acquire(ctx); err != nil {
		return err
	}
	defer c.Release()
	return f(ctx)
}
