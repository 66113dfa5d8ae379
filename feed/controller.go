// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pulsedash/livefeed/metrics"
)

// Controller owns one feed's state: the accumulated items, the current
// continuation cursor, and the two in-flight flags that prevent
// duplicate concurrent requests. All state is guarded by one mutex;
// fetches run outside the lock and results are applied under it, gated
// on the generation counter.
//
// Push notifications never merge incrementally into the window: the
// server's cursor encodes a position that a mid-stream insert or update
// can invalidate, so the only operation allowed to shrink or reorder
// items is a full resync from page one.
type Controller[T any] struct {
	fetcher Fetcher[T]
	limit   int
	logger  *slog.Logger
	metrics *metrics.Core
	resync  *rate.Limiter // nil = uncoalesced

	mu             sync.Mutex
	items          []T
	nextCursor     string
	hasMore        bool
	loadingInitial bool
	loadingMore    bool
	resyncPending  bool
	gen            uint64
}

// Option configures a Controller.
type Option[T any] func(*Controller[T])

// WithLimit sets the page size requested from the fetcher.
func WithLimit[T any](limit int) Option[T] {
	return func(c *Controller[T]) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithLogger sets the logger.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(c *Controller[T]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics[T any](m *metrics.Core) Option[T] {
	return func(c *Controller[T]) {
		c.metrics = m
	}
}

// WithResyncInterval coalesces invalidation storms: resyncs triggered
// by Invalidate run at most once per interval. The limiter delays a
// required resync, it never drops one.
func WithResyncInterval[T any](d time.Duration) Option[T] {
	return func(c *Controller[T]) {
		if d > 0 {
			c.resync = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewController creates a feed controller. The feed starts empty with
// hasMore=true so the first LoadInitial is always permitted.
func NewController[T any](fetcher Fetcher[T], opts ...Option[T]) *Controller[T] {
	c := &Controller[T]{
		fetcher: fetcher,
		limit:   DefaultLimit,
		logger:  slog.Default(),
		hasMore: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadInitial fetches page one and replaces the window wholesale. A
// call while another LoadInitial is in flight is a no-op. Bumping the
// generation at the start condemns any in-flight LoadMore: its result,
// resolving later, is discarded rather than appended to a window that
// was just reset.
//
// On fetch error the in-flight flag is cleared so the operation can be
// retried, but items and cursor are left unchanged.
func (c *Controller[T]) LoadInitial(ctx context.Context) error {
	c.mu.Lock()
	if c.loadingInitial {
		c.mu.Unlock()
		return nil
	}
	c.loadingInitial = true
	c.loadingMore = false // any in-flight LoadMore is condemned below
	c.gen++
	c.mu.Unlock()

	page, err := c.fetcher.FetchPage(ctx, "", c.limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.loadingInitial = false
	if err != nil {
		return fmt.Errorf("load initial: %w", err)
	}

	c.items = append([]T(nil), page.Items...)
	c.nextCursor = page.NextCursor
	c.hasMore = page.HasMore
	return nil
}

// LoadMore fetches the next page using the stored cursor and appends
// its items. Preconditions: hasMore, a cursor is present, and no load
// is already in flight — violating any of them makes the call a no-op,
// not an error. Appended items are not deduplicated: the server's
// cursor is trusted to avoid overlap.
func (c *Controller[T]) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasMore || c.nextCursor == "" || c.loadingMore || c.loadingInitial {
		c.mu.Unlock()
		return nil
	}
	c.loadingMore = true
	gen := c.gen
	cursor := c.nextCursor
	c.mu.Unlock()

	page, err := c.fetcher.FetchPage(ctx, cursor, c.limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// A resync won while this page was in flight. The window was
		// replaced from page one; this result no longer has a position.
		c.metrics.StaleDrop()
		c.logger.Debug("stale_page_discarded", slog.String("cursor", cursor))
		return nil
	}

	c.loadingMore = false
	if err != nil {
		return fmt.Errorf("load more: %w", err)
	}

	c.items = append(c.items, page.Items...)
	c.nextCursor = page.NextCursor
	c.hasMore = page.HasMore
	return nil
}

// Invalidate signals that an upstream domain object changed and the
// window may no longer reflect a true server snapshot. The policy is
// resync, not merge: a fresh LoadInitial replaces the window from page
// one. The resync runs on its own goroutine so registry dispatch is
// never blocked.
//
// Invalidations coalesce: while a resync is already pending, further
// calls are no-ops, so a notification storm collapses into at most one
// trailing resync behind the rate limiter rather than queueing one
// reload per notification. Cancelling ctx releases a pending resync
// without running it; the owner cancels on teardown.
func (c *Controller[T]) Invalidate(ctx context.Context) {
	c.mu.Lock()
	if c.resyncPending {
		c.mu.Unlock()
		return
	}
	c.resyncPending = true
	c.mu.Unlock()

	go func() {
		if c.resync != nil {
			if err := c.resync.Wait(ctx); err != nil {
				c.mu.Lock()
				c.resyncPending = false
				c.mu.Unlock()
				return
			}
		}

		// Clear the flag before fetching: an invalidation arriving while
		// the reload is in flight describes state the reload may have
		// missed, and must arm the next resync.
		c.mu.Lock()
		c.resyncPending = false
		c.mu.Unlock()

		if err := c.LoadInitial(ctx); err != nil {
			c.logger.Warn("resync_failed", slog.String("error", err.Error()))
		}
	}()
}

// Snapshot returns the view-facing surface of the feed.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot[T]{
		Items:          append([]T(nil), c.items...),
		HasMore:        c.hasMore,
		LoadingInitial: c.loadingInitial,
		LoadingMore:    c.loadingMore,
	}
}

// Items returns a copy of the accumulated items.
func (c *Controller[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// HasMore reports whether the server has pages beyond the window.
func (c *Controller[T]) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// IsLoadingInitial reports whether a page-one fetch is in flight.
func (c *Controller[T]) IsLoadingInitial() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadingInitial
}

// IsLoadingMore reports whether a continuation fetch is in flight.
func (c *Controller[T]) IsLoadingMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadingMore
}
