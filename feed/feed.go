// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

// Package feed manages paginated, append-only, ordered lists whose
// contents change on the server out of band. Each view owns one
// Controller; controllers are never shared across views.
package feed

import "context"

// DefaultLimit is the page size requested when none is configured.
const DefaultLimit = 20

// Page is one fetched window of a feed. Items arrive oldest-loaded
// first; the server assigns the order and the client never re-sorts.
// NextCursor is an opaque, server-issued continuation token: it is only
// ever echoed back, never parsed or constructed here.
type Page[T any] struct {
	Items      []T
	NextCursor string
	HasMore    bool
}

// Fetcher fetches feed pages. An empty cursor means page one. Fetches
// must be idempotent for the same cursor.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, cursor string, limit int) (Page[T], error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, cursor string, limit int) (Page[T], error)

// FetchPage calls f.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, cursor string, limit int) (Page[T], error) {
	return f(ctx, cursor, limit)
}

// Snapshot is the feed surface exposed to a view.
type Snapshot[T any] struct {
	Items          []T
	HasMore        bool
	LoadingInitial bool
	LoadingMore    bool
}
