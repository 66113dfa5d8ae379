// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pulsedash/livefeed/feed"
)

// Feed adapts one feed endpoint to feed.Fetcher, decoding items into T.
type Feed[T any] struct {
	client *Client
	feedID string
}

// NewFeed creates a typed fetcher for the given feed.
func NewFeed[T any](client *Client, feedID string) *Feed[T] {
	return &Feed[T]{client: client, feedID: feedID}
}

// FetchPage implements feed.Fetcher.
func (f *Feed[T]) FetchPage(ctx context.Context, cursor string, limit int) (feed.Page[T], error) {
	raw, err := f.client.FetchPage(ctx, f.feedID, cursor, limit)
	if err != nil {
		return feed.Page[T]{}, err
	}

	items := make([]T, 0, len(raw.Items))
	for i, data := range raw.Items {
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return feed.Page[T]{}, fmt.Errorf("decode item %d of feed %s: %w", i, f.feedID, err)
		}
		items = append(items, item)
	}

	return feed.Page[T]{
		Items:      items,
		NextCursor: raw.NextCursor,
		HasMore:    raw.HasMore,
	}, nil
}
