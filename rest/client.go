// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

// Package rest is the paginated list fetch collaborator: a thin HTTP
// client for the dashboard API's cursor-paginated feed endpoints.
// Fetches are idempotent for the same (feed, cursor) pair and the
// returned cursor is only ever echoed back, never interpreted.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pulsedash/livefeed/metrics"
)

// Client errors.
var (
	ErrNoBaseURL   = errors.New("api base url not configured")
	ErrFetchFailed = errors.New("feed fetch failed")
)

// Default values.
const (
	DefaultTimeout          = 10 * time.Second
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second
)

// Config configures the REST client.
type Config struct {
	BaseURL string        // API root, e.g. https://dash.example.com/api
	Token   string        // Bearer token sent with every request
	Timeout time.Duration // Per-request timeout

	// Circuit breaker: after FailureThreshold consecutive failures the
	// breaker opens and fetches fail fast until ResetTimeout elapses.
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Client fetches feed pages over HTTP.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Core
}

// New creates a REST client.
func New(cfg Config, logger *slog.Logger, m *metrics.Core) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "feed-api",
		MaxRequests: 1,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("feed api circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
		metrics: m,
	}, nil
}

// RawPage is one fetched page with undecoded items.
type RawPage struct {
	Items      []json.RawMessage
	NextCursor string
	HasMore    bool
}

// pageBody is the wire shape of a feed page response.
type pageBody struct {
	Items      []json.RawMessage `json:"items"`
	NextCursor *string           `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

// FetchPage fetches one page of a feed. An empty cursor requests page
// one.
func (c *Client) FetchPage(ctx context.Context, feedID, cursor string, limit int) (RawPage, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doFetch(ctx, feedID, cursor, limit)
	})
	if err != nil {
		return RawPage{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	c.metrics.PageFetched(feedID)
	return result.(RawPage), nil
}

func (c *Client) doFetch(ctx context.Context, feedID, cursor string, limit int) (RawPage, error) {
	u := fmt.Sprintf("%s/feeds/%s", c.baseURL, url.PathEscape(feedID))
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return RawPage{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return RawPage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return RawPage{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body pageBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return RawPage{}, fmt.Errorf("decode page: %w", err)
	}

	page := RawPage{Items: body.Items, HasMore: body.HasMore}
	if body.NextCursor != nil {
		page.NextCursor = *body.NextCursor
	}
	return page, nil
}
