// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

// Package livefeed is the realtime core of the Pulsedash operational
// dashboard: a single long-lived push channel fanned out to typed topic
// subscribers, plus cursor-paginated feeds that stay consistent when
// notifications arrive mid-scroll.
//
// The Hub is an explicitly owned, lifecycle-scoped instance: the
// application shell creates it, injects it into views, and tears it
// down with Close. There is no ambient global state.
package livefeed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pulsedash/livefeed/config"
	"github.com/pulsedash/livefeed/feed"
	"github.com/pulsedash/livefeed/metrics"
	"github.com/pulsedash/livefeed/registry"
	"github.com/pulsedash/livefeed/rest"
	"github.com/pulsedash/livefeed/stream"
	"github.com/pulsedash/livefeed/wire"
)

// Hub errors.
var (
	ErrNilConfig = errors.New("config cannot be nil")
	ErrNoAPI     = errors.New("api base url not configured")
)

// Hub owns the push channel, the codec, and the subscription registry
// for one dashboard session.
type Hub struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Core
	codec   *wire.Codec
	reg     *registry.Registry
	manager *stream.Manager
	api     *rest.Client
}

// Option configures a Hub.
type Option func(*hubOptions)

type hubOptions struct {
	logger *slog.Logger
	dialer stream.Dialer
}

// WithLogger sets the logger for the hub and everything it owns.
func WithLogger(l *slog.Logger) Option {
	return func(o *hubOptions) { o.logger = l }
}

// WithDialer overrides the push channel transport. Used by tests.
func WithDialer(d stream.Dialer) Option {
	return func(o *hubOptions) { o.dialer = d }
}

// New creates a hub from the given configuration. The push channel is
// not opened until Connect.
func New(cfg *config.Config, opts ...Option) (*Hub, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var ho hubOptions
	for _, opt := range opts {
		opt(&ho)
	}
	logger := ho.logger
	if logger == nil {
		logger = slog.Default()
	}

	var m *metrics.Core
	if cfg.Metrics.Enabled {
		var err error
		if m, err = metrics.NewCore(cfg.Metrics.ServiceName); err != nil {
			return nil, err
		}
	}

	h := &Hub{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		codec:   wire.NewCodec(logger, m),
		reg:     registry.New(logger, cfg.Feeds.BroadcastBuffer, m),
	}

	if cfg.API.BaseURL != "" {
		api, err := rest.New(rest.Config{
			BaseURL:          cfg.API.BaseURL,
			Token:            cfg.API.Token,
			Timeout:          cfg.API.Timeout,
			FailureThreshold: cfg.API.FailureThreshold,
			ResetTimeout:     cfg.API.ResetTimeout,
		}, logger, m)
		if err != nil {
			return nil, err
		}
		h.api = api
	}

	header := http.Header{}
	if cfg.Stream.AuthToken != "" {
		header.Set("Authorization", "Bearer "+cfg.Stream.AuthToken)
	}

	streamOpts := stream.NewOptions().
		SetURL(cfg.Stream.URL).
		SetHeader(header).
		SetHandshakeTimeout(cfg.Stream.HandshakeTimeout).
		SetReconnect(cfg.Stream.ReconnectInitial, cfg.Stream.ReconnectMax).
		SetOnFrame(h.handleFrame).
		SetOnStateChange(h.handleState).
		SetLogger(logger)
	if ho.dialer != nil {
		streamOpts.SetDialer(ho.dialer)
	}

	manager, err := stream.New(streamOpts)
	if err != nil {
		return nil, err
	}
	h.manager = manager

	return h, nil
}

// Connect opens the push channel. Idempotent; failures are absorbed
// into the reconnect schedule.
func (h *Hub) Connect() {
	h.manager.Connect()
}

// Close tears the hub down: the channel is closed, any pending
// reconnect is cancelled, and all subscriber sets are cleared.
func (h *Hub) Close() {
	h.manager.Disconnect()
	h.reg.Clear()
}

// Subscribe registers a callback for a topic.
func (h *Hub) Subscribe(topic string, fn registry.Handler) *registry.Subscription {
	return h.reg.Subscribe(topic, fn)
}

// IsConnected reports whether the push channel is open.
func (h *Hub) IsConnected() bool {
	return h.manager.IsConnected()
}

// Events returns the global broadcast channel for the fixed allow-list
// of topics. It is a projection of typed dispatch for decoupled
// consumers, not a substitute for Subscribe.
func (h *Hub) Events() <-chan registry.Broadcast {
	return h.reg.Events()
}

// SetToaster installs the UI toast sink.
func (h *Hub) SetToaster(t registry.Toaster) {
	h.reg.SetToaster(t)
}

// API returns the REST collaborator, or nil if none is configured.
func (h *Hub) API() *rest.Client {
	return h.api
}

func (h *Hub) handleFrame(raw []byte) {
	h.metrics.FrameReceived()
	env, ok := h.codec.DecodeFrame(raw)
	if !ok {
		return
	}
	h.reg.Dispatch(env)
}

func (h *Hub) handleState(s stream.State) {
	h.logger.Debug("push_channel_state", slog.String("state", s.String()))
	if s == stream.StateReconnecting {
		h.metrics.ReconnectScheduled()
	}
}

// NewFeed creates a feed controller backed by the hub's REST client and
// subscribed to the given invalidation topics. The returned stop
// function releases the subscriptions and cancels any resync still
// waiting behind the coalescing interval; call it when the owning view
// is destroyed. Feed state is per view and never shared.
func NewFeed[T any](h *Hub, feedID string, topics ...string) (*feed.Controller[T], func(), error) {
	if h.api == nil {
		return nil, nil, ErrNoAPI
	}

	ctrl := feed.NewController[T](
		rest.NewFeed[T](h.api, feedID),
		feed.WithLimit[T](h.cfg.Feeds.PageSize),
		feed.WithLogger[T](h.logger),
		feed.WithMetrics[T](h.metrics),
		feed.WithResyncInterval[T](h.cfg.Feeds.ResyncMinInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())

	subs := make([]*registry.Subscription, 0, len(topics))
	for _, topic := range topics {
		subs = append(subs, h.reg.Subscribe(topic, func(wire.Envelope) {
			ctrl.Invalidate(ctx)
		}))
	}

	stop := func() {
		cancel()
		for _, s := range subs {
			s.Unsubscribe()
		}
	}
	return ctrl, stop, nil
}
