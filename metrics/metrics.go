// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the OpenTelemetry instruments for the livefeed
// core. Only instruments live here; exporter setup belongs to the host
// application. A nil *Core is valid and records nothing, so callers
// never guard instrumentation sites.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Core holds the metric instruments for the distribution and feed core.
type Core struct {
	meter metric.Meter

	framesTotal        metric.Int64Counter
	decodeFailures     metric.Int64Counter
	envelopesDelivered metric.Int64Counter
	broadcastDropped   metric.Int64Counter
	reconnectsTotal    metric.Int64Counter
	fetchPagesTotal    metric.Int64Counter
	staleDropsTotal    metric.Int64Counter

	subscriptionsActive metric.Int64UpDownCounter
}

// NewCore creates a Core with all instruments initialized against the
// global meter provider.
func NewCore(serviceName string) (*Core, error) {
	if serviceName == "" {
		serviceName = "livefeed"
	}

	m := &Core{meter: otel.Meter(serviceName)}

	var err error

	m.framesTotal, err = m.meter.Int64Counter(
		"livefeed.frames.total",
		metric.WithDescription("Total raw frames received on the push channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create framesTotal counter: %w", err)
	}

	m.decodeFailures, err = m.meter.Int64Counter(
		"livefeed.frames.decode_failures.total",
		metric.WithDescription("Total frames dropped as malformed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decodeFailures counter: %w", err)
	}

	m.envelopesDelivered, err = m.meter.Int64Counter(
		"livefeed.envelopes.delivered.total",
		metric.WithDescription("Total subscriber callback invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create envelopesDelivered counter: %w", err)
	}

	m.broadcastDropped, err = m.meter.Int64Counter(
		"livefeed.broadcast.dropped.total",
		metric.WithDescription("Total broadcast events dropped due to a full channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create broadcastDropped counter: %w", err)
	}

	m.reconnectsTotal, err = m.meter.Int64Counter(
		"livefeed.reconnects.total",
		metric.WithDescription("Total reconnect attempts scheduled"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconnectsTotal counter: %w", err)
	}

	m.fetchPagesTotal, err = m.meter.Int64Counter(
		"livefeed.feed.pages.total",
		metric.WithDescription("Total feed pages fetched"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetchPagesTotal counter: %w", err)
	}

	m.staleDropsTotal, err = m.meter.Int64Counter(
		"livefeed.feed.stale_drops.total",
		metric.WithDescription("Total stale page results discarded by the generation check"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create staleDropsTotal counter: %w", err)
	}

	m.subscriptionsActive, err = m.meter.Int64UpDownCounter(
		"livefeed.subscriptions.active",
		metric.WithDescription("Number of active topic subscriptions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptionsActive gauge: %w", err)
	}

	return m, nil
}

// FrameReceived records one inbound frame.
func (m *Core) FrameReceived() {
	if m == nil {
		return
	}
	m.framesTotal.Add(context.Background(), 1)
}

// DecodeFailure records one dropped malformed frame.
func (m *Core) DecodeFailure() {
	if m == nil {
		return
	}
	m.decodeFailures.Add(context.Background(), 1)
}

// EnvelopesDelivered records callback invocations for a topic.
func (m *Core) EnvelopesDelivered(topic string, n int) {
	if m == nil {
		return
	}
	m.envelopesDelivered.Add(context.Background(), int64(n),
		metric.WithAttributes(attribute.String("topic", topic)))
}

// BroadcastDropped records one dropped broadcast event.
func (m *Core) BroadcastDropped(topic string) {
	if m == nil {
		return
	}
	m.broadcastDropped.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("topic", topic)))
}

// ReconnectScheduled records one scheduled reconnect attempt.
func (m *Core) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Add(context.Background(), 1)
}

// PageFetched records one fetched feed page.
func (m *Core) PageFetched(feedID string) {
	if m == nil {
		return
	}
	m.fetchPagesTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("feed", feedID)))
}

// StaleDrop records one page result discarded by the generation check.
func (m *Core) StaleDrop() {
	if m == nil {
		return
	}
	m.staleDropsTotal.Add(context.Background(), 1)
}

// SubscriptionsChanged moves the active subscription gauge.
func (m *Core) SubscriptionsChanged(delta int) {
	if m == nil {
		return
	}
	m.subscriptionsActive.Add(context.Background(), int64(delta))
}
