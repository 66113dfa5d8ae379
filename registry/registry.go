// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

// Package registry multiplexes decoded envelopes to per-topic
// subscriber sets. It is a process-wide singleton with a single-writer
// discipline: only the registry mutates subscriber sets, and dispatch
// runs on the connection's read goroutine so subscribers observe
// envelopes in frame arrival order.
package registry

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pulsedash/livefeed/metrics"
	"github.com/pulsedash/livefeed/wire"
)

// DefaultBroadcastBuffer is the broadcast channel capacity.
const DefaultBroadcastBuffer = 64

// Handler consumes envelopes for one topic. Handlers must not assume
// anything about the channel's physical connection state.
type Handler func(env wire.Envelope)

// Subscription is the opaque handle returned by Subscribe. Its sole
// operation is Unsubscribe, which is idempotent.
type Subscription struct {
	id    uuid.UUID
	topic string
	fn    Handler
	reg   *Registry
	once  sync.Once
}

// Unsubscribe removes exactly this subscription. Calling it more than
// once is safe and has the same observable effect as calling it once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.reg.remove(s)
	})
}

// Registry owns the topic → subscriber mapping and the secondary
// broadcast path.
type Registry struct {
	logger  *slog.Logger
	metrics *metrics.Core

	mu   sync.RWMutex
	subs map[string][]*Subscription

	broadcast chan Broadcast
	toastMu   sync.RWMutex
	toaster   Toaster
}

// New creates a registry. A nil logger falls back to slog.Default();
// broadcastBuffer <= 0 falls back to DefaultBroadcastBuffer.
func New(logger *slog.Logger, broadcastBuffer int, m *metrics.Core) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if broadcastBuffer <= 0 {
		broadcastBuffer = DefaultBroadcastBuffer
	}
	return &Registry{
		logger:    logger,
		metrics:   m,
		subs:      make(map[string][]*Subscription),
		broadcast: make(chan Broadcast, broadcastBuffer),
	}
}

// Subscribe registers a callback for a topic. Multiple independent
// callbacks may register for the same topic; all are invoked, in
// registration order, for each envelope on that topic. Topic sets are
// created lazily and deleted when their last subscriber leaves.
func (r *Registry) Subscribe(topic string, fn Handler) *Subscription {
	sub := &Subscription{
		id:    uuid.New(),
		topic: topic,
		fn:    fn,
		reg:   r,
	}

	r.mu.Lock()
	r.subs[topic] = append(r.subs[topic], sub)
	r.mu.Unlock()

	r.metrics.SubscriptionsChanged(1)
	return sub
}

func (r *Registry) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.subs[sub.topic]
	if !ok {
		return
	}
	for i, s := range list {
		if s.id == sub.id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.subs, sub.topic)
	} else {
		r.subs[sub.topic] = list
	}
	r.metrics.SubscriptionsChanged(-1)
}

// Dispatch delivers one envelope to every subscriber of its topic, then
// runs the secondary paths: the global broadcast projection for
// allow-listed topics and the toast sink for user notifications.
//
// Each callback invocation is isolated: a panicking subscriber is
// logged and must not prevent sibling callbacks, for the same envelope,
// from being invoked.
func (r *Registry) Dispatch(env wire.Envelope) {
	r.mu.RLock()
	snapshot := make([]*Subscription, len(r.subs[env.Topic]))
	copy(snapshot, r.subs[env.Topic])
	r.mu.RUnlock()

	for _, sub := range snapshot {
		r.invoke(sub, env)
	}
	r.metrics.EnvelopesDelivered(env.Topic, len(snapshot))

	if wire.Broadcasts(env.Topic) {
		r.emitBroadcast(env)
	}
	if env.Topic == wire.TopicUserNotification {
		r.showToast(env)
	}
}

func (r *Registry) invoke(sub *Subscription, env wire.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber_panic",
				slog.String("topic", env.Topic),
				slog.Any("panic", rec))
		}
	}()
	sub.fn(env)
}

// Clear removes all subscriber sets. Called on provider teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for _, list := range r.subs {
		n += len(list)
	}
	r.subs = make(map[string][]*Subscription)
	r.metrics.SubscriptionsChanged(-n)
}

// count returns the number of subscribers for a topic.
func (r *Registry) count(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[topic])
}
