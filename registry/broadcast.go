// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/json"
	"log/slog"

	"github.com/pulsedash/livefeed/wire"
)

// Broadcast is the loosely-typed, fire-and-forget event re-emitted on
// the global path for the fixed allow-list of topics. It exists for
// consumers that never call Subscribe directly; it is a strict
// projection of the typed dispatch, never an independent source of
// truth.
type Broadcast struct {
	Topic   string
	Payload json.RawMessage
}

// Events returns the global broadcast channel. Sends are non-blocking:
// if no consumer keeps up, events are dropped, not queued unboundedly.
func (r *Registry) Events() <-chan Broadcast {
	return r.broadcast
}

func (r *Registry) emitBroadcast(env wire.Envelope) {
	b := Broadcast{Topic: env.Topic, Payload: env.Payload}
	select {
	case r.broadcast <- b:
	default:
		r.metrics.BroadcastDropped(env.Topic)
		r.logger.Warn("broadcast_dropped", slog.String("topic", env.Topic))
	}
}
