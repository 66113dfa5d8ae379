// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pulsedash/livefeed/metrics"
)

// Codec errors.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingTopic   = errors.New("frame has no topic")
)

// Decode parses one raw inbound frame into an Envelope.
//
// The server emits two frame shapes: the payload either sits under a
// dedicated "payload" field or is spread across the envelope's top
// level. Both are normalized into a single payload record so consumers
// never branch on shape. Heartbeat frames are control traffic and
// return ok=false with no error.
func Decode(raw []byte) (Envelope, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, false, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	topicRaw, ok := fields["topic"]
	if !ok {
		return Envelope{}, false, ErrMissingTopic
	}
	var topic string
	if err := json.Unmarshal(topicRaw, &topic); err != nil || topic == "" {
		return Envelope{}, false, ErrMissingTopic
	}

	if topic == TopicHeartbeat {
		return Envelope{}, false, nil
	}

	payload, err := normalizePayload(fields)
	if err != nil {
		return Envelope{}, false, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	return Envelope{Topic: topic, Payload: payload}, true, nil
}

// normalizePayload extracts the payload record. A "payload" field wins;
// otherwise the remaining top-level fields form the record.
func normalizePayload(fields map[string]json.RawMessage) (json.RawMessage, error) {
	if p, ok := fields["payload"]; ok {
		return p, nil
	}

	rest := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if k == "topic" {
			continue
		}
		rest[k] = v
	}

	return json.Marshal(rest)
}

// Codec decodes frames and absorbs decode failures: a malformed frame
// is logged and dropped, never propagated, so one bad frame cannot
// stall the channel.
type Codec struct {
	logger  *slog.Logger
	metrics *metrics.Core
}

// NewCodec creates a codec. A nil logger falls back to slog.Default().
func NewCodec(logger *slog.Logger, m *metrics.Core) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{logger: logger, metrics: m}
}

// DecodeFrame decodes one frame. ok=false means the frame produced no
// envelope (heartbeat or malformed) and processing should move on.
func (c *Codec) DecodeFrame(raw []byte) (Envelope, bool) {
	env, ok, err := Decode(raw)
	if err != nil {
		c.metrics.DecodeFailure()
		c.logger.Warn("frame_decode_failed", slog.String("error", err.Error()))
		return Envelope{}, false
	}
	return env, ok
}
