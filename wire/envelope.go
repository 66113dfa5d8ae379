// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package wire

import "encoding/json"

// Topic identifiers pushed by the dashboard server.
const (
	TopicHeartbeat        = "heartbeat"
	TopicBuildUpdated     = "build.updated"
	TopicBuildCompleted   = "build.completed"
	TopicStepUpdated      = "step.updated"
	TopicAgentStatus      = "agent.status"
	TopicUserNotification = "user-notification"
)

// Kind is the typed discriminator for a decoded envelope. Unrecognized
// topics map to KindUnknown rather than being rejected, so subscribers
// registered for a new server-side topic still receive it.
type Kind int

// Envelope kinds.
const (
	KindUnknown Kind = iota
	KindHeartbeat
	KindBuildUpdated
	KindBuildCompleted
	KindStepUpdated
	KindAgentStatus
	KindUserNotification
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindBuildUpdated:
		return "build_updated"
	case KindBuildCompleted:
		return "build_completed"
	case KindStepUpdated:
		return "step_updated"
	case KindAgentStatus:
		return "agent_status"
	case KindUserNotification:
		return "user_notification"
	default:
		return "unknown"
	}
}

// KindOf maps a topic string to its Kind.
func KindOf(topic string) Kind {
	switch topic {
	case TopicHeartbeat:
		return KindHeartbeat
	case TopicBuildUpdated:
		return KindBuildUpdated
	case TopicBuildCompleted:
		return KindBuildCompleted
	case TopicStepUpdated:
		return KindStepUpdated
	case TopicAgentStatus:
		return KindAgentStatus
	case TopicUserNotification:
		return KindUserNotification
	default:
		return KindUnknown
	}
}

// Envelope is one decoded push notification: a routing topic and an
// opaque payload record. The payload is never interpreted by the
// distribution layer; it is handed to subscribers as raw JSON.
type Envelope struct {
	Topic   string
	Payload json.RawMessage
}

// Kind returns the typed discriminator for the envelope's topic.
func (e Envelope) Kind() Kind {
	return KindOf(e.Topic)
}

// broadcastTopics is the fixed allow-list of topics that are re-emitted
// on the registry's global broadcast path in addition to normal
// per-topic dispatch.
var broadcastTopics = map[string]bool{
	TopicBuildUpdated:   true,
	TopicBuildCompleted: true,
	TopicAgentStatus:    true,
}

// Broadcasts reports whether envelopes on the topic are re-emitted as
// global broadcast events.
func Broadcasts(topic string) bool {
	return broadcastTopics[topic]
}
