// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package stream

import "sync/atomic"

// State represents the push channel connection state. It is owned
// exclusively by the Manager; consumers only ever see the derived
// IsConnected boolean.
type State uint32

// Channel states.
const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateFailed
	StateReconnecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// stateManager handles atomic state transitions.
type stateManager struct {
	state uint32
}

// newStateManager creates a new state manager.
func newStateManager() *stateManager {
	return &stateManager{state: uint32(StateIdle)}
}

// get returns the current state.
func (sm *stateManager) get() State {
	return State(atomic.LoadUint32(&sm.state))
}

// set unconditionally sets the state.
func (sm *stateManager) set(s State) {
	atomic.StoreUint32(&sm.state, uint32(s))
}

// transition attempts to transition from expected to new state.
// Returns true if successful.
func (sm *stateManager) transition(from, to State) bool {
	return atomic.CompareAndSwapUint32(&sm.state, uint32(from), uint32(to))
}

// transitionFrom attempts to transition from any of the expected states.
// Returns true if successful.
func (sm *stateManager) transitionFrom(to State, from ...State) bool {
	for _, f := range from {
		if sm.transition(f, to) {
			return true
		}
	}
	return false
}

// isOpen returns true if the channel is established.
func (sm *stateManager) isOpen() bool {
	return sm.get() == StateOpen
}
