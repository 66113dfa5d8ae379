// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Manager owns the single push channel: its lifecycle state machine and
// its reconnection policy. Transport failures never reach callers; they
// are absorbed and turned into a reconnect schedule. The system is
// designed to be eventually-connected, not to fail fast.
type Manager struct {
	opts   *Options
	state  *stateManager
	dialer Dialer
	logger *slog.Logger

	mu             sync.Mutex
	conn           Conn
	reconnectTimer *time.Timer
	backoff        *backoff.ExponentialBackOff
}

// New creates a push channel manager with the given options.
func New(opts *Options) (*Manager, error) {
	if opts == nil {
		return nil, ErrNilOptions
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = wsDialer{handshakeTimeout: opts.HandshakeTimeout}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.ReconnectInitial
	bo.MaxInterval = opts.ReconnectMax
	bo.MaxElapsedTime = 0 // retry forever; Disconnect is the only stop

	return &Manager{
		opts:    opts,
		state:   newStateManager(),
		dialer:  dialer,
		logger:  logger,
		backoff: bo,
	}, nil
}

// Connect establishes the push channel if it is not already open or
// connecting. It is idempotent: calling it while a connection attempt
// is in flight, or while the channel is open, is a no-op. Dial failures
// are not returned; they move the manager to Failed and schedule a
// reconnect.
func (m *Manager) Connect() {
	if !m.state.transitionFrom(StateConnecting, StateIdle, StateFailed, StateReconnecting) {
		return
	}
	m.notifyState()
	go m.dial()
}

func (m *Manager) dial() {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout)
	defer cancel()

	conn, err := m.dialer.Dial(ctx, m.opts.URL, m.opts.Header)
	if err != nil {
		m.logger.Warn("push_channel_connect_failed",
			slog.String("url", m.opts.URL),
			slog.String("error", err.Error()))

		// Disconnect may have raced the dial; only a live attempt fails.
		if !m.state.transition(StateConnecting, StateFailed) {
			return
		}
		m.notifyState()
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if !m.state.transition(StateConnecting, StateOpen) {
		// Disconnected while the handshake was in flight.
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.cancelTimerLocked()
	m.backoff.Reset()
	m.mu.Unlock()

	m.notifyState()
	m.logger.Info("push_channel_open", slog.String("url", m.opts.URL))

	go m.readLoop(conn)
}

// readLoop delivers frames in arrival order. Decoding and dispatch run
// synchronously on this goroutine, which is what preserves cross-topic
// ordering.
func (m *Manager) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleChannelLost(err)
			return
		}
		m.opts.OnFrame(data)
	}
}

func (m *Manager) handleChannelLost(err error) {
	if !m.state.transition(StateOpen, StateFailed) {
		// Explicit disconnect already ran; do not reconnect.
		return
	}
	m.notifyState()
	m.logger.Warn("push_channel_lost", slog.String("error", err.Error()))

	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()

	m.scheduleReconnect()
}

// scheduleReconnect arms the reconnect timer unless one is already
// pending. The single owned timer handle is what makes "at most one
// pending reconnect" structural: re-entrant failures cannot stack.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reconnectTimer != nil {
		return
	}

	delay := m.backoff.NextBackOff()
	m.logger.Info("push_channel_reconnect_scheduled", slog.Duration("delay", delay))
	m.reconnectTimer = time.AfterFunc(delay, m.retry)
}

func (m *Manager) retry() {
	m.mu.Lock()
	m.reconnectTimer = nil

	// Both transitions happen under the lock: Disconnect also takes it,
	// so an explicit disconnect cannot land between Reconnecting and the
	// dial and be overridden.
	if !m.state.transition(StateFailed, StateReconnecting) {
		m.mu.Unlock()
		return
	}
	m.state.set(StateConnecting)
	m.mu.Unlock()

	m.notify(StateReconnecting)
	m.notify(StateConnecting)
	go m.dial()
}

// Disconnect closes the channel, cancels any pending reconnect timer,
// and returns the manager to Idle. It is the only path that permanently
// stops reconnection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.cancelTimerLocked()
	conn := m.conn
	m.conn = nil
	m.state.set(StateIdle)
	m.mu.Unlock()

	m.notifyState()

	if conn != nil {
		conn.Close()
	}
}

func (m *Manager) cancelTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// IsConnected returns true if the push channel is open. This derived
// boolean is the only connection information exposed to subscribers.
func (m *Manager) IsConnected() bool {
	return m.state.isOpen()
}

// State returns the current channel state.
func (m *Manager) State() State {
	return m.state.get()
}

func (m *Manager) notifyState() {
	m.notify(m.state.get())
}

func (m *Manager) notify(s State) {
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
}
