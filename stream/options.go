// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"log/slog"
	"net/http"
	"time"
)

// Default values.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReconnectInitial = 1 * time.Second
	DefaultReconnectMax     = 30 * time.Second
)

// Options configures the push channel manager.
type Options struct {
	// Connection
	URL              string        // Push channel endpoint (ws:// or wss://)
	Header           http.Header   // Credential headers sent with the handshake
	HandshakeTimeout time.Duration // Timeout for the opening handshake

	// Reconnection. The delay grows exponentially with jitter between
	// Initial and Max; it resets after each successful open.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// Callbacks
	OnFrame       func(raw []byte) // Called for every inbound text frame, in arrival order
	OnStateChange func(State)      // Called on every state transition

	// Advanced
	Dialer Dialer       // Transport dialer (nil = WebSocket)
	Logger *slog.Logger // Logger (nil = slog.Default())
}

// NewOptions creates Options with sensible defaults.
func NewOptions() *Options {
	return &Options{
		HandshakeTimeout: DefaultHandshakeTimeout,
		ReconnectInitial: DefaultReconnectInitial,
		ReconnectMax:     DefaultReconnectMax,
	}
}

// SetURL sets the push channel endpoint.
func (o *Options) SetURL(url string) *Options {
	o.URL = url
	return o
}

// SetHeader sets the credential headers sent with the handshake.
func (o *Options) SetHeader(h http.Header) *Options {
	o.Header = h
	return o
}

// SetHandshakeTimeout sets the opening handshake timeout.
func (o *Options) SetHandshakeTimeout(d time.Duration) *Options {
	o.HandshakeTimeout = d
	return o
}

// SetReconnect sets the reconnect delay bounds.
func (o *Options) SetReconnect(initial, max time.Duration) *Options {
	o.ReconnectInitial = initial
	o.ReconnectMax = max
	return o
}

// SetOnFrame sets the inbound frame handler.
func (o *Options) SetOnFrame(fn func(raw []byte)) *Options {
	o.OnFrame = fn
	return o
}

// SetOnStateChange sets the state transition callback.
func (o *Options) SetOnStateChange(fn func(State)) *Options {
	o.OnStateChange = fn
	return o
}

// SetDialer sets a custom transport dialer.
func (o *Options) SetDialer(d Dialer) *Options {
	o.Dialer = d
	return o
}

// SetLogger sets the logger.
func (o *Options) SetLogger(l *slog.Logger) *Options {
	o.Logger = l
	return o
}

// Validate checks the options for errors and fills in defaults.
func (o *Options) Validate() error {
	if o.URL == "" {
		return ErrNoURL
	}
	if o.OnFrame == nil {
		return ErrNilFrameHandler
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.ReconnectInitial <= 0 {
		o.ReconnectInitial = DefaultReconnectInitial
	}
	if o.ReconnectMax < o.ReconnectInitial {
		o.ReconnectMax = DefaultReconnectMax
	}
	return nil
}
