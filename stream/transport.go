// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one established push channel. The channel is server-to-client
// only: there is no write side.
type Conn interface {
	// ReadMessage blocks until the next text frame arrives.
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer establishes push channels. The Manager owns exactly one Conn
// at a time; a custom Dialer is how tests inject a fake transport.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// wsDialer dials WebSocket push channels.
type wsDialer struct {
	handshakeTimeout time.Duration
}

func (d wsDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

// wsConn adapts a gorilla websocket connection to Conn.
type wsConn struct {
	ws *websocket.Conn
}

// ReadMessage returns the next text frame. Non-text frames are control
// noise on this channel and are skipped.
func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
