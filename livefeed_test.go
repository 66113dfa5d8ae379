// Copyright (c) Pulsedash
// SPDX-License-Identifier: Apache-2.0

package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedash/livefeed/config"
	"github.com/pulsedash/livefeed/registry"
	"github.com/pulsedash/livefeed/stream"
	"github.com/pulsedash/livefeed/wire"
)

type scriptedConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *scriptedConn) ReadMessage() ([]byte, error) {
	// done wins over buffered frames so nothing is delivered after Close.
	select {
	case <-c.done:
		return nil, errors.New("connection closed")
	default:
	}
	select {
	case data, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type scriptedDialer struct {
	conns chan *scriptedConn
}

func newScriptedDialer() *scriptedDialer {
	return &scriptedDialer{conns: make(chan *scriptedConn, 4)}
}

func (d *scriptedDialer) Dial(context.Context, string, http.Header) (stream.Conn, error) {
	c := &scriptedConn{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	d.conns <- c
	return c, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Stream.URL = "wss://dash.test/live"
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	cfg := config.Default() // no stream URL
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestFrameFansOutToSubscribers(t *testing.T) {
	dialer := newScriptedDialer()
	h, err := New(testConfig(), WithDialer(dialer))
	require.NoError(t, err)
	defer h.Close()

	var mu sync.Mutex
	var got []wire.Envelope
	h.Subscribe(wire.TopicBuildUpdated, func(env wire.Envelope) {
		mu.Lock()
		got = append(got, env)
		mu.Unlock()
	})

	h.Connect()
	conn := <-dialer.conns
	waitFor(t, h.IsConnected)

	conn.frames <- []byte(`{"topic":"build.updated","payload":{"id":"b-1"}}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, wire.TopicBuildUpdated, got[0].Topic)
	assert.JSONEq(t, `{"id":"b-1"}`, string(got[0].Payload))
}

func TestHeartbeatsNeverReachSubscribers(t *testing.T) {
	dialer := newScriptedDialer()
	h, err := New(testConfig(), WithDialer(dialer))
	require.NoError(t, err)
	defer h.Close()

	var mu sync.Mutex
	var topics []string
	for _, topic := range []string{wire.TopicHeartbeat, wire.TopicStepUpdated} {
		topic := topic
		h.Subscribe(topic, func(wire.Envelope) {
			mu.Lock()
			topics = append(topics, topic)
			mu.Unlock()
		})
	}

	h.Connect()
	conn := <-dialer.conns
	waitFor(t, h.IsConnected)

	conn.frames <- []byte(`{"topic":"heartbeat"}`)
	conn.frames <- []byte(`{"topic":"step.updated","payload":{}}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(topics) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{wire.TopicStepUpdated}, topics)
}

func TestMalformedFrameDoesNotStall(t *testing.T) {
	dialer := newScriptedDialer()
	h, err := New(testConfig(), WithDialer(dialer))
	require.NoError(t, err)
	defer h.Close()

	var mu sync.Mutex
	var got int
	h.Subscribe(wire.TopicBuildUpdated, func(wire.Envelope) {
		mu.Lock()
		got++
		mu.Unlock()
	})

	h.Connect()
	conn := <-dialer.conns
	waitFor(t, h.IsConnected)

	conn.frames <- []byte(`not json at all`)
	conn.frames <- []byte(`{"topic":"build.updated","payload":{}}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got == 1
	})
	assert.True(t, h.IsConnected())
}

func TestBroadcastEventsFlow(t *testing.T) {
	dialer := newScriptedDialer()
	h, err := New(testConfig(), WithDialer(dialer))
	require.NoError(t, err)
	defer h.Close()

	h.Connect()
	conn := <-dialer.conns
	waitFor(t, h.IsConnected)

	conn.frames <- []byte(`{"topic":"agent.status","payload":{"agent":"w-1"}}`)

	select {
	case b := <-h.Events():
		assert.Equal(t, wire.TopicAgentStatus, b.Topic)
		assert.JSONEq(t, `{"agent":"w-1"}`, string(b.Payload))
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast event")
	}
}

type hubToaster struct {
	mu     sync.Mutex
	toasts []registry.Toast
}

func (h *hubToaster) Show(t registry.Toast) {
	h.mu.Lock()
	h.toasts = append(h.toasts, t)
	h.mu.Unlock()
}

func TestUserNotificationShowsToast(t *testing.T) {
	dialer := newScriptedDialer()
	h, err := New(testConfig(), WithDialer(dialer))
	require.NoError(t, err)
	defer h.Close()

	toaster := &hubToaster{}
	h.SetToaster(toaster)

	h.Connect()
	conn := <-dialer.conns
	waitFor(t, h.IsConnected)

	conn.frames <- []byte(`{"topic":"user-notification","payload":{"title":"Deploy done","severity":"success"}}`)

	waitFor(t, func() bool {
		toaster.mu.Lock()
		defer toaster.mu.Unlock()
		return len(toaster.toasts) == 1
	})

	toaster.mu.Lock()
	defer toaster.mu.Unlock()
	assert.Equal(t, "Deploy done", toaster.toasts[0].Title)
	assert.Equal(t, "success", toaster.toasts[0].Severity)
}

func TestCloseStopsDelivery(t *testing.T) {
	dialer := newScriptedDialer()
	h, err := New(testConfig(), WithDialer(dialer))
	require.NoError(t, err)

	var mu sync.Mutex
	var got int
	h.Subscribe(wire.TopicBuildUpdated, func(wire.Envelope) {
		mu.Lock()
		got++
		mu.Unlock()
	})

	h.Connect()
	conn := <-dialer.conns
	waitFor(t, h.IsConnected)

	h.Close()
	assert.False(t, h.IsConnected())

	select {
	case conn.frames <- []byte(`{"topic":"build.updated","payload":{}}`):
	default:
	}
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, got)
}

func TestNewFeedRequiresAPI(t *testing.T) {
	dialer := newScriptedDialer()
	h, err := New(testConfig(), WithDialer(dialer))
	require.NoError(t, err)
	defer h.Close()

	type build struct {
		ID string `json:"id"`
	}
	_, _, err = NewFeed[build](h, "builds")
	assert.ErrorIs(t, err, ErrNoAPI)
}

func TestStopReleasesQueuedResync(t *testing.T) {
	var mu sync.Mutex
	var fetches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetches++
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items":    []map[string]string{{"id": "b-1"}},
			"has_more": false,
		})
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.API.BaseURL = srv.URL
	cfg.Feeds.ResyncMinInterval = time.Hour

	dialer := newScriptedDialer()
	h, err := New(cfg, WithDialer(dialer))
	require.NoError(t, err)
	defer h.Close()

	type build struct {
		ID string `json:"id"`
	}
	_, stop, err := NewFeed[build](h, "builds", wire.TopicBuildCompleted)
	require.NoError(t, err)

	h.Connect()
	conn := <-dialer.conns
	waitFor(t, h.IsConnected)

	// The first invalidation resyncs on the limiter's initial token; the
	// second parks behind the hour interval.
	conn.frames <- []byte(`{"topic":"build.completed","payload":{"id":"b-1"}}`)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fetches == 1
	})
	conn.frames <- []byte(`{"topic":"build.completed","payload":{"id":"b-2"}}`)

	// Tearing the view down must release the parked resync; it never
	// fetches against the dead feed.
	stop()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fetches)
}

func TestFeedResyncsOnInvalidationTopic(t *testing.T) {
	var mu sync.Mutex
	var fetches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetches++
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items":    []map[string]string{{"id": "b-1"}},
			"has_more": false,
		})
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.API.BaseURL = srv.URL
	cfg.Feeds.ResyncMinInterval = 0 // uncoalesced for the test

	dialer := newScriptedDialer()
	h, err := New(cfg, WithDialer(dialer))
	require.NoError(t, err)
	defer h.Close()

	type build struct {
		ID string `json:"id"`
	}
	ctrl, stop, err := NewFeed[build](h, "builds", wire.TopicBuildCompleted)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, ctrl.LoadInitial(context.Background()))
	require.Len(t, ctrl.Items(), 1)

	h.Connect()
	conn := <-dialer.conns
	waitFor(t, h.IsConnected)

	conn.frames <- []byte(`{"topic":"build.completed","payload":{"id":"b-1"}}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fetches >= 2
	})

	// After stop the invalidation topic no longer drives resyncs.
	stop()
	mu.Lock()
	before := fetches
	mu.Unlock()

	conn.frames <- []byte(`{"topic":"build.completed","payload":{"id":"b-2"}}`)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, before, fetches)
}
