package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somnus/somnus/pkg/events"
	"github.com/somnus/somnus/pkg/logger"
)

func newEventsServer(t *testing.T, bus *events.Bus, cfg EventsConfig) *httptest.Server {
	t.Helper()

	h := NewEventsHandler(bus, logger.Global(), cfg)
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	if query != "" {
		u += "?" + query
	}
	return u
}

func TestEventsStream(t *testing.T) {
	bus := events.NewBus(8)
	srv := newEventsServer(t, bus, EventsConfig{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler time to subscribe before publishing.
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish(events.Event{TaskID: "t1", UserID: "alice", Stage: "validate", Status: events.StatusStarted})

	var evt events.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "t1", evt.TaskID)
	assert.Equal(t, "validate", evt.Stage)
}

func TestEventsStreamUserFilter(t *testing.T) {
	bus := events.NewBus(8)
	srv := newEventsServer(t, bus, EventsConfig{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "user_id=bob"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish(events.Event{TaskID: "t1", UserID: "alice", Stage: "validate", Status: events.StatusStarted})
	bus.Publish(events.Event{TaskID: "t2", UserID: "bob", Stage: "analyze", Status: events.StatusCompleted})

	var evt events.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "bob", evt.UserID)
	assert.Equal(t, "analyze", evt.Stage)
}

func TestEventsConnectionLimit(t *testing.T) {
	bus := events.NewBus(8)
	srv := newEventsServer(t, bus, EventsConfig{MaxConnections: 1})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
