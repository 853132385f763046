package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/somnus/somnus/pkg/events"
)

const (
	defaultWSMaxConnections = 100
	wsWriteTimeout          = 10 * time.Second
	wsPingInterval          = 30 * time.Second
	wsPongTimeout           = 10 * time.Second
)

// EventsConfig configures the websocket event stream.
type EventsConfig struct {
	AllowedOrigins []string
	MaxConnections int
}

// EventsHandler streams pipeline stage events over websocket.
type EventsHandler struct {
	bus      *events.Bus
	logger   handlerLogger
	upgrader websocket.Upgrader
	sem      chan struct{}
}

// NewEventsHandler creates a websocket handler over the given bus.
func NewEventsHandler(bus *events.Bus, log handlerLogger, cfg EventsConfig) *EventsHandler {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = defaultWSMaxConnections
	}

	h := &EventsHandler{
		bus:    bus,
		logger: log,
		sem:    make(chan struct{}, maxConns),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, cfg.AllowedOrigins)
		},
	}
	return h
}

// Stream handles GET /api/v1/tasks/events. Events may be filtered by the user_id
// and task_id query parameters.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "websocket connection limit reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	userFilter := r.URL.Query().Get("user_id")
	taskFilter := r.URL.Query().Get("task_id")

	ch, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	// Reader goroutine drains control frames and detects close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pinger := time.NewTicker(wsPingInterval)
	defer pinger.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-pinger.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if userFilter != "" && evt.UserID != userFilter {
				continue
			}
			if taskFilter != "" && evt.TaskID != taskFilter {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}

func originAllowed(r *http.Request, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, parsed.Host) {
			return true
		}
	}
	return false
}
