package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"registrar/internal/session"
	"registrar/pkg/interfaces"
	"registrar/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Clients are desktop apps, not browsers; origin checks do not
		// apply.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler accepts incoming connections and runs one session per
// connection. A session's failure is contained to its own goroutine;
// other connections are unaffected.
type Handler struct {
	registry     *Registry
	store        interfaces.EnrollmentStore
	limiter      *RateLimiter
	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewHandler creates a connection handler.
func NewHandler(registry *Registry, enrollments interfaces.EnrollmentStore, limiter *RateLimiter) *Handler {
	return &Handler{
		registry:     registry,
		store:        enrollments,
		limiter:      limiter,
		pingInterval: 30 * time.Second,
		readTimeout:  60 * time.Second,
	}
}

// SetTimeouts overrides the heartbeat interval and read deadline. Must
// be called before the handler starts serving connections.
func (h *Handler) SetTimeouts(pingInterval, readTimeout time.Duration) {
	if pingInterval > 0 {
		h.pingInterval = pingInterval
	}
	if readTimeout > 0 {
		h.readTimeout = readTimeout
	}
}

// HandleWebSocket upgrades an HTTP request and spawns the connection's
// session goroutine.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	wsConn := NewConnection(conn)
	if err := h.registry.Register(wsConn); err != nil {
		log.Error().Err(err).Msg("failed to register connection")
		_ = wsConn.Close()
		return
	}

	go h.serveConnection(wsConn)
}

// serveConnection owns one connection's lifecycle: heartbeat, read
// loop, session dispatch, and cleanup. A panic in command handling is
// recovered here so it takes down only this session.
func (h *Handler) serveConnection(c *Connection) {
	logger := log.With().Str("conn_id", c.ID()).Str("remote", c.RemoteAddr()).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("session panicked")
		}
		h.registry.Unregister(c)
		h.limiter.Forget(c.ID())
		_ = c.Close()
		logger.Info().Msg("connection closed")
	}()

	logger.Info().Msg("connection established")

	if err := c.conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(10 * time.Second)
				if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-c.ctx.Done():
				return
			}
		}
	}()

	sess := session.New(h.store, logger)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read failed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if !h.limiter.Allow(c.ID()) {
			if err := c.WriteJSON(types.Error("Too many requests, slow down")); err != nil {
				return
			}
			continue
		}

		var req types.Request
		if err := json.Unmarshal(data, &req); err != nil {
			if err := c.WriteJSON(types.Error("Invalid JSON format")); err != nil {
				return
			}
			continue
		}

		resp, done := sess.Handle(c.Context(), req)
		if err := c.WriteJSON(resp); err != nil {
			return
		}
		if done {
			// Give the writer a moment to flush the final frame before
			// the deferred close tears the socket down.
			time.Sleep(50 * time.Millisecond)
			return
		}
	}
}
