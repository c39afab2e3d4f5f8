package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Sources supplies the snapshots pushed to a freshly connected browser
// and served on request_history.
type Sources struct {
	Stats   func() model.SessionStats
	History func() []model.LootEvent
}

// Hub tracks connected dashboard sessions and fans events out to all
// of them.
type Hub struct {
	sec      config.SecurityConfig
	sources  Sources
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHub creates the dashboard hub. sec.AllowedOrigins controls which
// browser origins may connect; an empty slice permits all (local use).
func NewHub(sec config.SecurityConfig, sources Sources, logger *zap.Logger) *Hub {
	h := &Hub{
		sec:      sec,
		sources:  sources,
		router:   NewRouter(logger),
		logger:   logger,
		sessions: make(map[string]*Session),
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}

	h.router.On("request_history", func(ctx context.Context, s *Session, _ json.RawMessage) error {
		h.logger.Debug("history requested",
			zap.String("session_id", s.ID),
			zap.String("trace_id", TraceIDFromCtx(ctx)))
		s.Send("history", h.sources.History())
		return nil
	})
	h.router.On("request_stats", func(ctx context.Context, s *Session, _ json.RawMessage) error {
		s.Send("stats", h.sources.Stats())
		return nil
	})

	return h
}

// ServeWS handles GET /ws.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := NewSession(conn, h.logger)
	h.register(sess)
	h.logger.Info("dashboard connected",
		zap.String("session_id", sess.ID),
		zap.Int("sessions", h.Count()))

	// New browsers get the current state immediately.
	sess.Send("stats", h.sources.Stats())
	sess.Send("history", h.sources.History())

	h.readPump(sess)
}

// Broadcast encodes the event once and queues it to every session.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := json.Marshal(Message{Type: event, Payload: payload})
	if err != nil {
		h.logger.Error("broadcast encode error",
			zap.String("type", event),
			zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		s.SendRaw(data)
	}
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID)
	h.mu.Unlock()
}

// readPump reads inbound frames until the connection closes.
func (h *Hub) readPump(s *Session) {
	defer func() {
		s.Close()
		h.unregister(s)
		h.logger.Info("dashboard disconnected",
			zap.String("session_id", s.ID),
			zap.Int("sessions", h.Count()))
	}()

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.String("session_id", s.ID),
					zap.Error(err))
			}
			return
		}
		s.SetReadDeadline()
		h.router.Dispatch(s, raw)
	}
}
