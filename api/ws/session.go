// Package ws is the dashboard push channel: every connected browser
// gets a session and receives loot, stats and status events as they
// happen.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 120 * time.Second
	pingInterval  = 30 * time.Second
)

// Message is the unified WS envelope, the same framing the upstream
// feed uses.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// inbound is the decoded browser-to-server frame.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is one connected dashboard browser.
type Session struct {
	ID   string
	Conn *websocket.Conn

	sendChan chan []byte
	done     chan struct{}
	closed   bool

	mu     sync.Mutex
	logger *zap.Logger
}

// NewSession wraps an upgraded connection and starts its write pump.
func NewSession(conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Conn:     conn,
		sendChan: make(chan []byte, sendChanBuf),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go s.writePump()
	return s
}

// writePump drains sendChan and writes to the connection, with
// periodic pings to detect dead browsers.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data, ok := <-s.sendChan:
			if !ok {
				return
			}
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error",
					zap.String("session_id", s.ID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes an event and queues it non-blocking.
func (s *Session) Send(event string, payload any) {
	data, err := json.Marshal(Message{Type: event, Payload: payload})
	if err != nil {
		s.logger.Error("ws encode error",
			zap.String("type", event),
			zap.Error(err))
		return
	}
	s.SendRaw(data)
}

// SendRaw queues pre-encoded bytes. Drops if the session's queue is
// full or the session is closed; a slow browser never blocks the hub.
func (s *Session) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	select {
	case s.sendChan <- data:
	default:
		s.logger.Warn("ws send queue full, dropping",
			zap.String("session_id", s.ID))
	}
}

// Close signals the write pump to shut the connection down.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SetReadDeadline refreshes the read deadline after any inbound frame.
func (s *Session) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
}
