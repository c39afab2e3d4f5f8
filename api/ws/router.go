package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HandlerFunc processes a decoded browser message payload.
type HandlerFunc func(ctx context.Context, session *Session, payload json.RawMessage) error

// Router dispatches inbound dashboard messages to registered handlers.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

// NewRouter creates a new Router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers a HandlerFunc for the given message type.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Dispatch decodes raw bytes and invokes the matching handler.
func (r *Router) Dispatch(s *Session, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.logger.Warn("malformed ws message",
			zap.String("session_id", s.ID),
			zap.Error(err))
		return
	}

	traceID := uuid.NewString()
	ctx := context.WithValue(context.Background(), ctxKeyTraceID{}, traceID)

	fn, ok := r.handlers[msg.Type]
	if !ok {
		r.logger.Debug("unhandled ws message type",
			zap.String("type", msg.Type),
			zap.String("session_id", s.ID))
		return
	}

	if err := fn(ctx, s, msg.Payload); err != nil {
		r.logger.Error("ws handler error",
			zap.String("type", msg.Type),
			zap.String("session_id", s.ID),
			zap.String("trace_id", traceID),
			zap.Error(err))
	}
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx extracts the trace ID from a handler context.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}
