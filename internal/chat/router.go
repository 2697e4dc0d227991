package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"chatrelay/internal/store"
)

var validate = validator.New()

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, sc *SessionContext, body json.RawMessage) (any, error)

// SessionContext carries the registered session through a dispatch.
type SessionContext struct {
	Session *Session
}

// Router keeps a map[event]handler, à-la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[string]rawHandler)} }

// Register binds an event to a strongly-typed handler. The payload is
// decoded and validated before the handler runs.
func Register[Req any, Res any](
	r *Router,
	event string,
	h func(ctx context.Context, sc *SessionContext, req Req) (Res, error),
) {
	if event == "" {
		panic("chat router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = func(ctx context.Context, sc *SessionContext, body json.RawMessage) (any, error) {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, fmt.Errorf("%w: %s", store.ErrValidation, err)
			}
		}
		if err := validate.Struct(&req); err != nil {
			return nil, fmt.Errorf("%w: %s", store.ErrValidation, err)
		}
		return h(ctx, sc, req)
	}
}

// dispatch is called by the server's reader loop.
func (r *Router) dispatch(ctx context.Context, sc *SessionContext, env Envelope) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownEvent
	}
	return h(ctx, sc, env.Body)
}
