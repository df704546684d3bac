package client

import (
	"pairlink/internal/core/domain"

	"go.uber.org/zap"
)

// Router demultiplexes inbound signaling events to handlers by event
// type. Events with no registered handler are dropped with a
// diagnostic; a handler error is logged and never tears down the
// event loop.
type Router struct {
	handlers map[domain.EventType]func(domain.Event) error
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[domain.EventType]func(domain.Event) error),
		logger:   logger,
	}
}

// Handle registers the handler for an event type, replacing any
// previous registration.
func (r *Router) Handle(eventType domain.EventType, handler func(domain.Event) error) {
	r.handlers[eventType] = handler
}

// Route dispatches one event. Returns whether a handler was found.
func (r *Router) Route(event domain.Event) bool {
	handler, ok := r.handlers[event.Type]
	if !ok {
		r.logger.Debug("dropping event with no handler",
			zap.String("event_type", string(event.Type)))
		return false
	}
	if err := handler(event); err != nil {
		r.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return true
}
