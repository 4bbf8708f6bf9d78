package event

import (
	"slices"
	"sync"

	"github.com/erp/salesdocs/internal/domain/shared"
)

// subscription is one handler and the event types it was registered for.
// all is set once the handler has been registered without types.
type subscription struct {
	handler shared.EventHandler
	all     bool
	types   map[string]struct{}
}

func (s *subscription) matches(eventType string) bool {
	if s.all {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// HandlerRegistry keeps subscriptions in the order handlers were first registered.
// Registering a handler again widens its subscription instead of adding a second one,
// so an event never reaches the same handler twice.
type HandlerRegistry struct {
	mu   sync.RWMutex
	subs []*subscription
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// Register subscribes handler to eventTypes, or to every event when none are given
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.subs, func(s *subscription) bool { return s.handler == handler })
	var sub *subscription
	if i >= 0 {
		sub = r.subs[i]
	} else {
		sub = &subscription{handler: handler, types: make(map[string]struct{})}
		r.subs = append(r.subs, sub)
	}

	if len(eventTypes) == 0 {
		sub.all = true
		return
	}
	for _, t := range eventTypes {
		sub.types[t] = struct{}{}
	}
}

// Unregister drops every subscription of handler
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs = slices.DeleteFunc(r.subs, func(s *subscription) bool { return s.handler == handler })
}

// HandlersFor returns the handlers an event of eventType is delivered to, in registration order
func (r *HandlerRegistry) HandlersFor(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []shared.EventHandler
	for _, s := range r.subs {
		if s.matches(eventType) {
			out = append(out, s.handler)
		}
	}
	return out
}

// All returns every registered handler once
func (r *HandlerRegistry) All() []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]shared.EventHandler, len(r.subs))
	for i, s := range r.subs {
		out[i] = s.handler
	}
	return out
}
