package event

import (
	"testing"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newRecordingHandler()

	registry.Register(handler, document.EventTypeDocumentFinalized, document.EventTypeDocumentVersioned)

	assert.Len(t, registry.HandlersFor(document.EventTypeDocumentFinalized), 1)
	assert.Len(t, registry.HandlersFor(document.EventTypeDocumentVersioned), 1)
	assert.Empty(t, registry.HandlersFor("ProjectArchived"))
	assert.Len(t, registry.All(), 1)
}

func TestHandlerRegistry_Wildcard(t *testing.T) {
	registry := NewHandlerRegistry()
	specific := newRecordingHandler()
	wildcard := newRecordingHandler()

	registry.Register(specific, document.EventTypeDocumentFinalized)
	registry.Register(wildcard)
	registry.Register(wildcard)

	handlers := registry.HandlersFor(document.EventTypeDocumentFinalized)
	assert.Len(t, handlers, 2)
	assert.Len(t, registry.HandlersFor("Anything"), 1)
	assert.Len(t, registry.All(), 2)
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	a := newRecordingHandler()
	b := newRecordingHandler()

	registry.Register(a, document.EventTypeDocumentFinalized)
	registry.Register(b, document.EventTypeDocumentFinalized)
	registry.Register(a)

	registry.Unregister(a)

	handlers := registry.HandlersFor(document.EventTypeDocumentFinalized)
	assert.Len(t, handlers, 1)
	assert.Same(t, b, handlers[0])

	registry.Unregister(b)
	assert.Empty(t, registry.HandlersFor(document.EventTypeDocumentFinalized))
	assert.Empty(t, registry.All())
}

func TestHandlerRegistry_RegistrationOrder(t *testing.T) {
	registry := NewHandlerRegistry()
	first := newRecordingHandler()
	second := newRecordingHandler()

	registry.Register(first)
	registry.Register(second, document.EventTypeDocumentVersioned)
	registry.Register(first, document.EventTypeDocumentVersioned)

	handlers := registry.HandlersFor(document.EventTypeDocumentVersioned)
	assert.Len(t, handlers, 2)
	assert.Same(t, first, handlers[0])
	assert.Same(t, second, handlers[1])
}
