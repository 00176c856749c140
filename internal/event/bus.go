package event

import (
	"log/slog"
	"sync"
)

type HandlerFunc func(raw any)

// Bus dispatches named events to subscribers. Handlers run synchronously, in
// subscription order, on the publishing goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	logger   *slog.Logger
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]HandlerFunc),
		logger:   slog.Default(),
	}
}

func (b *Bus) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

func (b *Bus) Subscribe(eventName string, handler HandlerFunc) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// SubscribeAll registers the same handler for several event names.
func (b *Bus) SubscribeAll(handler HandlerFunc, eventNames ...string) {
	for _, name := range eventNames {
		b.Subscribe(name, handler)
	}
}

func (b *Bus) Publish(eventName string, evt any) {
	b.mu.RLock()
	handlers := make([]HandlerFunc, len(b.handlers[eventName]))
	copy(handlers, b.handlers[eventName])
	logger := b.logger
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(logger, eventName, handler, evt)
	}
}

func (b *Bus) dispatch(logger *slog.Logger, eventName string, h HandlerFunc, evt any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event handler panicked", "event", eventName, "panic", r)
		}
	}()
	h(evt)
}
