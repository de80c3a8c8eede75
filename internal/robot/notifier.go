package robot

import (
	"sort"
	"sync"
)

// Notifier fans events out to registered handlers. The zero value is ready
// to use.
type Notifier[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]func(T)
}

// Subscribe registers handler. The returned func removes it and may be
// called more than once.
func (n *Notifier[T]) Subscribe(handler func(T)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.handlers == nil {
		n.handlers = make(map[uint64]func(T))
	}
	n.nextID++
	id := n.nextID
	n.handlers[id] = handler

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.handlers, id)
	}
}

// Broadcast calls every handler in subscription order. Handlers run without
// the notifier lock held so they may unsubscribe.
func (n *Notifier[T]) Broadcast(event T) {
	n.mu.RLock()
	ids := make([]uint64, 0, len(n.handlers))
	for id := range n.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, n.handlers[id])
	}
	n.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Len returns the number of registered handlers.
func (n *Notifier[T]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.handlers)
}
