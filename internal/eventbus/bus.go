package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type Handler[E any] func(ctx context.Context, event E) error

// Bus 同步事件总线，Publish 在调用方协程中依次执行订阅者
type Bus[T comparable, E any] struct {
	mutex       sync.RWMutex
	subscribers map[T]map[uint64]Handler[E]
	counter     uint64
	typeOf      func(E) T
}

func NewBus[T comparable, E any](typeOf func(E) T) *Bus[T, E] {
	return &Bus[T, E]{
		subscribers: make(map[T]map[uint64]Handler[E]),
		typeOf:      typeOf,
	}
}

func (b *Bus[T, E]) Subscribe(eventType T, handler Handler[E]) func() {
	if handler == nil {
		return func() {}
	}
	id := atomic.AddUint64(&b.counter, 1)
	b.mutex.Lock()
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[uint64]Handler[E])
	}
	b.subscribers[eventType][id] = handler
	b.mutex.Unlock()
	return func() {
		b.mutex.Lock()
		handlers, ok := b.subscribers[eventType]
		if ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.subscribers, eventType)
			}
		}
		b.mutex.Unlock()
	}
}

func (b *Bus[T, E]) Publish(ctx context.Context, event E) error {
	if b == nil {
		return nil
	}
	b.mutex.RLock()
	handlersMap := b.subscribers[b.typeOf(event)]
	handlers := make([]Handler[E], 0, len(handlersMap))
	for _, handler := range handlersMap {
		handlers = append(handlers, handler)
	}
	b.mutex.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
