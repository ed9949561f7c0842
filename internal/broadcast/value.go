// Package broadcast keeps the event settings and details singletons cached
// and pushes every change to subscribers.
package broadcast

import (
	"context"
	"sync"
)

// Loader fetches the current value from the store.
type Loader[T any] func(ctx context.Context) (T, error)

// Value is an owned, injectable cache of one document. The zero state holds
// nothing; Refresh populates it and notifies subscribers.
type Value[T any] struct {
	load Loader[T]

	mu   sync.RWMutex
	cur  T
	ok   bool
	subs map[int]chan T
	next int
}

func NewValue[T any](load Loader[T]) *Value[T] {
	return &Value[T]{load: load, subs: make(map[int]chan T)}
}

// Current returns the cached value and whether one has been loaded.
func (v *Value[T]) Current() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur, v.ok
}

// Refresh reloads from the store. A failed load keeps the previous value.
func (v *Value[T]) Refresh(ctx context.Context) (T, error) {
	val, err := v.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v.Set(val)
	return val, nil
}

// Set stores val and pushes it to every subscriber. A subscriber that has
// not drained its previous value gets only the newest one.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = val
	v.ok = true
	for _, ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		ch <- val
	}
}

// Subscribe returns a channel receiving each new value and a function that
// ends the subscription and closes the channel.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)
	v.mu.Lock()
	id := v.next
	v.next++
	v.subs[id] = ch
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			close(ch)
			v.mu.Unlock()
		})
	}
}

func (v *Value[T]) subscribers() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subs)
}
