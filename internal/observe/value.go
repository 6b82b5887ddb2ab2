// Package observe holds owned state that many readers can watch.
package observe

import "sync"

// Value stores the latest T and broadcasts every change to subscribers.
// Subscribers always see the most recent value; intermediate values may be
// skipped when a subscriber falls behind.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	subs    map[int]chan T
	nextID  int
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[int]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set replaces the current value and notifies subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = val
	for _, ch := range v.subs {
		// drop the stale value, if any, so the send never blocks
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- val:
		default:
		}
	}
}

// Subscribe returns a channel primed with the current value. The returned
// func unsubscribes and closes the channel; it is safe to call twice.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	ch := make(chan T, 1)
	ch <- v.current
	v.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs, id)
			close(ch)
		})
	}
}
