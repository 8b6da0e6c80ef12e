package viewmodel

import "sync"

// Observable holds the current state of a view-model and publishes every
// change to its subscribers. A slow subscriber only ever sees the latest value.
type Observable[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]chan T
	next  int
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{
		value: initial,
		subs:  make(map[int]chan T),
	}
}

// Get returns the current value
func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set replaces the value and notifies subscribers
func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = v
	for _, ch := range o.subs {
		offer(ch, v)
	}
}

// Update applies fn to the current value under the lock and publishes the result
func (o *Observable[T]) Update(fn func(T) T) T {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = fn(o.value)
	for _, ch := range o.subs {
		offer(ch, o.value)
	}
	return o.value
}

// Subscribe returns a channel that receives the current value immediately and
// every later change. The cancel func closes the channel.
func (o *Observable[T]) Subscribe() (<-chan T, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.next
	o.next++
	ch := make(chan T, 1)
	ch <- o.value
	o.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			close(ch)
			o.mu.Unlock()
		})
	}
	return ch, cancel
}

// offer replaces a pending value so the send never blocks. Only the
// publisher sends, and it holds the lock.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
