// This file is part of tsw-controller-bridge.
//
// tsw-controller-bridge is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// tsw-controller-bridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with tsw-controller-bridge.  If not, see <https://www.gnu.org/licenses/>.

// Package broadcast implements the multi-producer, independent-consumer-lag
// fan-out the bridge's in-process event bus and WebSocket servers all need:
// messages enqueued before a subscriber connects are never delivered to it,
// and a slow subscriber whose buffer is full misses the values published
// meanwhile rather than being allowed to block every other consumer. It
// stays subscribed.
package broadcast

import "sync"

const subscriberBuffer = 64

// Bus fans a stream of values of type T out to any number of subscribers.
// The zero value is not usable; use New.
type Bus[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// New creates an empty Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber and returns its channel. The
// subscriber sees only values published after this call returns.
func (b *Bus[T]) Subscribe() <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, subscriberBuffer)
	id := b.next
	b.next++
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a previously registered subscriber, identified by the
// channel Subscribe returned, and closes its channel.
func (b *Bus[T]) Unsubscribe(ch <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, c := range b.subs {
		if c == ch {
			delete(b.subs, id)
			close(c)
			return
		}
	}
}

// Publish fans v out to every current subscriber. A subscriber whose buffer
// is full is skipped for this value rather than blocking the publisher or
// every other subscriber.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Len reports the current subscriber count, for tests and diagnostics.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
