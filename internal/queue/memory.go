package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBrokerClosed is returned by a closed MemoryBroker.
var ErrBrokerClosed = errors.New("broker closed")

// MemoryBroker is an in-process Broker for tests and single-binary development runs.
// Messages are lost on restart.
type MemoryBroker struct {
	mu       sync.Mutex
	queues   map[string]chan Delivery
	closed   bool
	acked    map[string]int
	rejected map[string]int
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues:   make(map[string]chan Delivery),
		acked:    make(map[string]int),
		rejected: make(map[string]int),
	}
}

func (b *MemoryBroker) queue(name string) chan Delivery {
	q, ok := b.queues[name]
	if !ok {
		q = make(chan Delivery, 1024)
		b.queues[name] = q
	}
	return q
}

func (b *MemoryBroker) Publish(ctx context.Context, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}

	attempt := msg.Attempt
	if attempt < 1 {
		attempt = 1
	}
	d := Delivery{Queue: msg.Queue, Body: append([]byte(nil), msg.Body...), Attempt: attempt}
	d.Ack = func() error { b.count(b.acked, msg.Queue); return nil }
	d.Reject = func() error { b.count(b.rejected, msg.Queue); return nil }

	q := b.queue(msg.Queue)
	d.Release = func() error { return b.release(q, d) }
	if msg.Delay > 0 {
		time.AfterFunc(msg.Delay, func() { b.deliver(q, d) })
		return nil
	}

	select {
	case q <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) deliver(q chan Delivery, d Delivery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	q <- d
}

func (b *MemoryBroker) release(q chan Delivery, d Delivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	select {
	case q <- d:
		return nil
	default:
		return errors.New("queue full")
	}
}

func (b *MemoryBroker) count(m map[string]int, queue string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m[queue]++
}

func (b *MemoryBroker) Consume(ctx context.Context, queue, _ string) (<-chan Delivery, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	q := b.queue(queue)
	b.mu.Unlock()

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-q:
				if !ok {
					return
				}
				select {
				case out <- d:
				case <-ctx.Done():
					// Put it back for the next consumer.
					b.mu.Lock()
					if !b.closed {
						q <- d
					}
					b.mu.Unlock()
					return
				}
			}
		}
	}()
	return out, nil
}

// Acked returns how many deliveries of queue were acknowledged.
func (b *MemoryBroker) Acked(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acked[queue]
}

// Rejected returns how many deliveries of queue were dropped.
func (b *MemoryBroker) Rejected(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected[queue]
}

// Len returns the number of ready messages in queue.
func (b *MemoryBroker) Len(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue(queue))
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	b.mu.Unlock()
	return nil
}
