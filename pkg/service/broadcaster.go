package service

import (
	"sync"

	"github.com/ignatij/agendaflow/pkg/models"
)

// Broadcaster fans events out to subscribers. Publishing never blocks: a
// buffered subscriber whose buffer is full misses the event, while a lossless
// subscriber queues it.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan models.Event
	queues map[int]*eventQueue
	nextID int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:   make(map[int]chan models.Event),
		queues: make(map[int]*eventQueue),
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// func unsubscribes and closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe(buffer int) (<-chan models.Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// SubscribeLossless registers a subscriber that receives every event in order.
// Events wait in an unbounded queue until they are read. After unsubscribing,
// queued events are still delivered before the channel is closed, so the
// consumer must read until close.
func (b *Broadcaster) SubscribeLossless() (<-chan models.Event, func()) {
	q := newEventQueue()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		q.close()
		return q.out, func() {}
	}
	id := b.nextID
	b.nextID++
	b.queues[id] = q
	b.mu.Unlock()

	var once sync.Once
	return q.out, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.queues[id]; ok {
				delete(b.queues, id)
				sub.close()
			}
		})
	}
}

func (b *Broadcaster) Publish(e models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	for _, q := range b.queues {
		q.push(e)
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	for id, q := range b.queues {
		delete(b.queues, id)
		q.close()
	}
}

type eventQueue struct {
	mu      sync.Mutex
	pending []models.Event
	closed  bool
	wake    chan struct{}
	out     chan models.Event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake: make(chan struct{}, 1),
		out:  make(chan models.Event),
	}
	go q.pump()
	return q
}

func (q *eventQueue) push(e models.Event) {
	q.mu.Lock()
	if !q.closed {
		q.pending = append(q.pending, e)
	}
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pump hands queued events to the consumer and closes out once the queue is
// closed and drained.
func (q *eventQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, e := range batch {
			q.out <- e
		}
		if len(batch) == 0 {
			if closed {
				return
			}
			<-q.wake
		}
	}
}
