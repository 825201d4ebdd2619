package store

import (
	"sync"
)

// subscriber decouples publish from delivery. Writes land in an
// unbounded queue under the store lock; a pump goroutine drains the
// queue into the outbound channel. A slow consumer therefore delays only
// its own delivery, never a writer or another subscriber, while the
// exactly-once-in-order contract still holds.
type subscriber struct {
	mu       sync.Mutex
	queue    []Snapshot
	finished bool
	wake     chan struct{}
	done     chan struct{}
	once     sync.Once
	out      chan Snapshot
}

func newSubscriber() *subscriber {
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Snapshot),
	}
	go sub.pump()
	return sub
}

// push enqueues a snapshot. Safe to call under the store lock.
func (sub *subscriber) push(snap Snapshot) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, snap)
	sub.mu.Unlock()

	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

// stop aborts delivery even if the consumer has stopped reading. Queued
// snapshots are discarded and the outbound channel is closed by the pump.
func (sub *subscriber) stop() {
	sub.once.Do(func() { close(sub.done) })
}

// finish lets already-queued snapshots (the terminal nil notification in
// particular) drain to a live consumer before the channel closes.
func (sub *subscriber) finish() {
	sub.mu.Lock()
	sub.finished = true
	sub.mu.Unlock()

	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *subscriber) pump() {
	defer close(sub.out)
	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			if sub.finished {
				sub.mu.Unlock()
				return
			}
			sub.mu.Unlock()
			select {
			case <-sub.wake:
				continue
			case <-sub.done:
				return
			}
		}
		next := sub.queue[0]
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- next:
		case <-sub.done:
			return
		}
	}
}
