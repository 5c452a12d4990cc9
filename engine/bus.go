package engine

import "sync"

// bus is an unbounded message queue. Posting never blocks, so streaming
// goroutines and state changes requested from the consumer goroutine
// can't deadlock on it.
type bus struct {
	mu     sync.Mutex
	queue  []Message
	notify chan struct{}
	out    chan Message
}

func newBus() *bus {
	return &bus{
		notify: make(chan struct{}, 1),
		out:    make(chan Message),
	}
}

func (b *bus) post(m Message) {
	b.mu.Lock()
	b.queue = append(b.queue, m)
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// run forwards queued messages in order until done is closed.
func (b *bus) run(done <-chan struct{}) {
	defer close(b.out)
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			select {
			case <-b.notify:
				continue
			case <-done:
				return
			}
		}
		m := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		b.mu.Unlock()

		select {
		case b.out <- m:
		case <-done:
			return
		}
	}
}
