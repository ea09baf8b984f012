package flatten

import "sync"

// Mailbox is an unbounded, order-preserving event queue. Post never
// blocks, so a slow consumer cannot stall the pipeline; events are
// delivered on Events until Close has been called and the queue drained.
// The consumer must drain Events.
type Mailbox struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
	out    chan Event
}

// NewMailbox starts a mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
	}
	go m.deliver()
	return m
}

// Post queues an event. Events posted after Close are dropped. Post has
// the signature of an Observer.
func (m *Mailbox) Post(e Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()
	m.signal()
}

// Close stops accepting events. Queued events are still delivered.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// Events returns the delivery channel, closed after the last event.
func (m *Mailbox) Events() <-chan Event {
	return m.out
}

func (m *Mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mailbox) deliver() {
	defer close(m.out)
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.mu.Unlock()
			<-m.wake
			m.mu.Lock()
		}
		batch := m.queue
		m.queue = nil
		closed := m.closed
		m.mu.Unlock()

		for _, e := range batch {
			m.out <- e
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}
