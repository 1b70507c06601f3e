package queue

import "sync"

// Mailbox is a FIFO handoff between goroutines. A capacity of zero makes it
// unbounded; otherwise the overflow policy decides what happens when full.
//
// Close stops producers but keeps queued items: consumers keep receiving them
// until the mailbox is empty, after which Pop reports false.
type Mailbox[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	capacity int
	policy   OverflowPolicy
	closed   bool
	dropped  uint64
	onDrop   func(T)
}

// NewMailbox creates a mailbox.
func NewMailbox[T any](capacity int, policy OverflowPolicy) *Mailbox[T] {
	if capacity < 0 {
		capacity = 0
	}
	m := &Mailbox[T]{
		capacity: capacity,
		policy:   policy,
	}
	m.notEmpty = sync.NewCond(&m.mu)
	m.notFull = sync.NewCond(&m.mu)
	return m
}

// SetOnDrop registers a callback for items discarded by the overflow
// policy. It runs with the mailbox lock held and must not call back into it.
func (m *Mailbox[T]) SetOnDrop(fn func(T)) {
	m.mu.Lock()
	m.onDrop = fn
	m.mu.Unlock()
}

// Push enqueues v according to the overflow policy.
func (m *Mailbox[T]) Push(v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if m.closed {
			return ErrClosed
		}
		if m.capacity == 0 || len(m.items) < m.capacity {
			m.items = append(m.items, v)
			m.notEmpty.Signal()
			return nil
		}
		switch m.policy {
		case OverflowBlock:
			m.notFull.Wait()
		case OverflowDropOldest:
			var zero T
			old := m.items[0]
			m.items[0] = zero
			m.items = m.items[1:]
			m.drop(old)
		default:
			m.drop(v)
			return ErrFull
		}
	}
}

// Pop dequeues the next item, blocking until one is available or the
// mailbox is closed and drained.
func (m *Mailbox[T]) Pop() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if len(m.items) > 0 {
			return m.shift(), true
		}
		if m.closed {
			var zero T
			return zero, false
		}
		m.notEmpty.Wait()
	}
}

// Drain removes and returns everything currently queued.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.items
	m.items = nil
	m.notFull.Broadcast()
	return out
}

// Close refuses further pushes and wakes every waiter. Safe to call twice.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.notEmpty.Broadcast()
	m.notFull.Broadcast()
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Dropped returns how many items the overflow policy discarded.
func (m *Mailbox[T]) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *Mailbox[T]) drop(v T) {
	m.dropped++
	if m.onDrop != nil {
		m.onDrop(v)
	}
}

func (m *Mailbox[T]) shift() T {
	var zero T
	v := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	if len(m.items) == 0 {
		m.items = nil
	}
	m.notFull.Signal()
	return v
}
