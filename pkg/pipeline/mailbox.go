package pipeline

// Mailbox holds at most one value. Put replaces an unread value, so a slow
// reader always sees the newest state and never blocks the producer.
type Mailbox[T any] struct {
	ch chan T
}

// NewMailbox returns an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// Put stores v, discarding any unread value. It reports whether a value
// was discarded.
func (m *Mailbox[T]) Put(v T) (dropped bool) {
	for {
		select {
		case m.ch <- v:
			return dropped
		default:
		}
		select {
		case <-m.ch:
			dropped = true
		default:
		}
	}
}

// TryGet takes the pending value if there is one.
func (m *Mailbox[T]) TryGet() (T, bool) {
	select {
	case v := <-m.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C returns the receive side for use in select.
func (m *Mailbox[T]) C() <-chan T { return m.ch }
