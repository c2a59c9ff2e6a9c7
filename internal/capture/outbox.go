package capture

// outboxReserve is the number of slots only critical events may use.
const outboxReserve = 4

// outbox is a fixed-capacity FIFO of events owned by the audio runtime.
// Non-critical events are dropped once the free space falls to the
// reserve; critical events use the reserve. The runtime keeps at least
// outboxReserve slots free before every Process call, so critical events
// always fit.
type outbox struct {
	buf     []Event
	head    int
	n       int
	dropped uint64
}

func newOutbox(capacity int) *outbox {
	if capacity < 2*outboxReserve {
		capacity = 2 * outboxReserve
	}
	return &outbox{buf: make([]Event, capacity)}
}

func (o *outbox) push(e Event, critical bool) bool {
	limit := len(o.buf) - outboxReserve
	if critical {
		limit = len(o.buf)
	}
	if o.n >= limit {
		o.dropped++
		return false
	}
	o.buf[(o.head+o.n)%len(o.buf)] = e
	o.n++
	return true
}

func (o *outbox) pending() bool { return o.n > 0 }

func (o *outbox) free() int { return len(o.buf) - o.n }

func (o *outbox) peek() Event { return o.buf[o.head] }

func (o *outbox) pop() {
	o.buf[o.head] = Event{}
	o.head = (o.head + 1) % len(o.buf)
	o.n--
}
