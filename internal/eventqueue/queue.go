// Package eventqueue implements the simulator's discrete-event scheduler: a
// monotonic-time min-priority queue with O(log n) insertion and cancellation.
package eventqueue

import "container/heap"

// Kind identifies what a popped event means to the driver.
type Kind int

const (
	// Arrival means a packet has been delivered to Target's input.
	Arrival Kind = iota
	// Timeout means Target's retransmission timer has fired.
	Timeout
	// AppSend means the driver should hand a message to Target's output.
	AppSend
)

func (k Kind) String() string {
	switch k {
	case Arrival:
		return "ARRIVAL"
	case Timeout:
		return "TIMEOUT"
	case AppSend:
		return "APP_SEND"
	default:
		return "UNKNOWN"
	}
}

// Endpoint identifies one of the two simulated hosts.
type Endpoint int

const (
	EndpointA Endpoint = iota
	EndpointB
)

func (e Endpoint) String() string {
	if e == EndpointA {
		return "A"
	}
	return "B"
}

// Event is the scheduler's unit of work: a time, a kind, a target endpoint,
// and an opaque payload (a *rdtproto.Packet for Arrival, a message for
// AppSend, nil for Timeout).
type Event struct {
	Time   float64
	Kind   Kind
	Target Endpoint
	Data   any

	seq     uint64 // insertion order, used as the FIFO tie-breaker
	index   int    // heap index, maintained by container/heap
	live    bool
}

// Handle identifies a previously scheduled event so it can be cancelled.
// The zero Handle never matches a live event.
type Handle struct {
	seq uint64
	ok  bool
}

// Valid reports whether the handle refers to an event that was actually
// scheduled (as opposed to a zero Handle from an uninitialized timer slot).
func (h Handle) Valid() bool { return h.ok }

// eventHeap is the underlying container/heap.Interface implementation.
// Cancelled entries are tombstoned (live=false) in place and skipped by
// Pop rather than removed immediately, which would require an O(n) scan;
// the scheduler reclaims them lazily as they reach the front of the queue.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*Event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is the simulator's event scheduler. It is not safe for concurrent
// use; the simulator is single-threaded and cooperative by design.
type Queue struct {
	heap    eventHeap
	now     float64
	nextSeq uint64
	byHandle map[uint64]*Event
}

// New returns an empty queue with the logical clock at zero.
func New() *Queue {
	q := &Queue{byHandle: make(map[uint64]*Event)}
	heap.Init(&q.heap)
	return q
}

// Now returns the current logical time: the timestamp of the most recently
// popped event, or zero if nothing has been popped yet.
func (q *Queue) Now() float64 { return q.now }

// Schedule inserts an event at now()+delay and returns a handle that can
// later be passed to Cancel. delay must be >= 0.
func (q *Queue) Schedule(delay float64, kind Kind, target Endpoint, data any) Handle {
	if delay < 0 {
		panic("eventqueue: negative delay")
	}
	e := &Event{
		Time:   q.now + delay,
		Kind:   kind,
		Target: target,
		Data:   data,
		seq:    q.nextSeq,
		live:   true,
	}
	q.nextSeq++
	heap.Push(&q.heap, e)
	q.byHandle[e.seq] = e
	return Handle{seq: e.seq, ok: true}
}

// Cancel tombstones the event referred to by h. Cancelling an already
// popped, already cancelled, or zero-value handle is a no-op: cancellation
// is idempotent.
func (q *Queue) Cancel(h Handle) {
	if !h.ok {
		return
	}
	if e, found := q.byHandle[h.seq]; found {
		e.live = false
		delete(q.byHandle, h.seq)
	}
}

// Pop removes and returns the earliest live event, advancing the logical
// clock to its timestamp. It returns ok=false once the queue is empty of
// live events.
func (q *Queue) Pop() (Event, bool) {
	for q.heap.Len() > 0 {
		e := heap.Pop(&q.heap).(*Event)
		if !e.live {
			continue
		}
		if e.Time < q.now {
			panic("eventqueue: non-monotonic event pop")
		}
		q.now = e.Time
		delete(q.byHandle, e.seq)
		return *e, true
	}
	return Event{}, false
}

// Len returns the number of events still in the heap, including tombstoned
// ones that have not yet been popped and discarded.
func (q *Queue) Len() int { return q.heap.Len() }
