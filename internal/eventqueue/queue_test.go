package eventqueue

import "testing"

func TestPopOrdersByTime(t *testing.T) {
	q := New()
	q.Schedule(10, Arrival, EndpointA, "third")
	q.Schedule(1, Arrival, EndpointA, "first")
	q.Schedule(5, Arrival, EndpointA, "second")

	want := []string{"first", "second", "third"}
	for _, w := range want {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("expected an event, queue empty early")
		}
		if e.Data.(string) != w {
			t.Errorf("expected %q, got %q", w, e.Data.(string))
		}
	}
	if _, ok := q.Pop(); ok {
		t.Errorf("expected queue to be empty")
	}
}

func TestPopTieBreaksByInsertionOrder(t *testing.T) {
	q := New()
	q.Schedule(5, Arrival, EndpointA, "a")
	q.Schedule(5, Arrival, EndpointA, "b")
	q.Schedule(5, Arrival, EndpointA, "c")

	for _, w := range []string{"a", "b", "c"} {
		e, _ := q.Pop()
		if e.Data.(string) != w {
			t.Errorf("expected %q at time 5, got %q", w, e.Data.(string))
		}
	}
}

func TestCancelSkipsTombstonedEvent(t *testing.T) {
	q := New()
	h := q.Schedule(1, Timeout, EndpointA, nil)
	q.Schedule(2, Arrival, EndpointB, "kept")
	q.Cancel(h)

	e, ok := q.Pop()
	if !ok {
		t.Fatalf("expected the surviving event")
	}
	if e.Kind != Arrival || e.Data.(string) != "kept" {
		t.Errorf("cancelled event should have been skipped, got %+v", e)
	}
	if _, ok := q.Pop(); ok {
		t.Errorf("expected queue to be drained")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	q := New()
	h := q.Schedule(1, Timeout, EndpointA, nil)
	q.Cancel(h)
	q.Cancel(h) // must not panic or double-free

	if _, ok := q.Pop(); ok {
		t.Errorf("expected queue to be empty after cancelling its only event")
	}
}

func TestCancelZeroHandleIsNoop(t *testing.T) {
	q := New()
	q.Schedule(1, Timeout, EndpointA, nil)
	var zero Handle
	q.Cancel(zero)

	if _, ok := q.Pop(); !ok {
		t.Errorf("zero handle cancel must not affect the real event")
	}
}

func TestNowAdvancesMonotonically(t *testing.T) {
	q := New()
	q.Schedule(3, Arrival, EndpointA, nil)
	q.Schedule(7, Arrival, EndpointA, nil)

	if q.Now() != 0 {
		t.Errorf("expected initial now()==0, got %v", q.Now())
	}
	q.Pop()
	if q.Now() != 3 {
		t.Errorf("expected now()==3 after first pop, got %v", q.Now())
	}
	q.Pop()
	if q.Now() != 7 {
		t.Errorf("expected now()==7 after second pop, got %v", q.Now())
	}
}

func TestSchedulingAfterPopUsesCurrentNow(t *testing.T) {
	q := New()
	q.Schedule(3, Arrival, EndpointA, "first")
	q.Pop()

	q.Schedule(2, Arrival, EndpointA, "second")
	e, _ := q.Pop()
	if e.Time != 5 {
		t.Errorf("expected second event at time 5 (3+2), got %v", e.Time)
	}
}
