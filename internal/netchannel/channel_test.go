package netchannel

import (
	"math/rand"
	"testing"

	"github.com/aetherflow/quantumsim/internal/eventqueue"
	"github.com/aetherflow/quantumsim/internal/rdtproto"
)

func TestSendAlwaysArrivesWithZeroLossAndCorruption(t *testing.T) {
	q := eventqueue.New()
	cfg := Config{LossProb: 0, CorruptProb: 0, LatencyMin: 1, LatencyMax: 1}
	c := New(cfg, q, rand.New(rand.NewSource(1)), nil)

	c.Send(eventqueue.EndpointA, rdtproto.MakeData(1, []byte("hi")))

	if q.Len() != 1 {
		t.Fatalf("expected one scheduled arrival, got %d", q.Len())
	}
	ev, ok := q.Pop()
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Target != eventqueue.EndpointB {
		t.Errorf("expected arrival at B, got %v", ev.Target)
	}
	pkt := ev.Data.(*rdtproto.Packet)
	if !pkt.IsValid() {
		t.Errorf("expected uncorrupted packet to be valid")
	}
}

func TestSendNeverArrivesWithCertainLoss(t *testing.T) {
	q := eventqueue.New()
	cfg := Config{LossProb: 1, CorruptProb: 0, LatencyMin: 1, LatencyMax: 1}
	c := New(cfg, q, rand.New(rand.NewSource(1)), nil)

	c.Send(eventqueue.EndpointA, rdtproto.MakeData(1, []byte("hi")))

	if q.Len() != 0 {
		t.Fatalf("expected no scheduled arrival under certain loss, got %d", q.Len())
	}
}

func TestSendAlwaysCorruptsWithCertainCorruption(t *testing.T) {
	q := eventqueue.New()
	cfg := Config{LossProb: 0, CorruptProb: 1, LatencyMin: 1, LatencyMax: 1}
	c := New(cfg, q, rand.New(rand.NewSource(1)), nil)

	c.Send(eventqueue.EndpointA, rdtproto.MakeData(1, []byte("hi")))

	ev, ok := q.Pop()
	if !ok {
		t.Fatal("expected an event")
	}
	pkt := ev.Data.(*rdtproto.Packet)
	if pkt.IsValid() {
		t.Errorf("expected corrupted packet to fail validation")
	}
}

func TestSendIsDeterministicForAFixedSeed(t *testing.T) {
	run := func(seed int64) []float64 {
		q := eventqueue.New()
		cfg := Config{LossProb: 0.3, CorruptProb: 0.2, LatencyMin: 5, LatencyMax: 15}
		c := New(cfg, q, rand.New(rand.NewSource(seed)), nil)
		var times []float64
		for i := 0; i < 20; i++ {
			c.Send(eventqueue.EndpointA, rdtproto.MakeData(uint32(i), []byte("x")))
		}
		for q.Len() > 0 {
			ev, _ := q.Pop()
			times = append(times, ev.Time)
		}
		return times
	}

	a := run(42)
	b := run(42)
	if len(a) != len(b) {
		t.Fatalf("expected same number of survivors across identical seeds, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("run mismatch at index %d: %v != %v", i, a[i], b[i])
		}
	}
}
