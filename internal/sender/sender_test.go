package sender

import (
	"math/rand"
	"testing"

	"github.com/aetherflow/quantumsim/internal/eventqueue"
	"github.com/aetherflow/quantumsim/internal/netchannel"
	"github.com/aetherflow/quantumsim/internal/rdtproto"
	"github.com/aetherflow/quantumsim/pkg/rdtstats"
)

func newTestSender(cfg Config, lossProb float64) (*Sender, *eventqueue.Queue) {
	q := eventqueue.New()
	ch := netchannel.New(netchannel.Config{LossProb: lossProb, CorruptProb: 0, LatencyMin: 5, LatencyMax: 5}, q, rand.New(rand.NewSource(0)), nil)
	stats := &rdtstats.Stats{}
	return New(cfg, q, ch, stats, nil), q
}

func TestEnqueueMessageStartsTimerAndSendsOnePacket(t *testing.T) {
	s, q := newTestSender(DefaultABPConfig(), 0)

	if err := s.EnqueueMessage([]byte("Hi")); err != nil {
		t.Fatalf("EnqueueMessage: %v", err)
	}

	if !s.TimerActive() {
		t.Error("expected timer to be active after sending with nothing acked")
	}
	if s.NextSeq() != 1 {
		t.Errorf("expected next_seq=1, got %d", s.NextSeq())
	}
	if q.Len() != 2 { // one arrival at B, one timeout
		t.Errorf("expected 2 scheduled events, got %d", q.Len())
	}
}

func TestHandleAckAdvancesBaseAndClearsTimer(t *testing.T) {
	s, q := newTestSender(DefaultABPConfig(), 0)
	_ = s.EnqueueMessage([]byte("Hi"))

	q.Pop() // consume the arrival at B, leaving the timeout scheduled
	s.HandleAck(rdtproto.MakeAck(0))

	if s.Base() != 1 {
		t.Errorf("expected base=1 after ack, got %d", s.Base())
	}
	if s.TimerActive() {
		t.Error("expected timer cleared once base==next_seq")
	}
}

func TestStaleAckIsIgnored(t *testing.T) {
	s, _ := newTestSender(DefaultABPConfig(), 0)
	_ = s.EnqueueMessage([]byte("Hi"))
	s.HandleAck(rdtproto.MakeAck(0))

	baseBefore := s.Base()
	timerBefore := s.TimerActive()
	s.HandleAck(rdtproto.MakeAck(0)) // stale repeat: ack.AckNum(0) < base(1)

	if s.Base() != baseBefore {
		t.Errorf("stale ack changed base: %d -> %d", baseBefore, s.Base())
	}
	if s.TimerActive() != timerBefore {
		t.Error("stale ack changed timer state")
	}
}

func TestTimeoutRetransmitsWholeWindow(t *testing.T) {
	s, _ := newTestSender(DefaultGBNConfig(4), 0)
	_ = s.EnqueueMessage([]byte("aaaaabbbbbcccccddddd")) // 20 bytes -> one 20-byte fragment within window

	outstanding := s.NextSeq() - s.Base()

	if s.Base() == s.NextSeq() {
		t.Fatal("expected outstanding packets before timeout")
	}
	s.Timeout()

	if s.stats.PacketsRetransmitted != uint64(outstanding) {
		t.Errorf("expected %d packets retransmitted, got %d", outstanding, s.stats.PacketsRetransmitted)
	}
	if s.TimerActive() == false {
		t.Error("expected a fresh timer after timeout")
	}
}

func TestTimeoutWithNothingOutstandingPanics(t *testing.T) {
	s, _ := newTestSender(DefaultABPConfig(), 0)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for timeout with base==next_seq")
		}
	}()
	s.Timeout()
}

func TestEnqueueMessageFragmentsAcrossMaxPayload(t *testing.T) {
	s, _ := newTestSender(DefaultGBNConfig(64), 0)
	msg := make([]byte, rdtproto.MaxPayload*3+1)
	for i := range msg {
		msg[i] = byte('a' + i%26)
	}

	if err := s.EnqueueMessage(msg); err != nil {
		t.Fatalf("EnqueueMessage: %v", err)
	}

	expectedFragments := uint32(4) // 3 full + 1 partial
	if s.BufferNext()-s.cfg.StartSeq != expectedFragments {
		t.Errorf("expected %d fragments buffered, got %d", expectedFragments, s.BufferNext()-s.cfg.StartSeq)
	}
}

func TestBoundedOverflowReturnsBufferFull(t *testing.T) {
	cfg := DefaultGBNConfig(1)
	cfg.BufSize = 1
	cfg.OverflowLimit = 1
	s, _ := newTestSender(cfg, 0)

	msg := make([]byte, rdtproto.MaxPayload*3) // 3 fragments: 1 buffered, 1 overflowed, 1 over limit
	err := s.EnqueueMessage(msg)
	if err == nil {
		t.Fatal("expected BufferFull once both buffer and bounded overflow are full")
	}
}
