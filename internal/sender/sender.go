// Package sender implements the A-side state machine (C4): window
// management, buffering, retransmission, and adaptive RTO estimation.
// Grounded on the teacher's internal/quantum/reliability.SendBuffer — the
// map-keyed "circular buffer of sent packets", the Jacobson/Karels RTO
// update, and the exponential-backoff-on-timeout shape all come from
// there, adapted from a goroutine-safe, wall-clock design to the
// simulator's single-threaded logical clock (no mutexes, no time.Time,
// the scheduler's float64 "now" instead).
//
// ABP is modeled as the degenerate GBN case window_size=1, starting its
// sequence space at 0 rather than GBN's 1 (see DESIGN.md for why a
// monotonic counter is indistinguishable from bit alternation when only
// one packet is ever outstanding).
package sender

import (
	"fmt"

	"github.com/aetherflow/quantumsim/internal/eventqueue"
	"github.com/aetherflow/quantumsim/internal/fec"
	"github.com/aetherflow/quantumsim/internal/netchannel"
	"github.com/aetherflow/quantumsim/internal/rdtproto"
	"github.com/aetherflow/quantumsim/internal/tracing"
	"github.com/aetherflow/quantumsim/pkg/rdtstats"
)

const (
	alpha = 0.125
	beta  = 0.25
)

// ErrBufferFull is returned by EnqueueMessage when both the ring buffer and
// a bounded overflow FIFO are full.
type ErrBufferFull struct {
	Chunk int
}

func (e *ErrBufferFull) Error() string {
	return fmt.Sprintf("sender: buffer full, dropping fragment %d", e.Chunk)
}

// InvariantViolation is panicked when a structural invariant the state
// machine depends on is broken: Timeout raises it when the timer fires
// with nothing outstanding. (A non-monotonic clock is caught separately,
// by internal/eventqueue's own panic.)
type InvariantViolation struct {
	Reason string
}

func (e InvariantViolation) Error() string {
	return "sender: invariant violation: " + e.Reason
}

// Config configures the sender's window, buffer, and RTO behavior.
type Config struct {
	// StartSeq is the first sequence number assigned. GBN uses 1, ABP
	// uses 0 (see package doc).
	StartSeq uint32
	// WindowSize is N: the maximum number of unacknowledged packets in
	// flight. 1 for ABP.
	WindowSize uint32
	// BufSize bounds how many fragments may be buffered ahead of base.
	BufSize uint32
	// OverflowLimit bounds the overflow FIFO; 0 means unbounded.
	OverflowLimit int

	InitialRTO float64
	RTOMin     float64
	RTOMax     float64
	// BackoffCap is the maximum multiplier applied to rto after repeated
	// timeouts.
	BackoffCap float64
}

// DefaultGBNConfig returns the spec's default GBN sender configuration for
// the given window size.
func DefaultGBNConfig(windowSize uint32) Config {
	return Config{
		StartSeq:   1,
		WindowSize: windowSize,
		BufSize:    64,
		InitialRTO: 15,
		RTOMin:     1,
		RTOMax:     120,
		BackoffCap: 64,
	}
}

// DefaultABPConfig returns the spec's default ABP sender configuration:
// GBN with window_size=1 and a 0-indexed sequence space.
func DefaultABPConfig() Config {
	cfg := DefaultGBNConfig(1)
	cfg.StartSeq = 0
	return cfg
}

// Sender is the A-side reliable-delivery state machine.
type Sender struct {
	cfg Config

	base       uint32
	nextSeq    uint32
	bufferNext uint32

	buf      map[uint32]*rdtproto.Packet
	overflow [][]byte

	sendTime      map[uint32]float64
	retransmitted map[uint32]bool

	rttInitialized bool
	srtt           float64
	rttvar         float64
	rto            float64
	backoff        float64

	timerHandle eventqueue.Handle

	q       *eventqueue.Queue
	channel *netchannel.Channel
	stats   *rdtstats.Stats
	hook    tracing.Hook

	fecEncoder   *fec.Encoder
	fecGroupSeqs map[uint64][]uint32
}

// WithFEC attaches a Reed-Solomon encoder: every first-time data
// transmission (not retransmissions) is added to the current shard group,
// and completed groups' parity shards are sent alongside the data. It
// returns the sender for chaining.
func (s *Sender) WithFEC(encoder *fec.Encoder) *Sender {
	s.fecEncoder = encoder
	s.fecGroupSeqs = make(map[uint64][]uint32)
	return s
}

// New creates a Sender. channel carries outbound packets; q schedules the
// retransmission timer; stats and hook receive observability output.
func New(cfg Config, q *eventqueue.Queue, channel *netchannel.Channel, stats *rdtstats.Stats, hook tracing.Hook) *Sender {
	if hook == nil {
		hook = tracing.NopHook{}
	}
	return &Sender{
		cfg:           cfg,
		base:          cfg.StartSeq,
		nextSeq:       cfg.StartSeq,
		bufferNext:    cfg.StartSeq,
		buf:           make(map[uint32]*rdtproto.Packet),
		sendTime:      make(map[uint32]float64),
		retransmitted: make(map[uint32]bool),
		rto:           cfg.InitialRTO,
		backoff:       1,
		q:             q,
		channel:       channel,
		stats:         stats,
		hook:          hook,
	}
}

// Base returns the current window left edge, for tests and invariant
// checks.
func (s *Sender) Base() uint32 { return s.base }

// NextSeq returns the next sequence number to be assigned.
func (s *Sender) NextSeq() uint32 { return s.nextSeq }

// BufferNext returns the next free buffer slot.
func (s *Sender) BufferNext() uint32 { return s.bufferNext }

// TimerActive reports whether a retransmission timer is currently
// outstanding.
func (s *Sender) TimerActive() bool { return s.timerHandle.Valid() }

// EnqueueMessage fragments message into MaxPayload-sized chunks, buffers
// each (or queues it in the overflow FIFO), and attempts to send.
func (s *Sender) EnqueueMessage(message []byte) error {
	s.stats.RecordMessage(len(message))

	for i := 0; i < len(message); i += rdtproto.MaxPayload {
		end := i + rdtproto.MaxPayload
		if end > len(message) {
			end = len(message)
		}
		if err := s.bufferChunk(message[i:end]); err != nil {
			return err
		}
	}
	s.sendWindow()
	return nil
}

func (s *Sender) bufferChunk(chunk []byte) error {
	if s.bufferNext-s.base < s.cfg.BufSize {
		s.buf[s.bufferNext] = rdtproto.MakeData(s.bufferNext, chunk)
		s.bufferNext++
		return nil
	}
	if s.cfg.OverflowLimit > 0 && len(s.overflow) >= s.cfg.OverflowLimit {
		return &ErrBufferFull{Chunk: len(chunk)}
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.overflow = append(s.overflow, cp)
	return nil
}

func (s *Sender) drainOverflow() {
	for len(s.overflow) > 0 && s.bufferNext-s.base < s.cfg.BufSize {
		chunk := s.overflow[0]
		s.overflow = s.overflow[1:]
		s.buf[s.bufferNext] = rdtproto.MakeData(s.bufferNext, chunk)
		s.bufferNext++
	}
}

// sendWindow transmits every buffered packet not yet covered by the
// window, starting the retransmission timer for the first one.
func (s *Sender) sendWindow() {
	for s.nextSeq < s.bufferNext && s.nextSeq < s.base+s.cfg.WindowSize {
		p := s.buf[s.nextSeq]
		s.sendTime[s.nextSeq] = s.q.Now()

		if s.base == s.nextSeq {
			s.startTimer()
		}

		s.tagAndGroupForFEC(p)

		s.stats.RecordSent(false)
		s.channel.Send(eventqueue.EndpointA, p)
		s.hook.OnEvent(tracing.Event{Time: s.q.Now(), Kind: "PACKET_SEND", Target: "A", Detail: p.String()})

		s.nextSeq++
	}
}

// tagAndGroupForFEC adds p's payload to the current encoding group and
// tags p with the resulting shard metadata. When the group completes, it
// sends the resulting parity shards immediately after p.
func (s *Sender) tagAndGroupForFEC(p *rdtproto.Packet) {
	if s.fecEncoder == nil {
		return
	}
	_, parity, err := s.fecEncoder.AddData(p.Payload)
	if err != nil {
		return
	}

	gid := s.fecEncoder.PendingGroupID()
	p.FEC = &rdtproto.FECMeta{GroupID: gid, ShardIndex: s.fecEncoder.LastShardIndex()}
	s.fecGroupSeqs[gid] = append(s.fecGroupSeqs[gid], p.SeqNum)

	if parity != nil {
		seqs := s.fecGroupSeqs[gid]
		delete(s.fecGroupSeqs, gid)
		s.sendParityShards(gid, seqs, s.fecEncoder.PendingGroupShardLens(), parity)
	}
}

// sendParityShards transmits each parity shard of a completed group as its
// own packet, tagged so the receiver's decoder can identify it.
func (s *Sender) sendParityShards(groupID uint64, dataSeqs []uint32, dataLens []int, shards [][]byte) {
	for idx, shard := range shards {
		pkt := rdtproto.MakeData(0, shard)
		pkt.FEC = &rdtproto.FECMeta{
			GroupID:        groupID,
			ShardIndex:     idx,
			IsParity:       true,
			GroupSeqNums:   dataSeqs,
			GroupShardLens: dataLens,
		}
		s.stats.RecordSent(false)
		s.channel.Send(eventqueue.EndpointA, pkt)
		s.hook.OnEvent(tracing.Event{Time: s.q.Now(), Kind: "FEC_PARITY_SEND", Target: "A", Detail: pkt.String()})
	}
}

func (s *Sender) startTimer() {
	if s.timerHandle.Valid() {
		s.q.Cancel(s.timerHandle)
	}
	s.timerHandle = s.q.Schedule(s.rto, eventqueue.Timeout, eventqueue.EndpointA, nil)
}

// HandleAck processes an inbound ACK packet, per spec 4.4.3. ACKs are not
// counted against PacketsReceived: that counter tracks data packets
// arriving at B, mirroring original_source/gbn.py where packets_received
// is only touched by Receiver.input.
func (s *Sender) HandleAck(ack *rdtproto.Packet) {
	if !ack.IsValid() {
		s.stats.RecordCorrupted()
		return
	}
	if ack.AckNum < s.base {
		return // duplicate or stale
	}

	newBase := ack.AckNum + 1
	if newBase > s.nextSeq {
		newBase = s.nextSeq
	}

	if t, ok := s.sendTime[ack.AckNum]; ok && !s.retransmitted[ack.AckNum] {
		rtt := s.q.Now() - t
		s.updateRTO(rtt)
		s.stats.RecordRTTSample(rtt)
	}

	for seq := s.base; seq < newBase; seq++ {
		delete(s.sendTime, seq)
		delete(s.retransmitted, seq)
		delete(s.buf, seq)
	}

	s.backoff = 1
	s.base = newBase
	s.drainOverflow()

	if s.timerHandle.Valid() {
		s.q.Cancel(s.timerHandle)
		s.timerHandle = eventqueue.Handle{}
	}
	if s.base < s.nextSeq {
		s.startTimer()
	}

	s.sendWindow()
}

func (s *Sender) updateRTO(rtt float64) {
	if !s.rttInitialized {
		s.srtt = rtt
		s.rttvar = rtt / 2
		s.rttInitialized = true
	} else {
		diff := s.srtt - rtt
		if diff < 0 {
			diff = -diff
		}
		s.rttvar = (1-beta)*s.rttvar + beta*diff
		s.srtt = (1-alpha)*s.srtt + alpha*rtt
	}

	s.rto = s.srtt + 4*s.rttvar
	if s.rto < s.cfg.RTOMin {
		s.rto = s.cfg.RTOMin
	}
	if s.rto > s.cfg.RTOMax {
		s.rto = s.cfg.RTOMax
	}
}

// Timeout retransmits the entire outstanding window, per spec 4.4.4.
func (s *Sender) Timeout() {
	if s.base == s.nextSeq {
		panic(InvariantViolation{Reason: "timer fired with base == next_seq"})
	}

	s.stats.RecordTimeout()
	s.backoff *= 2
	if s.backoff > s.cfg.BackoffCap {
		s.backoff = s.cfg.BackoffCap
	}

	for seq := s.base; seq < s.nextSeq; seq++ {
		p := s.buf[seq]
		s.retransmitted[seq] = true
		s.stats.RecordSent(true)
		s.channel.Send(eventqueue.EndpointA, p)
		s.hook.OnEvent(tracing.Event{Time: s.q.Now(), Kind: "TIMEOUT", Target: "A", Detail: p.String()})
	}

	s.timerHandle = s.q.Schedule(s.rto*s.backoff, eventqueue.Timeout, eventqueue.EndpointA, nil)
}

// RTO returns the current retransmission timeout estimate.
func (s *Sender) RTO() float64 { return s.rto }

// SRTT returns the current smoothed RTT, or 0 if no sample has been taken.
func (s *Sender) SRTT() float64 { return s.srtt }
