// Package receiver implements the B-side state machine (C5): in-order
// delivery, checksum verification, and duplicate-ACK emission for
// anything that arrives corrupted or out of order. It deliberately does
// not buffer out-of-order packets, matching the spec's standardization on
// cumulative, duplicate-ACK semantics (no NAKs, no selective repeat).
//
// Grounded on the shape of the teacher's internal/quantum/reliability.ReceiveBuffer
// (sequence tracking, duplicate counting) with the out-of-order buffering
// map removed, since the target protocol never retains anything but the
// next expected sequence number and the last ACK sent.
package receiver

import (
	"github.com/aetherflow/quantumsim/internal/eventqueue"
	"github.com/aetherflow/quantumsim/internal/fec"
	"github.com/aetherflow/quantumsim/internal/netchannel"
	"github.com/aetherflow/quantumsim/internal/rdtproto"
	"github.com/aetherflow/quantumsim/internal/tracing"
	"github.com/aetherflow/quantumsim/pkg/rdtstats"
)

// DeliverFunc is invoked once per in-order payload, in order.
type DeliverFunc func(payload []byte)

// Receiver is the B-side reliable-delivery state machine.
type Receiver struct {
	expectSeq     uint32
	lastAckPacket *rdtproto.Packet

	deliver DeliverFunc
	channel *netchannel.Channel
	q       *eventqueue.Queue
	stats   *rdtstats.Stats
	hook    tracing.Hook

	fecDecoder *fec.Decoder
	fecSeqs    map[uint64]map[int]uint32
	fecLens    map[uint64]map[int]int
}

// New creates a Receiver. startSeq must match the sender's StartSeq (0 for
// ABP, 1 for GBN) so the initial sentinel ACK satisfies
// base > last_ack.acknum ⇒ acknum = base-1 at startup.
func New(startSeq uint32, deliver DeliverFunc, q *eventqueue.Queue, channel *netchannel.Channel, stats *rdtstats.Stats, hook tracing.Hook) *Receiver {
	if hook == nil {
		hook = tracing.NopHook{}
	}
	sentinel := uint32(0)
	if startSeq > 0 {
		sentinel = startSeq - 1
	}
	return &Receiver{
		expectSeq:     startSeq,
		lastAckPacket: rdtproto.MakeAck(sentinel),
		deliver:       deliver,
		channel:       channel,
		q:             q,
		stats:         stats,
		hook:          hook,
	}
}

// ExpectSeq returns the next in-order sequence number awaited.
func (r *Receiver) ExpectSeq() uint32 { return r.expectSeq }

// HandlePacket processes an inbound data packet, per spec 4.5.
func (r *Receiver) HandlePacket(p *rdtproto.Packet) {
	r.stats.RecordReceived()

	if !p.IsValid() {
		r.stats.RecordCorrupted()
		r.replyLastAck()
		return
	}

	expectedAtEntry := r.expectSeq
	r.feedFEC(p)

	if p.SeqNum != expectedAtEntry {
		r.stats.RecordOutOfOrder()
		r.replyLastAck()
		return
	}

	r.deliverInOrder(p.SeqNum, p.Payload, p.String())
}

// deliverInOrder delivers payload and advances expect_seq, but only if seq
// is exactly the awaited sequence number. Used both by the direct arrival
// path and by FEC reconstruction, where a recovered shard may turn out to
// already have been delivered (seq < expect_seq, a no-op here) or to still
// be premature (seq > expect_seq, left for its own arrival or a later
// reconstruction).
func (r *Receiver) deliverInOrder(seq uint32, payload []byte, detail string) {
	if seq != r.expectSeq {
		return
	}

	r.deliver(payload)
	r.stats.RecordDelivered()

	r.lastAckPacket = rdtproto.MakeAck(r.expectSeq)
	r.expectSeq++

	r.hook.OnEvent(tracing.Event{Time: r.q.Now(), Kind: "DELIVER", Target: "B", Detail: detail})
	r.channel.Send(eventqueue.EndpointB, r.lastAckPacket)
}

func (r *Receiver) replyLastAck() {
	r.channel.Send(eventqueue.EndpointB, r.lastAckPacket)
}
