// Package rdtproto implements the packet format used by the reliable
// data-transfer simulator: sequence/ack numbers, a payload, and an additive
// checksum covering both.
package rdtproto

import "fmt"

const (
	// MaxPayload is the maximum number of payload bytes a single packet
	// may carry. Messages longer than this are fragmented by the sender.
	MaxPayload = 20
)

// Packet is the wire unit exchanged between the sender and receiver state
// machines. Pure ACKs carry SeqNum 0 and an empty Payload.
type Packet struct {
	SeqNum   uint32
	AckNum   uint32
	Payload  []byte
	Checksum uint32

	// FEC carries the optional Reed-Solomon shard metadata attached by
	// internal/sender when FEC is enabled. It is nil for every packet on a run
	// that does not use FEC, and is not covered by Checksum: recovering a
	// shard is meaningless if the channel could silently corrupt the
	// recovery metadata itself undetected, so shard packets still rely on
	// the additive checksum for their own payload integrity.
	FEC *FECMeta
}

// FECMeta identifies a packet's place in a Reed-Solomon encoding group.
type FECMeta struct {
	GroupID    uint64
	ShardIndex int
	IsParity   bool

	// GroupSeqNums carries the original sequence number of every data
	// shard in the group, in shard-index order. Only parity shards carry
	// it: a data shard's own SeqNum field already identifies it, but a
	// shard the channel lost is never seen directly, so whatever
	// reconstructs it needs this to rebuild a proper data packet.
	GroupSeqNums []uint32

	// GroupShardLens carries the true, unpadded payload length of every
	// data shard in the group, in shard-index order. Reed-Solomon requires
	// every shard in a group to be the same length, so the encoder
	// zero-pads short shards before encoding; only parity shards carry
	// this so a reconstructed data shard can be trimmed back to its real
	// length before delivery.
	GroupShardLens []int
}

// computeChecksum sums the sequence number, ack number, and every payload
// byte. This mirrors original_source's Packet.calculate_checksum /
// compute_checksum: no CRC, just an additive sum wide enough to make
// accidental collisions rare for the simulator's purposes.
func computeChecksum(seq, ack uint32, payload []byte) uint32 {
	sum := seq + ack
	for _, b := range payload {
		sum += uint32(b)
	}
	return sum
}

// MakeData builds a data packet for the given sequence number and payload,
// truncating the payload to MaxPayload bytes and computing its checksum.
func MakeData(seq uint32, payload []byte) *Packet {
	if len(payload) > MaxPayload {
		payload = payload[:MaxPayload]
	}
	body := make([]byte, len(payload))
	copy(body, payload)

	return &Packet{
		SeqNum:   seq,
		AckNum:   0,
		Payload:  body,
		Checksum: computeChecksum(seq, 0, body),
	}
}

// MakeAck builds a pure acknowledgment packet for the given ack number.
func MakeAck(ack uint32) *Packet {
	return &Packet{
		SeqNum:   0,
		AckNum:   ack,
		Payload:  nil,
		Checksum: computeChecksum(0, ack, nil),
	}
}

// IsValid reports whether the packet's checksum matches its contents.
func (p *Packet) IsValid() bool {
	return p.Checksum == computeChecksum(p.SeqNum, p.AckNum, p.Payload)
}

// Clone returns a deep copy of the packet. The channel hands a clone to
// each side of the wire so that neither sender nor receiver can mutate the
// other's view of a packet in flight.
func (p *Packet) Clone() *Packet {
	body := make([]byte, len(p.Payload))
	copy(body, p.Payload)
	c := &Packet{
		SeqNum:   p.SeqNum,
		AckNum:   p.AckNum,
		Payload:  body,
		Checksum: p.Checksum,
	}
	if p.FEC != nil {
		meta := *p.FEC
		meta.GroupSeqNums = append([]uint32(nil), p.FEC.GroupSeqNums...)
		meta.GroupShardLens = append([]int(nil), p.FEC.GroupShardLens...)
		c.FEC = &meta
	}
	return c
}

// Corrupt returns a clone whose checksum has been perturbed so that
// IsValid reports false. Used by the channel to simulate corruption.
func (p *Packet) Corrupt() *Packet {
	c := p.Clone()
	c.Checksum++
	return c
}

// String returns a short human-readable representation, analogous to the
// teacher's Header.String but trimmed to this protocol's fields.
func (p *Packet) String() string {
	payload := p.Payload
	truncated := false
	if len(payload) > 20 {
		payload = payload[:20]
		truncated = true
	}
	suffix := ""
	if truncated {
		suffix = "..."
	}
	return fmt.Sprintf("Packet(seq=%d, ack=%d, payload=%q%s, size=%d)",
		p.SeqNum, p.AckNum, payload, suffix, len(p.Payload))
}
