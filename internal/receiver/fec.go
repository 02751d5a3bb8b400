package receiver

import (
	"fmt"

	"github.com/aetherflow/quantumsim/internal/fec"
	"github.com/aetherflow/quantumsim/internal/rdtproto"
)

// WithFEC attaches a Reed-Solomon decoder matching the sender's shard
// geometry. It returns the receiver for chaining.
func (r *Receiver) WithFEC(decoder *fec.Decoder) *Receiver {
	r.fecDecoder = decoder
	r.fecSeqs = make(map[uint64]map[int]uint32)
	r.fecLens = make(map[uint64]map[int]int)
	return r
}

// HandleParityShard processes an inbound parity packet. Parity shards
// never carry real protocol sequence numbers, so they bypass the ordinary
// in-order/ACK path entirely; they only feed the FEC decoder. They are not
// counted against PacketsReceived, which tracks data packets arriving at
// B the way original_source/gbn.py's Receiver.input does.
func (r *Receiver) HandleParityShard(p *rdtproto.Packet) {
	if !p.IsValid() {
		r.stats.RecordCorrupted()
		return
	}
	r.feedFEC(p)
}

// feedFEC records p's shard in the decoder, and once a group has enough
// shards to reconstruct, delivers whatever data shards are newly in order.
func (r *Receiver) feedFEC(p *rdtproto.Packet) {
	if r.fecDecoder == nil || p.FEC == nil {
		return
	}

	if p.FEC.IsParity {
		r.noteGroupSeqs(p.FEC.GroupID, p.FEC.GroupSeqNums)
		r.noteGroupLens(p.FEC.GroupID, p.FEC.GroupShardLens)
		recovered, err := r.fecDecoder.AddShard(p.FEC.GroupID, p.FEC.ShardIndex, p.Payload, true)
		if err == nil && recovered != nil {
			r.deliverRecovered(p.FEC.GroupID, recovered)
		}
		return
	}

	r.noteSeq(p.FEC.GroupID, p.FEC.ShardIndex, p.SeqNum)
	recovered, err := r.fecDecoder.AddShard(p.FEC.GroupID, p.FEC.ShardIndex, p.Payload, false)
	if err == nil && recovered != nil {
		r.deliverRecovered(p.FEC.GroupID, recovered)
	}
}

func (r *Receiver) noteSeq(groupID uint64, shardIndex int, seq uint32) {
	group, ok := r.fecSeqs[groupID]
	if !ok {
		group = make(map[int]uint32)
		r.fecSeqs[groupID] = group
	}
	group[shardIndex] = seq
}

func (r *Receiver) noteGroupSeqs(groupID uint64, seqs []uint32) {
	for idx, seq := range seqs {
		r.noteSeq(groupID, idx, seq)
	}
}

func (r *Receiver) noteGroupLens(groupID uint64, lens []int) {
	if len(lens) == 0 {
		return
	}
	group, ok := r.fecLens[groupID]
	if !ok {
		group = make(map[int]int)
		r.fecLens[groupID] = group
	}
	for idx, l := range lens {
		group[idx] = l
	}
}

// deliverRecovered replays every data shard the decoder just reconstructed
// through the normal in-order gate, in shard-index (== sequence) order.
// Reconstructed shards come back zero-padded to the group's longest member
// (Reed-Solomon requires uniform shard length), so each is trimmed to its
// recorded original length before delivery.
func (r *Receiver) deliverRecovered(groupID uint64, shards [][]byte) {
	seqs := r.fecSeqs[groupID]
	lens := r.fecLens[groupID]
	for idx, payload := range shards {
		seq, ok := seqs[idx]
		if !ok {
			continue
		}
		if l, ok := lens[idx]; ok && l <= len(payload) {
			payload = payload[:l]
		}
		r.deliverInOrder(seq, payload, fmt.Sprintf("seq=%d (FEC recovered)", seq))
	}
	delete(r.fecSeqs, groupID)
	delete(r.fecLens, groupID)
}
