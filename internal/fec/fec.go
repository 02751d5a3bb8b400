// Package fec implements optional Forward Error Correction for the
// simulator's channel, using Reed-Solomon coding. It groups consecutive
// data packets sent by A into shards and produces parity shards that B can
// use to reconstruct a packet the channel corrupted or dropped, without
// changing the ABP/GBN cumulative-ACK contract.
//
// Adapted from the teacher's internal/quantum/fec package: the simulator
// is single-threaded and cooperative (see internal/eventqueue), so the
// original's sync.RWMutex guards are dropped — there is never a concurrent
// caller to guard against.
package fec

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

const (
	// DefaultDataShards is the default number of data packets per group.
	DefaultDataShards = 4

	// DefaultParityShards is the default number of parity shards per group.
	DefaultParityShards = 2
)

// Config contains the Reed-Solomon shard geometry.
type Config struct {
	DataShards   int
	ParityShards int
}

// DefaultConfig returns the default FEC geometry.
func DefaultConfig() *Config {
	return &Config{
		DataShards:   DefaultDataShards,
		ParityShards: DefaultParityShards,
	}
}

// EncodingGroup is a group of data packets being encoded together.
type EncodingGroup struct {
	GroupID      uint64
	DataShards   [][]byte
	DataLens     []int
	ParityShards [][]byte
	Count        int
	Complete     bool
}

// DecodingGroup is a group of shards being collected for reconstruction.
type DecodingGroup struct {
	GroupID       uint64
	DataShards    [][]byte
	ParityShards  [][]byte
	ReceivedMask  []bool
	ReceivedCount int
	Complete      bool
}

// Encoder groups outbound data packets and produces parity shards.
type Encoder struct {
	dataShards   int
	parityShards int
	encoder      reedsolomon.Encoder

	currentGroup *EncodingGroup
	groupID      uint64
}

// NewEncoder creates an Encoder for the given shard geometry.
func NewEncoder(config *Config) (*Encoder, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DataShards < 1 || config.DataShards > 256 {
		return nil, fmt.Errorf("fec: invalid data shards %d (must be 1-256)", config.DataShards)
	}
	if config.ParityShards < 0 || config.ParityShards > 256 {
		return nil, fmt.Errorf("fec: invalid parity shards %d (must be 0-256)", config.ParityShards)
	}

	enc, err := reedsolomon.New(config.DataShards, config.ParityShards)
	if err != nil {
		return nil, fmt.Errorf("fec: creating Reed-Solomon encoder: %w", err)
	}

	return &Encoder{
		dataShards:   config.DataShards,
		parityShards: config.ParityShards,
		encoder:      enc,
		groupID:      1,
	}, nil
}

// AddData adds a data packet's payload to the current group. Once the
// group fills up it returns the group ID and parity shards; otherwise both
// zero values are returned and the caller should keep sending data shards.
func (e *Encoder) AddData(data []byte) (groupID uint64, parityShards [][]byte, err error) {
	if e.currentGroup == nil || e.currentGroup.Complete {
		e.currentGroup = &EncodingGroup{
			GroupID:    e.groupID,
			DataShards: make([][]byte, e.dataShards),
			DataLens:   make([]int, e.dataShards),
		}
		e.groupID++
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	e.currentGroup.DataShards[e.currentGroup.Count] = dataCopy
	e.currentGroup.DataLens[e.currentGroup.Count] = len(data)
	e.currentGroup.Count++

	if e.currentGroup.Count < e.dataShards {
		return 0, nil, nil
	}

	if err := e.encodeGroup(); err != nil {
		return 0, nil, fmt.Errorf("fec: encoding group: %w", err)
	}
	e.currentGroup.Complete = true
	return e.currentGroup.GroupID, e.currentGroup.ParityShards, nil
}

// PendingGroupShardLens returns the true, unpadded length of every data
// shard placed into the group the most recent AddData call completed, or
// nil if the most recent AddData call left its group incomplete (or
// AddData has never been called).
func (e *Encoder) PendingGroupShardLens() []int {
	if e.currentGroup == nil || !e.currentGroup.Complete {
		return nil
	}
	return e.currentGroup.DataLens
}

// Pending reports whether a partially-filled group is waiting for more data
// shards before it can be encoded.
func (e *Encoder) Pending() bool {
	return e.currentGroup != nil && !e.currentGroup.Complete
}

// PendingGroupID returns the ID of the group the most recent AddData call
// placed a shard into, or 0 if AddData has never been called.
func (e *Encoder) PendingGroupID() uint64 {
	if e.currentGroup == nil {
		return 0
	}
	return e.currentGroup.GroupID
}

// LastShardIndex returns the shard index the most recent AddData call
// assigned, or -1 if AddData has never been called.
func (e *Encoder) LastShardIndex() int {
	if e.currentGroup == nil {
		return -1
	}
	return e.currentGroup.Count - 1
}

func (e *Encoder) encodeGroup() error {
	maxLen := 0
	for _, shard := range e.currentGroup.DataShards {
		if len(shard) > maxLen {
			maxLen = len(shard)
		}
	}
	for i := range e.currentGroup.DataShards {
		if len(e.currentGroup.DataShards[i]) < maxLen {
			padded := make([]byte, maxLen)
			copy(padded, e.currentGroup.DataShards[i])
			e.currentGroup.DataShards[i] = padded
		}
	}

	e.currentGroup.ParityShards = make([][]byte, e.parityShards)
	for i := range e.currentGroup.ParityShards {
		e.currentGroup.ParityShards[i] = make([]byte, maxLen)
	}

	allShards := append(append([][]byte{}, e.currentGroup.DataShards...), e.currentGroup.ParityShards...)
	if err := e.encoder.Encode(allShards); err != nil {
		return fmt.Errorf("Reed-Solomon encoding failed: %w", err)
	}
	e.currentGroup.ParityShards = allShards[e.dataShards:]
	return nil
}

// Decoder collects shards for in-flight groups and reconstructs missing
// or corrupted data shards once enough shards have arrived.
type Decoder struct {
	dataShards   int
	parityShards int
	encoder      reedsolomon.Encoder

	groups map[uint64]*DecodingGroup

	totalRecovered uint64
	failedRecovery uint64
}

// NewDecoder creates a Decoder for the given shard geometry.
func NewDecoder(config *Config) (*Decoder, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DataShards < 1 || config.DataShards > 256 {
		return nil, fmt.Errorf("fec: invalid data shards %d (must be 1-256)", config.DataShards)
	}
	if config.ParityShards < 0 || config.ParityShards > 256 {
		return nil, fmt.Errorf("fec: invalid parity shards %d (must be 0-256)", config.ParityShards)
	}

	enc, err := reedsolomon.New(config.DataShards, config.ParityShards)
	if err != nil {
		return nil, fmt.Errorf("fec: creating Reed-Solomon encoder: %w", err)
	}

	return &Decoder{
		dataShards:   config.DataShards,
		parityShards: config.ParityShards,
		encoder:      enc,
		groups:       make(map[uint64]*DecodingGroup),
	}, nil
}

// AddShard adds a data or parity shard for groupID. If enough shards have
// arrived to reconstruct the group it returns the reconstructed data
// shards (including the ones that arrived unmodified); otherwise nil.
func (d *Decoder) AddShard(groupID uint64, shardIndex int, data []byte, isParity bool) (recovered [][]byte, err error) {
	group, exists := d.groups[groupID]
	if !exists {
		group = &DecodingGroup{
			GroupID:      groupID,
			DataShards:   make([][]byte, d.dataShards),
			ParityShards: make([][]byte, d.parityShards),
			ReceivedMask: make([]bool, d.dataShards+d.parityShards),
		}
		d.groups[groupID] = group
	}
	if group.Complete {
		return nil, nil
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	var maskIndex int
	if isParity {
		if shardIndex < 0 || shardIndex >= d.parityShards {
			return nil, fmt.Errorf("fec: invalid parity shard index %d", shardIndex)
		}
		group.ParityShards[shardIndex] = dataCopy
		maskIndex = d.dataShards + shardIndex
	} else {
		if shardIndex < 0 || shardIndex >= d.dataShards {
			return nil, fmt.Errorf("fec: invalid data shard index %d", shardIndex)
		}
		group.DataShards[shardIndex] = dataCopy
		maskIndex = shardIndex
	}

	if !group.ReceivedMask[maskIndex] {
		group.ReceivedMask[maskIndex] = true
		group.ReceivedCount++
	}

	if group.ReceivedCount < d.dataShards {
		return nil, nil
	}

	if err := d.reconstructGroup(group); err != nil {
		d.failedRecovery++
		return nil, fmt.Errorf("fec: reconstructing group %d: %w", groupID, err)
	}
	group.Complete = true
	d.totalRecovered += uint64(d.dataShards - group.countReceivedData())
	return group.DataShards, nil
}

func (d *Decoder) reconstructGroup(group *DecodingGroup) error {
	allShards := make([][]byte, d.dataShards+d.parityShards)
	copy(allShards, group.DataShards)
	copy(allShards[d.dataShards:], group.ParityShards)

	// Data shards arrive at their true length, but the encoder zero-padded
	// every shard to the group's longest one; pad the same way so
	// Reed-Solomon sees uniform shard sizes.
	maxLen := 0
	for _, shard := range allShards {
		if len(shard) > maxLen {
			maxLen = len(shard)
		}
	}
	for i, shard := range allShards {
		if shard != nil && len(shard) < maxLen {
			padded := make([]byte, maxLen)
			copy(padded, shard)
			allShards[i] = padded
		}
	}

	if err := d.encoder.Reconstruct(allShards); err != nil {
		return fmt.Errorf("Reed-Solomon reconstruction failed: %w", err)
	}
	ok, err := d.encoder.Verify(allShards)
	if err != nil {
		return fmt.Errorf("verifying reconstruction: %w", err)
	}
	if !ok {
		return fmt.Errorf("reconstruction verification failed")
	}

	for i := 0; i < d.dataShards; i++ {
		if group.DataShards[i] == nil {
			group.DataShards[i] = allShards[i]
		}
	}
	return nil
}

func (group *DecodingGroup) countReceivedData() int {
	count := 0
	for i := 0; i < len(group.DataShards); i++ {
		if group.ReceivedMask[i] {
			count++
		}
	}
	return count
}

// Statistics returns decoder recovery counters.
func (d *Decoder) Statistics() (totalRecovered, failedRecovery uint64) {
	return d.totalRecovered, d.failedRecovery
}

// ShardGeometry returns the configured data/parity shard counts.
func (e *Encoder) ShardGeometry() (dataShards, parityShards int) { return e.dataShards, e.parityShards }

// ShardGeometry returns the configured data/parity shard counts.
func (d *Decoder) ShardGeometry() (dataShards, parityShards int) { return d.dataShards, d.parityShards }
