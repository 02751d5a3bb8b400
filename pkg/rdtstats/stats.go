// Package rdtstats collects the counters a simulation run reports at the
// end of its horizon: the same measurements original_source's NetworkSimulator
// printed from get_sim_time()/Simulator.statistics, gathered here into a
// struct tests and callers can assert on directly instead of parsing text.
package rdtstats

import "fmt"

// Stats accumulates counters over one Simulator.Run call.
type Stats struct {
	PacketsSent          uint64
	PacketsRetransmitted uint64
	PacketsReceived      uint64
	PacketsDelivered     uint64
	PacketsCorrupted     uint64
	PacketsLost          uint64
	PacketsOutOfOrder    uint64
	Timeouts             uint64

	// RTTSamples holds every RTT observation Karn's algorithm allowed
	// (i.e. excluding retransmitted segments), in the order they were
	// taken.
	RTTSamples []float64

	// MessageSizes holds the byte length of every application message
	// EnqueueMessage was called with, in submission order.
	MessageSizes []int
}

// RecordSent increments the sent counter, and the retransmitted counter too
// when isRetransmit is true.
func (s *Stats) RecordSent(isRetransmit bool) {
	s.PacketsSent++
	if isRetransmit {
		s.PacketsRetransmitted++
	}
}

// RecordReceived increments the received counter.
func (s *Stats) RecordReceived() {
	s.PacketsReceived++
}

// RecordCorrupted increments the corrupted-packet counter.
func (s *Stats) RecordCorrupted() {
	s.PacketsCorrupted++
}

// RecordLost increments the lost-packet counter.
func (s *Stats) RecordLost() {
	s.PacketsLost++
}

// RecordOutOfOrder increments the out-of-order counter.
func (s *Stats) RecordOutOfOrder() {
	s.PacketsOutOfOrder++
}

// RecordDelivered increments the delivered-to-application counter.
func (s *Stats) RecordDelivered() {
	s.PacketsDelivered++
}

// RecordTimeout increments the timeout counter.
func (s *Stats) RecordTimeout() {
	s.Timeouts++
}

// RecordRTTSample appends an RTT observation, subject to Karn's algorithm
// being applied by the caller before calling this (retransmitted segments
// must never reach here).
func (s *Stats) RecordRTTSample(sample float64) {
	s.RTTSamples = append(s.RTTSamples, sample)
}

// RecordMessage appends the size of a submitted application message.
func (s *Stats) RecordMessage(size int) {
	s.MessageSizes = append(s.MessageSizes, size)
}

// MeanRTT returns the arithmetic mean of all recorded RTT samples, or 0 if
// none were taken.
func (s *Stats) MeanRTT() float64 {
	if len(s.RTTSamples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.RTTSamples {
		sum += v
	}
	return sum / float64(len(s.RTTSamples))
}

// String renders a human-readable summary, mirroring the shape of
// original_source's end-of-run statistics printout.
func (s *Stats) String() string {
	return fmt.Sprintf(
		"sent=%d retransmitted=%d received=%d delivered=%d corrupted=%d lost=%d out_of_order=%d timeouts=%d mean_rtt=%.3f",
		s.PacketsSent, s.PacketsRetransmitted, s.PacketsReceived, s.PacketsDelivered,
		s.PacketsCorrupted, s.PacketsLost, s.PacketsOutOfOrder, s.Timeouts, s.MeanRTT(),
	)
}
