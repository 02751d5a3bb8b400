// Package netchannel implements the lossy link between A and B: a packet
// handed to Send either arrives intact, arrives corrupted, or never
// arrives at all, after a sampled latency. It is the Go translation of the
// source simulator's UnreliableChannelSimulator, rebuilt on top of
// internal/eventqueue instead of a hand-rolled event list.
//
// Channel has no opinion about what a packet means: FEC shard packets,
// data packets and ACKs all cross it the same way. internal/sender and
// internal/receiver are responsible for building and interpreting shard
// packets when FEC is enabled.
package netchannel

import (
	"math/rand"

	"github.com/aetherflow/quantumsim/internal/eventqueue"
	"github.com/aetherflow/quantumsim/internal/rdtproto"
	"github.com/aetherflow/quantumsim/internal/tracing"
	"github.com/aetherflow/quantumsim/pkg/rdtstats"
)

// Config describes the channel's loss model.
type Config struct {
	// LossProb is the probability a packet never arrives.
	LossProb float64
	// CorruptProb is the probability a packet that does arrive is corrupted.
	CorruptProb float64
	// LatencyMin and LatencyMax bound the uniform latency distribution.
	LatencyMin float64
	LatencyMax float64
}

// DefaultConfig matches the source's lossy-but-usable default parameters.
func DefaultConfig() Config {
	return Config{
		LossProb:    0.1,
		CorruptProb: 0.1,
		LatencyMin:  5.0,
		LatencyMax:  15.0,
	}
}

// Channel carries packets from one endpoint to the other, corrupting or
// dropping them according to Config, and scheduling the survivors as
// Arrival events on q.
type Channel struct {
	cfg   Config
	q     *eventqueue.Queue
	rng   *rand.Rand
	hook  tracing.Hook
	stats *rdtstats.Stats
}

// New creates a Channel. rng must be seeded by the caller for deterministic
// runs; hook receives tracing events for every packet outcome. Loss is not
// counted until stats are attached with WithStats (isolated unit tests
// leave them off).
func New(cfg Config, q *eventqueue.Queue, rng *rand.Rand, hook tracing.Hook) *Channel {
	if hook == nil {
		hook = tracing.NopHook{}
	}
	return &Channel{cfg: cfg, q: q, rng: rng, hook: hook}
}

// WithStats attaches stats so the channel can record packets_lost; it
// returns the channel for chaining.
func (c *Channel) WithStats(stats *rdtstats.Stats) *Channel {
	c.stats = stats
	return c
}

// sample draws the latency for one packet traversal.
func (c *Channel) sample() float64 {
	span := c.cfg.LatencyMax - c.cfg.LatencyMin
	if span <= 0 {
		return c.cfg.LatencyMin
	}
	return c.cfg.LatencyMin + c.rng.Float64()*span
}

// Send carries pkt from "from" to the opposite endpoint. It schedules at
// most one Arrival event: a clean copy, a corrupted copy, or nothing if the
// channel drops the packet.
func (c *Channel) Send(from eventqueue.Endpoint, pkt *rdtproto.Packet) {
	to := peer(from)
	latency := c.sample()

	if c.rng.Float64() < c.cfg.LossProb {
		if c.stats != nil {
			c.stats.RecordLost()
		}
		c.hook.OnEvent(tracing.Event{Time: c.q.Now(), Kind: "CHANNEL_LOSS", Target: to.String(), Detail: pkt.String()})
		return
	}

	delivered := pkt.Clone()
	if c.rng.Float64() < c.cfg.CorruptProb {
		delivered = delivered.Corrupt()
		c.hook.OnEvent(tracing.Event{Time: c.q.Now(), Kind: "CHANNEL_CORRUPT", Target: to.String(), Detail: delivered.String()})
	}

	c.q.Schedule(latency, eventqueue.Arrival, to, delivered)
	c.hook.OnEvent(tracing.Event{Time: c.q.Now(), Kind: "CHANNEL_SEND", Target: to.String(), Detail: delivered.String()})
}

func peer(e eventqueue.Endpoint) eventqueue.Endpoint {
	if e == eventqueue.EndpointA {
		return eventqueue.EndpointB
	}
	return eventqueue.EndpointA
}
