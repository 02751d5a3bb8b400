// Package simulator wires the packet codec, event scheduler, channel,
// sender, and receiver into a runnable driver (C6/C7): it seeds
// application traffic, drains events until a horizon, and returns the
// accumulated statistics. Grounded on the driver loop shape of
// original_source/gbn.py's run_simulation and abp.py's NetworkSimulator.run,
// rebuilt as a Go value instead of module-level globals (Design Note:
// "global mutable state... must be encapsulated inside a Simulator value").
package simulator

import (
	"math/rand"

	"github.com/aetherflow/quantumsim/internal/eventqueue"
	"github.com/aetherflow/quantumsim/internal/fec"
	"github.com/aetherflow/quantumsim/internal/netchannel"
	"github.com/aetherflow/quantumsim/internal/rdtproto"
	"github.com/aetherflow/quantumsim/internal/receiver"
	"github.com/aetherflow/quantumsim/internal/sender"
	"github.com/aetherflow/quantumsim/internal/tracing"
	"github.com/aetherflow/quantumsim/pkg/rdtstats"
)

// Protocol selects which sliding-window discipline the sender/receiver
// pair runs.
type Protocol int

const (
	// ABP is the alternating-bit protocol: window_size=1, 0/1-indexed
	// sequence space.
	ABP Protocol = iota
	// GBN is Go-Back-N with a configurable window and a 1-indexed
	// sequence space.
	GBN
)

// Config configures one simulation run. Zero BufSize, InitialRTO, RTOMin,
// RTOMax and BackoffCap fall back to the sender's defaults, and zero FEC
// shard counts to internal/fec's defaults; every other field, including
// the channel parameters and WindowSize, is used as given. Default returns
// a fully populated configuration.
type Config struct {
	Protocol   Protocol
	WindowSize uint32 // ignored for ABP, forced to 1

	MaxPayload int // informational; internal/rdtproto.MaxPayload is the real constant
	BufSize    uint32

	InitialRTO    float64
	RTOMin        float64
	RTOMax        float64
	BackoffCap    float64
	OverflowLimit int

	LossProb    float64
	CorruptProb float64
	LatencyMin  float64
	LatencyMax  float64

	RNGSeed int64

	FECEnabled      bool
	FECDataShards   int
	FECParityShards int

	Traffic TrafficSource
}

// Default returns the spec's default GBN configuration (window 8).
func Default() Config {
	return Config{
		Protocol:    GBN,
		WindowSize:  8,
		BufSize:     64,
		InitialRTO:  15,
		RTOMin:      1,
		RTOMax:      120,
		BackoffCap:  64,
		LossProb:    0.2,
		CorruptProb: 0.01,
		LatencyMin:  5,
		LatencyMax:  15,
	}
}

// Simulator owns one run's scheduler, channel, sender, and receiver. It is
// not safe for concurrent use: callers run one simulation per goroutine if
// they want parallel runs, each with its own Simulator.
type Simulator struct {
	cfg Config
	q   *eventqueue.Queue
	ch  *netchannel.Channel
	snd *sender.Sender
	rcv *receiver.Receiver

	stats *rdtstats.Stats
	hook  tracing.Hook

	delivered [][]byte
}

// New builds a Simulator ready to run. deliverUp, if non-nil, is invoked
// for every in-order payload the receiver produces, in order; it may be
// nil if the caller only wants DeliveredMessages() after Run.
func New(cfg Config, deliverUp func([]byte), hook tracing.Hook) *Simulator {
	if hook == nil {
		hook = tracing.NopHook{}
	}

	q := eventqueue.New()
	rng := rand.New(rand.NewSource(cfg.RNGSeed))
	stats := &rdtstats.Stats{}

	chCfg := netchannel.Config{
		LossProb:    cfg.LossProb,
		CorruptProb: cfg.CorruptProb,
		LatencyMin:  cfg.LatencyMin,
		LatencyMax:  cfg.LatencyMax,
	}
	ch := netchannel.New(chCfg, q, rng, hook).WithStats(stats)

	sndCfg := senderConfigFrom(cfg)
	snd := sender.New(sndCfg, q, ch, stats, hook)

	sim := &Simulator{cfg: cfg, q: q, ch: ch, snd: snd, stats: stats, hook: hook}

	sim.rcv = receiver.New(sndCfg.StartSeq, func(payload []byte) {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		sim.delivered = append(sim.delivered, cp)
		if deliverUp != nil {
			deliverUp(cp)
		}
	}, q, ch, stats, hook)

	if cfg.FECEnabled {
		fcfg := &fec.Config{DataShards: cfg.FECDataShards, ParityShards: cfg.FECParityShards}
		if fcfg.DataShards == 0 {
			fcfg.DataShards = fec.DefaultDataShards
		}
		if fcfg.ParityShards == 0 {
			fcfg.ParityShards = fec.DefaultParityShards
		}
		enc, err := fec.NewEncoder(fcfg)
		if err != nil {
			panic(err)
		}
		dec, err := fec.NewDecoder(fcfg)
		if err != nil {
			panic(err)
		}
		snd.WithFEC(enc)
		sim.rcv.WithFEC(dec)
	}

	return sim
}

func senderConfigFrom(cfg Config) sender.Config {
	var sc sender.Config
	if cfg.Protocol == ABP {
		sc = sender.DefaultABPConfig()
	} else {
		sc = sender.DefaultGBNConfig(cfg.WindowSize)
	}
	if cfg.BufSize > 0 {
		sc.BufSize = cfg.BufSize
	}
	if cfg.InitialRTO > 0 {
		sc.InitialRTO = cfg.InitialRTO
	}
	if cfg.RTOMin > 0 {
		sc.RTOMin = cfg.RTOMin
	}
	if cfg.RTOMax > 0 {
		sc.RTOMax = cfg.RTOMax
	}
	if cfg.BackoffCap > 0 {
		sc.BackoffCap = cfg.BackoffCap
	}
	sc.OverflowLimit = cfg.OverflowLimit
	return sc
}

// EnqueueMessage hands an application message to the sender, fragmenting
// and buffering it per spec 4.4.1.
func (s *Simulator) EnqueueMessage(msg []byte) error {
	return s.snd.EnqueueMessage(msg)
}

// DeliveredMessages returns every payload the receiver has delivered so
// far, in delivery order.
func (s *Simulator) DeliveredMessages() [][]byte {
	return s.delivered
}

// Stats returns the live statistics counters. Safe to call mid-run.
func (s *Simulator) Stats() *rdtstats.Stats {
	return s.stats
}

// Run drains the scheduler, dispatching each event to the owning state
// machine, until the queue empties or the logical clock reaches horizon.
// If cfg.Traffic was set, its scheduled sends are seeded before the loop
// starts.
func (s *Simulator) Run(horizon float64) *rdtstats.Stats {
	if s.cfg.Traffic != nil {
		s.cfg.Traffic.Seed(s.q)
	}

	for s.q.Len() > 0 {
		ev, ok := s.q.Pop()
		if !ok {
			break
		}
		if ev.Time > horizon {
			break
		}
		s.dispatch(ev)
	}

	return s.stats
}

func (s *Simulator) dispatch(ev eventqueue.Event) {
	switch ev.Kind {
	case eventqueue.AppSend:
		msg, _ := ev.Data.([]byte)
		_ = s.snd.EnqueueMessage(msg)
	case eventqueue.Timeout:
		s.snd.Timeout()
	case eventqueue.Arrival:
		p := ev.Data.(*rdtproto.Packet)
		s.dispatchArrival(ev.Target, p)
	}
}

func (s *Simulator) dispatchArrival(target eventqueue.Endpoint, p *rdtproto.Packet) {
	if target == eventqueue.EndpointA {
		s.snd.HandleAck(p)
		return
	}
	if p.FEC != nil && p.FEC.IsParity {
		s.rcv.HandleParityShard(p)
		return
	}
	s.rcv.HandlePacket(p)
}
