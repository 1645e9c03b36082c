// Package traffic generates application packets on network nodes: an on/off
// source, constant-bit-rate or with random gaps, and a counting sink.
package traffic

import (
	"fmt"
	"math/rand"
	"net/netip"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/qos-sim/qos-sim/sim"
	"github.com/qos-sim/qos-sim/sim/network"
	"github.com/qos-sim/qos-sim/sim/packet"
)

// Period distributions for on and off durations.
const (
	PeriodConstant    = "constant"
	PeriodExponential = "exponential"
)

// OnOffConfig describes an on/off constant-bit-rate source. During an on
// period packets of PacketSize payload bytes leave at RateBps (payload bits);
// during an off period nothing is sent.
type OnOffConfig struct {
	Name       string
	Dst        netip.AddrPort
	Marking    packet.Marking
	PacketSize int
	RateBps    int64
	// SrcPort zero allocates an ephemeral port on the sending node.
	SrcPort uint16

	Start time.Duration
	Stop  time.Duration
	// StartJitter delays the start by a uniform draw in [0, StartJitter].
	StartJitter time.Duration

	// OnTime zero means the source never pauses.
	OnTime  time.Duration
	OffTime time.Duration
	// Periods is PeriodConstant (default) or PeriodExponential, in which
	// case OnTime and OffTime are means.
	Periods string

	// Arrival is the packet process inside an on period, ArrivalCBR by
	// default. Random processes keep RateBps as the mean rate.
	Arrival string
	// CV is the coefficient of variation of gamma and weibull gaps.
	CV float64
}

// Validate checks the configuration for values the source cannot run with.
func (c OnOffConfig) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("application name must not be empty")
	case !c.Dst.IsValid() || !c.Dst.Addr().Is4():
		return fmt.Errorf("application %q: destination %v must be an IPv4 address and port", c.Name, c.Dst)
	case c.PacketSize <= 0 || c.PacketSize > packet.MaxPayload:
		return fmt.Errorf("application %q: packet size %d out of range (1..%d)", c.Name, c.PacketSize, packet.MaxPayload)
	case c.RateBps <= 0:
		return fmt.Errorf("application %q: rate must be positive", c.Name)
	case c.Start < 0 || c.StartJitter < 0 || c.OnTime < 0 || c.OffTime < 0:
		return fmt.Errorf("application %q: times must not be negative", c.Name)
	case c.Stop <= c.Start:
		return fmt.Errorf("application %q: stop %v must be after start %v", c.Name, c.Stop, c.Start)
	case c.Periods != "" && c.Periods != PeriodConstant && c.Periods != PeriodExponential:
		return fmt.Errorf("application %q: unknown period distribution %q", c.Name, c.Periods)
	case !IsValidArrival(c.Arrival):
		return fmt.Errorf("application %q: unknown arrival process %q", c.Name, c.Arrival)
	case c.CV < 0:
		return fmt.Errorf("application %q: cv must not be negative", c.Name)
	}
	return nil
}

// OnOff is a running on/off source bound to one node.
type OnOff struct {
	cfg     OnOffConfig
	node    *network.Node
	rng     *rand.Rand
	limiter *rate.Limiter
	gaps    GapSampler
	flow    packet.FlowIdentity

	next    *sim.Timer
	onUntil int64
	stopAt  int64
	sent    uint64
	bytes   uint64
}

// NewOnOff prepares a source on node. rng draws start jitter, exponential
// on and off durations and random packet gaps. Nothing is scheduled until
// Install.
func NewOnOff(node *network.Node, cfg OnOffConfig, rng *rand.Rand) (*OnOff, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("application %q: node must not be nil", cfg.Name)
	}
	if rng == nil {
		return nil, fmt.Errorf("application %q: rng must not be nil", cfg.Name)
	}
	src := node.Address()
	if !src.IsValid() {
		return nil, fmt.Errorf("application %q: node %s has no address", cfg.Name, node.Name())
	}
	port := cfg.SrcPort
	if port == 0 {
		port = node.Stack().AllocatePort()
	}
	// tokens are payload bytes; the bucket holds exactly one packet
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RateBps)/8), cfg.PacketSize)
	meanGap := float64(cfg.PacketSize) * 8 * float64(sim.Second) / float64(cfg.RateBps)
	gaps, err := NewGapSampler(cfg.Arrival, cfg.CV, meanGap)
	if err != nil {
		return nil, fmt.Errorf("application %q: %w", cfg.Name, err)
	}
	return &OnOff{
		cfg:     cfg,
		node:    node,
		rng:     rng,
		limiter: limiter,
		gaps:    gaps,
		flow: packet.FlowIdentity{
			Src:      src,
			Dst:      cfg.Dst.Addr(),
			SrcPort:  port,
			DstPort:  cfg.Dst.Port(),
			Protocol: packet.ProtocolUDP,
		},
	}, nil
}

// Flow returns the identity of the packets the source emits.
func (a *OnOff) Flow() packet.FlowIdentity { return a.flow }

// Sent returns the number of packets and payload bytes emitted so far.
func (a *OnOff) Sent() (packets, bytes uint64) { return a.sent, a.bytes }

// Install schedules the start and stop of the source on the node's simulator.
func (a *OnOff) Install() {
	s := a.node.Network().Sim()
	start := sim.Ticks(a.cfg.Start)
	if a.cfg.StartJitter > 0 {
		start += a.rng.Int63n(sim.Ticks(a.cfg.StartJitter) + 1)
	}
	a.stopAt = sim.Ticks(a.cfg.Stop)
	if start >= a.stopAt {
		logrus.Warnf("traffic: %s starts at or after its stop time, never sends", a.cfg.Name)
		return
	}
	s.At(start, a.startOn)
	s.At(a.stopAt, func(*sim.Simulator) { a.halt() })
}

func (a *OnOff) startOn(s *sim.Simulator) {
	now := s.Now()
	if now >= a.stopAt {
		return
	}
	a.onUntil = -1
	if a.cfg.OnTime > 0 {
		a.onUntil = now + a.period(a.cfg.OnTime)
	}
	logrus.Debugf("[%s] traffic: %s on", sim.FormatTicks(now), a.cfg.Name)
	a.emit(s)
}

// emit schedules the next send: a random gap, or the next slot reserved
// from the token bucket.
func (a *OnOff) emit(s *sim.Simulator) {
	if a.gaps != nil {
		a.next = s.After(a.gaps.SampleGap(a.rng), a.send)
		return
	}
	now := s.Now()
	r := a.limiter.ReserveN(sim.WallTime(now), a.cfg.PacketSize)
	if !r.OK() {
		panic(fmt.Sprintf("traffic: %s: packet larger than bucket", a.cfg.Name))
	}
	a.next = s.After(sim.Ticks(r.DelayFrom(sim.WallTime(now))), a.send)
}

// send emits one packet in its reserved slot, unless the on period is over.
func (a *OnOff) send(s *sim.Simulator) {
	now := s.Now()
	if now >= a.stopAt {
		return
	}
	if a.onUntil >= 0 && now >= a.onUntil {
		a.startOff(s)
		return
	}
	p := packet.New(a.node.Network().NewPacketID(), a.flow, a.cfg.Marking, a.cfg.PacketSize, now)
	a.sent++
	a.bytes += uint64(a.cfg.PacketSize)
	a.node.Stack().Send(p)
	a.emit(s)
}

func (a *OnOff) startOff(s *sim.Simulator) {
	off := a.period(a.cfg.OffTime)
	logrus.Debugf("[%s] traffic: %s off for %v", sim.FormatTicks(s.Now()), a.cfg.Name, sim.Duration(off))
	a.next = s.After(off, a.startOn)
}

func (a *OnOff) halt() {
	if a.next != nil {
		a.next.Cancel()
		a.next = nil
	}
	logrus.Debugf("traffic: %s stopped after %d packets", a.cfg.Name, a.sent)
}

func (a *OnOff) period(mean time.Duration) int64 {
	if a.cfg.Periods == PeriodExponential {
		d := int64(a.rng.ExpFloat64() * float64(mean))
		if d < 1 {
			return 1
		}
		return d
	}
	return sim.Ticks(mean)
}
