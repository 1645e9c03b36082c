package network

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qos-sim/qos-sim/sim"
	"github.com/qos-sim/qos-sim/sim/qdisc"
)

// LinkConfig describes a point-to-point link.
type LinkConfig struct {
	RateBps int64
	Delay   time.Duration
	// Prefix is the link subnet; the first host goes to the first node and
	// the second host to the other. Zero draws a subnet from the pool.
	Prefix netip.Prefix
	// Queue configures the egress queue of both devices.
	Queue qdisc.Config
}

// Link joins two devices.
type Link struct {
	id      int
	a, b    *Device
	rateBps int64
	delay   int64
	prefix  netip.Prefix
}

// ID returns the link index in creation order.
func (l *Link) ID() int { return l.id }

// Ends returns both devices, in the order the nodes were passed to Connect.
func (l *Link) Ends() (*Device, *Device) { return l.a, l.b }

// RateBps returns the link rate in bits per second.
func (l *Link) RateBps() int64 { return l.rateBps }

// Delay returns the one-way propagation delay in ticks.
func (l *Link) Delay() int64 { return l.delay }

// Prefix returns the link subnet.
func (l *Link) Prefix() netip.Prefix { return l.prefix }

func (l *Link) String() string {
	return fmt.Sprintf("%s <-> %s (%s, %v, %d bps)", l.a, l.b, l.prefix, sim.Duration(l.delay), l.rateBps)
}

// Connect creates a point-to-point link between a and b, assigns addresses
// from the link prefix and installs the connected route on both nodes.
func (n *Network) Connect(a, b *Node, cfg LinkConfig) (*Link, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("connect: nodes must not be nil")
	}
	if a == b {
		return nil, fmt.Errorf("connect: node %q cannot link to itself", a.name)
	}
	if cfg.RateBps <= 0 {
		return nil, fmt.Errorf("connect %s-%s: rate must be positive", a.name, b.name)
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("connect %s-%s: delay must not be negative", a.name, b.name)
	}
	if cfg.Queue.BandCapacity == 0 {
		cfg.Queue.BandCapacity = qdisc.DefaultBandCapacity
	}
	if !qdisc.IsValidQueueDisc(cfg.Queue.Kind) {
		return nil, fmt.Errorf("connect %s-%s: unknown queue discipline %q; valid: %v",
			a.name, b.name, cfg.Queue.Kind, qdisc.ValidQueueDiscNames())
	}

	prefix := cfg.Prefix
	if prefix.IsValid() {
		n.addrs.Reserve(prefix)
	} else {
		var err error
		if prefix, err = n.addrs.Next(); err != nil {
			return nil, fmt.Errorf("connect %s-%s: %w", a.name, b.name, err)
		}
	}
	prefix = prefix.Masked()
	for _, l := range n.links {
		if l.prefix.Overlaps(prefix) {
			return nil, fmt.Errorf("connect %s-%s: prefix %v overlaps link %s", a.name, b.name, prefix, l)
		}
	}
	addrA, addrB, err := hostAddresses(prefix)
	if err != nil {
		return nil, fmt.Errorf("connect %s-%s: %w", a.name, b.name, err)
	}

	l := &Link{id: len(n.links), rateBps: cfg.RateBps, delay: sim.Ticks(cfg.Delay), prefix: prefix}
	l.a = &Device{node: a, addr: addrA, link: l, queue: qdisc.New(cfg.Queue)}
	l.b = &Device{node: b, addr: addrB, link: l, queue: qdisc.New(cfg.Queue)}
	l.a.peer, l.b.peer = l.b, l.a
	a.addDevice(l.a)
	b.addDevice(l.b)
	for _, d := range []*Device{l.a, l.b} {
		if err := d.node.stack.addInterface(d); err != nil {
			return nil, fmt.Errorf("connect %s-%s: %w", a.name, b.name, err)
		}
	}
	n.links = append(n.links, l)
	logrus.Debugf("network: link %s", l)
	return l, nil
}
