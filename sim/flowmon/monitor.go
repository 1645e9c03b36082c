// Package flowmon accumulates per-flow packet counters at origination and
// delivery and derives loss, delay, jitter and throughput for groups of flows.
package flowmon

import (
	"github.com/qos-sim/qos-sim/sim/packet"
)

// FlowID numbers flows in the order they were first seen.
type FlowID uint32

// FlowStats holds the raw counters for one flow. All fields only grow.
// Times and delays are in ticks.
type FlowStats struct {
	TxPackets uint64
	RxPackets uint64
	TxBytes   uint64
	RxBytes   uint64
	DelaySum  int64 // sum of one-way delays of received packets
	JitterSum int64 // sum of |delay_i - delay_{i-1}| over consecutive receptions
	LastDelay int64
	FirstTx   int64
	LastTx    int64
	FirstRx   int64
	LastRx    int64
}

// Flow is a monitored flow with its identity and a copy of its counters.
type Flow struct {
	ID       FlowID
	Identity packet.FlowIdentity
	Stats    FlowStats
}

type flowEntry struct {
	id       FlowID
	identity packet.FlowIdentity
	stats    FlowStats
	delays   []int64
}

// Monitor owns the FlowStats of every flow it has seen. It is updated only
// through OnTransmit and OnReceive and read through Snapshot.
type Monitor struct {
	flows map[packet.FlowIdentity]*flowEntry
	order []*flowEntry
	// KeepSamples retains every one-way delay so reports can carry a
	// delay distribution.
	KeepSamples bool
}

// NewMonitor creates an empty monitor that keeps delay samples.
func NewMonitor() *Monitor {
	return &Monitor{
		flows:       make(map[packet.FlowIdentity]*flowEntry),
		KeepSamples: true,
	}
}

func (m *Monitor) entry(flow packet.FlowIdentity) *flowEntry {
	e, ok := m.flows[flow]
	if !ok {
		e = &flowEntry{id: FlowID(len(m.order) + 1), identity: flow}
		m.flows[flow] = e
		m.order = append(m.order, e)
	}
	return e
}

// OnTransmit records a packet of size bytes leaving its origin at now.
func (m *Monitor) OnTransmit(flow packet.FlowIdentity, now int64, bytes int) {
	e := m.entry(flow)
	if e.stats.TxPackets == 0 {
		e.stats.FirstTx = now
	}
	e.stats.TxPackets++
	e.stats.TxBytes += uint64(bytes)
	e.stats.LastTx = now
}

// OnReceive records final delivery at now of a packet that took delay ticks
// one way. Jitter accumulates from the second reception onwards.
func (m *Monitor) OnReceive(flow packet.FlowIdentity, now, delay int64, bytes int) {
	if delay < 0 {
		panic("Monitor.OnReceive: negative delay")
	}
	e := m.entry(flow)
	s := &e.stats
	if s.RxPackets == 0 {
		s.FirstRx = now
	} else {
		d := delay - s.LastDelay
		if d < 0 {
			d = -d
		}
		s.JitterSum += d
	}
	s.RxPackets++
	s.RxBytes += uint64(bytes)
	s.DelaySum += delay
	s.LastDelay = delay
	s.LastRx = now
	if m.KeepSamples {
		e.delays = append(e.delays, delay)
	}
}

// Stats returns a copy of the counters for flow.
func (m *Monitor) Stats(flow packet.FlowIdentity) (FlowStats, bool) {
	e, ok := m.flows[flow]
	if !ok {
		return FlowStats{}, false
	}
	return e.stats, true
}

// Flows returns every flow in first-seen order.
func (m *Monitor) Flows() []Flow {
	out := make([]Flow, len(m.order))
	for i, e := range m.order {
		out[i] = Flow{ID: e.id, Identity: e.identity, Stats: e.stats}
	}
	return out
}

// Len returns the number of flows seen.
func (m *Monitor) Len() int { return len(m.order) }
