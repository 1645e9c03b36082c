package flowmon

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qos-sim/qos-sim/sim"
)

// SnapshotOptions controls how rates are derived.
type SnapshotOptions struct {
	// Window is the active measurement window used for throughput,
	// excluding ramp-up and ramp-down. Zero leaves throughput at 0.
	Window time.Duration
	// AvgPacketSizeBytes, when non-zero, replaces observed received bytes
	// in the throughput computation: rx packets x size.
	AvgPacketSizeBytes int
}

// GroupReport aggregates the flows matched by one Group.
type GroupReport struct {
	Group          string
	Flows          int
	TxPackets      uint64
	RxPackets      uint64
	RxBytes        uint64
	LossPercent    float64
	AvgDelayMs     float64
	AvgJitterMs    float64
	ThroughputMbps float64
	Delay          Distribution // per-packet one-way delay in ms
}

// Report is the outcome of one snapshot. Groups that received no packets
// are absent.
type Report struct {
	At     int64 // simulated time of the snapshot, in ticks
	Window time.Duration
	Groups []GroupReport
}

// Group returns the report for name, if present.
func (r Report) Group(name string) (GroupReport, bool) {
	for _, g := range r.Groups {
		if g.Group == name {
			return g, true
		}
	}
	return GroupReport{}, false
}

// Snapshot aggregates the current counters per group. A flow matching several
// groups counts in each. It reads counters and never modifies them.
func (m *Monitor) Snapshot(groups []Group, opts SnapshotOptions) Report {
	report := Report{Window: opts.Window}
	for _, g := range groups {
		var agg FlowStats
		var samples []int64
		flows := 0
		for _, e := range m.order {
			if g.Match != nil && !g.Match(e.identity) {
				continue
			}
			flows++
			agg.TxPackets += e.stats.TxPackets
			agg.RxPackets += e.stats.RxPackets
			agg.TxBytes += e.stats.TxBytes
			agg.RxBytes += e.stats.RxBytes
			agg.DelaySum += e.stats.DelaySum
			agg.JitterSum += e.stats.JitterSum
			samples = append(samples, e.delays...)
		}
		if agg.TxPackets == 0 || agg.RxPackets == 0 {
			logrus.Debugf("flowmon: group %q has no traffic, omitted", g.Name)
			continue
		}
		report.Groups = append(report.Groups, groupReport(g.Name, flows, agg, samples, opts))
	}
	return report
}

func groupReport(name string, flows int, s FlowStats, samples []int64, opts SnapshotOptions) GroupReport {
	rx := float64(s.RxPackets)
	loss := float64(int64(s.TxPackets)-int64(s.RxPackets)) / float64(s.TxPackets) * 100
	if loss < 0 {
		loss = 0
	}
	gr := GroupReport{
		Group:       name,
		Flows:       flows,
		TxPackets:   s.TxPackets,
		RxPackets:   s.RxPackets,
		RxBytes:     s.RxBytes,
		LossPercent: loss,
		AvgDelayMs:  ticksToMs(s.DelaySum) / rx,
		AvgJitterMs: ticksToMs(s.JitterSum) / rx,
		Delay:       summarizeDelays(samples),
	}
	if opts.Window > 0 {
		bits := float64(s.RxBytes) * 8
		if opts.AvgPacketSizeBytes > 0 {
			bits = rx * float64(opts.AvgPacketSizeBytes) * 8
		}
		gr.ThroughputMbps = bits / opts.Window.Seconds() / 1e6
	}
	return gr
}

// ScheduleSnapshot registers a one-shot snapshot at simulated time at. fn
// receives the report when the event fires; cancel the returned timer to
// abandon it.
func (m *Monitor) ScheduleSnapshot(s *sim.Simulator, at int64, groups []Group, opts SnapshotOptions, fn func(Report)) *sim.Timer {
	if fn == nil {
		panic("ScheduleSnapshot: fn must not be nil")
	}
	return s.At(at, func(s *sim.Simulator) {
		r := m.Snapshot(groups, opts)
		r.At = s.Now()
		logrus.Debugf("[%s] flowmon: snapshot of %d group(s)", sim.FormatTicks(s.Now()), len(r.Groups))
		fn(r)
	})
}

func ticksToMs(t int64) float64 {
	return float64(t) / float64(sim.Millisecond)
}
