package scenario

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/qos-sim/qos-sim/sim"
	"github.com/qos-sim/qos-sim/sim/flowmon"
	"github.com/qos-sim/qos-sim/sim/network"
	"github.com/qos-sim/qos-sim/sim/qdisc"
	"github.com/qos-sim/qos-sim/sim/routing"
	"github.com/qos-sim/qos-sim/sim/trace"
)

// QueueStats is the per-band state of one device's egress queue.
type QueueStats struct {
	Node      string
	Interface int
	Bands     []qdisc.BandStats
}

// PolicyStats is the decision counters of one policy router.
type PolicyStats struct {
	Node  string
	Stats routing.PolicyStats
}

// Result is what a run produced.
type Result struct {
	Scenario string
	Seed     int64
	// Report is the scheduled snapshot. Nil if the run ended before it fired.
	Report    *flowmon.Report
	Flows     []flowmon.Flow
	Drops     map[network.DropReason]uint64
	NodeDrops map[string]map[network.DropReason]uint64
	Queues    []QueueStats
	Policies  []PolicyStats
	Trace     *trace.SimulationTrace
	Summary   *trace.TraceSummary
	EndClock  int64
	Executed  uint64
}

// Run executes the scenario to its duration and collects the results.
// A scenario runs once.
func (s *Scenario) Run() (*Result, error) {
	if s.Sim.Executed > 0 || s.Sim.Clock > 0 {
		return nil, fmt.Errorf("scenario %q has already run", s.Config.Name)
	}
	res := &Result{Scenario: s.Config.Name, Seed: s.Seed}

	at := sim.Ticks(s.Config.Snapshot.At)
	if at == 0 {
		at = s.Sim.Horizon
	}
	opts := flowmon.SnapshotOptions{Window: s.window, AvgPacketSizeBytes: s.Config.Snapshot.AvgPacketSize}
	s.Monitor.ScheduleSnapshot(s.Sim, at, s.Groups, opts, func(r flowmon.Report) {
		res.Report = &r
	})

	s.Sim.Run()
	logrus.Infof("scenario %s: finished at %s after %d events", s.Config.Name, sim.FormatTicks(s.Sim.Clock), s.Sim.Executed)

	res.EndClock = s.Sim.Clock
	res.Executed = s.Sim.Executed
	res.Flows = s.Monitor.Flows()
	res.Drops = s.Network.Drops()
	res.NodeDrops = make(map[string]map[network.DropReason]uint64)
	for _, n := range s.Network.Nodes() {
		st := n.Stack().Stats()
		if len(st.Drops) > 0 {
			res.NodeDrops[n.Name()] = st.Drops
		}
		for _, d := range n.Devices() {
			res.Queues = append(res.Queues, QueueStats{
				Node:      n.Name(),
				Interface: d.Interface(),
				Bands:     d.QueueDisc().BandStats(),
			})
		}
	}
	for _, p := range s.Policies {
		res.Policies = append(res.Policies, PolicyStats{Node: p.Node, Stats: p.Router.Stats()})
	}
	if s.Trace != nil {
		res.Trace = s.Trace
		res.Summary = trace.Summarize(s.Trace)
	}
	return res, nil
}
