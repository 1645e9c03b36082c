// Package report renders and persists the results of a scenario run.
//
// Three sinks are provided: human-readable tables (Print), a SQLite store
// for comparing runs (Store), and a Prometheus textfile (WriteMetrics).
// All of them read a *scenario.Result and never modify it.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/qos-sim/qos-sim/sim"
	"github.com/qos-sim/qos-sim/sim/network"
	"github.com/qos-sim/qos-sim/sim/scenario"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// Print writes every section of the result to w.
func Print(w io.Writer, res *scenario.Result) {
	fmt.Fprintf(w, "=== Scenario %s (seed %d) ===\n", res.Scenario, res.Seed)
	fmt.Fprintf(w, "Simulated time : %s\n", sim.FormatTicks(res.EndClock))
	fmt.Fprintf(w, "Events executed: %d\n", res.Executed)
	fmt.Fprintln(w)
	PrintGroups(w, res)
	fmt.Fprintln(w)
	PrintFlows(w, res)
	if len(res.Policies) > 0 {
		fmt.Fprintln(w)
		PrintPolicies(w, res)
	}
	fmt.Fprintln(w)
	PrintQueues(w, res)
	fmt.Fprintln(w)
	PrintDrops(w, res)
	if res.Summary != nil {
		fmt.Fprintln(w)
		PrintTraceSummary(w, res)
	}
}

// PrintGroups writes the flow-group snapshot.
func PrintGroups(w io.Writer, res *scenario.Result) {
	if res.Report == nil {
		fmt.Fprintln(w, "--- Flow groups: no snapshot taken ---")
		return
	}
	fmt.Fprintf(w, "--- Flow groups at %s (window %s) ---\n", sim.FormatTicks(res.Report.At), res.Report.Window)
	if len(res.Report.Groups) == 0 {
		fmt.Fprintln(w, "no group received traffic")
		return
	}
	table := newTable(w, []string{"GROUP", "FLOWS", "TX", "RX", "LOSS %", "DELAY ms", "P99 ms", "JITTER ms", "THROUGHPUT Mbps"})
	for _, g := range res.Report.Groups {
		table.Append([]string{
			g.Group,
			strconv.Itoa(g.Flows),
			u64(g.TxPackets),
			u64(g.RxPackets),
			f2(g.LossPercent),
			f2(g.AvgDelayMs),
			f2(g.Delay.P99),
			f2(g.AvgJitterMs),
			f2(g.ThroughputMbps),
		})
	}
	table.Render()
}

// PrintFlows writes the per-flow counters in first-seen order.
func PrintFlows(w io.Writer, res *scenario.Result) {
	fmt.Fprintln(w, "--- Flows ---")
	table := newTable(w, []string{"ID", "FLOW", "TX", "RX", "TX BYTES", "RX BYTES", "DELAY ms", "JITTER ms"})
	for _, f := range res.Flows {
		delay, jitter := "-", "-"
		if rx := float64(f.Stats.RxPackets); rx > 0 {
			delay = f2(float64(f.Stats.DelaySum) / rx / 1e6)
			jitter = f2(float64(f.Stats.JitterSum) / rx / 1e6)
		}
		table.Append([]string{
			strconv.Itoa(int(f.ID)),
			f.Identity.String(),
			u64(f.Stats.TxPackets),
			u64(f.Stats.RxPackets),
			u64(f.Stats.TxBytes),
			u64(f.Stats.RxBytes),
			delay,
			jitter,
		})
	}
	table.Render()
}

// PrintPolicies writes the decision counters of every policy router.
func PrintPolicies(w io.Writer, res *scenario.Result) {
	fmt.Fprintln(w, "--- Policy routing ---")
	table := newTable(w, []string{"NODE", "DECISIONS", "RULE HITS", "FALLBACK", "TRANSIT", "FAILURES"})
	for _, p := range res.Policies {
		var hits uint64
		for _, n := range p.Stats.RuleHits {
			hits += n
		}
		table.Append([]string{
			p.Node,
			u64(p.Stats.Decisions),
			u64(hits),
			u64(p.Stats.Fallbacks),
			u64(p.Stats.Transit),
			u64(p.Stats.Failures),
		})
	}
	table.Render()
}

// PrintQueues writes the per-band stats of every device that saw traffic.
func PrintQueues(w io.Writer, res *scenario.Result) {
	fmt.Fprintln(w, "--- Queues ---")
	table := newTable(w, []string{"DEVICE", "BAND", "ENQUEUED", "DEQUEUED", "DROPPED", "PEAK"})
	for _, q := range res.Queues {
		for band, b := range q.Bands {
			if b.Enqueued == 0 && b.Dropped == 0 {
				continue
			}
			table.Append([]string{
				fmt.Sprintf("%s/if%d", q.Node, q.Interface),
				strconv.Itoa(band),
				u64(b.Enqueued),
				u64(b.Dequeued),
				u64(b.Dropped),
				strconv.Itoa(b.Peak),
			})
		}
	}
	table.Render()
}

// PrintDrops writes drop counters per node and reason.
func PrintDrops(w io.Writer, res *scenario.Result) {
	fmt.Fprintln(w, "--- Drops ---")
	if len(res.NodeDrops) == 0 {
		fmt.Fprintln(w, "none")
		return
	}
	nodes := make([]string, 0, len(res.NodeDrops))
	for n := range res.NodeDrops {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	table := newTable(w, []string{"NODE", "REASON", "PACKETS"})
	for _, n := range nodes {
		for _, reason := range network.DropReasons() {
			if c := res.NodeDrops[n][reason]; c > 0 {
				table.Append([]string{n, string(reason), u64(c)})
			}
		}
	}
	table.Render()
}

// PrintTraceSummary writes the decision trace summary.
func PrintTraceSummary(w io.Writer, res *scenario.Result) {
	s := res.Summary
	fmt.Fprintln(w, "--- Trace summary ---")
	fmt.Fprintf(w, "Decisions : %d (policy %d, fallback %d, transit %d, failed %d)\n",
		s.TotalDecisions, s.PolicyMatches, s.FallbackDecisions, s.TransitDecisions, s.Failures)
	rules := make([]string, 0, len(s.RuleDistribution))
	for r := range s.RuleDistribution {
		rules = append(rules, r)
	}
	sort.Strings(rules)
	for _, r := range rules {
		fmt.Fprintf(w, "  rule %-12s: %d\n", r, s.RuleDistribution[r])
	}
	fmt.Fprintf(w, "Drops     : %d\n", s.TotalDrops)
	reasons := make([]string, 0, len(s.DropsByReason))
	for r := range s.DropsByReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "  %-14s: %d\n", r, s.DropsByReason[r])
	}
}
