package report

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qos-sim/qos-sim/sim/scenario"
)

// MetricName names an exported gauge.
type MetricName string

const (
	MetricGroupLoss       MetricName = "qossim_group_loss_percent"
	MetricGroupDelay      MetricName = "qossim_group_delay_ms"
	MetricGroupJitter     MetricName = "qossim_group_jitter_ms"
	MetricGroupThroughput MetricName = "qossim_group_throughput_mbps"
	MetricGroupRxPackets  MetricName = "qossim_group_rx_packets"
	MetricGroupTxPackets  MetricName = "qossim_group_tx_packets"
	MetricDrops           MetricName = "qossim_drops"
	MetricBandEnqueued    MetricName = "qossim_band_enqueued"
	MetricBandDropped     MetricName = "qossim_band_dropped"
	MetricBandPeak        MetricName = "qossim_band_peak"
	MetricPolicyDecisions MetricName = "qossim_policy_decisions"
)

// Exporter turns run results into Prometheus gauges on a private registry.
type Exporter struct {
	registry *prometheus.Registry
	gauges   map[MetricName]*prometheus.GaugeVec
}

// NewExporter registers every gauge on a fresh registry.
func NewExporter() *Exporter {
	groupLabels := []string{"scenario", "group"}
	bandLabels := []string{"scenario", "node", "interface", "band"}
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		gauges: map[MetricName]*prometheus.GaugeVec{
			MetricGroupLoss:       newGauge(MetricGroupLoss, "Packet loss of a flow group in percent", groupLabels),
			MetricGroupDelay:      newGauge(MetricGroupDelay, "Mean one-way delay of a flow group", groupLabels),
			MetricGroupJitter:     newGauge(MetricGroupJitter, "Mean delay variation of a flow group", groupLabels),
			MetricGroupThroughput: newGauge(MetricGroupThroughput, "Received throughput of a flow group over the window", groupLabels),
			MetricGroupRxPackets:  newGauge(MetricGroupRxPackets, "Packets received by a flow group", groupLabels),
			MetricGroupTxPackets:  newGauge(MetricGroupTxPackets, "Packets sent by a flow group", groupLabels),
			MetricDrops:           newGauge(MetricDrops, "Packets dropped per node and reason", []string{"scenario", "node", "reason"}),
			MetricBandEnqueued:    newGauge(MetricBandEnqueued, "Packets accepted by a queue band", bandLabels),
			MetricBandDropped:     newGauge(MetricBandDropped, "Packets dropped at the tail of a queue band", bandLabels),
			MetricBandPeak:        newGauge(MetricBandPeak, "Largest occupancy of a queue band", bandLabels),
			MetricPolicyDecisions: newGauge(MetricPolicyDecisions, "Routing decisions of a policy router by outcome", []string{"scenario", "node", "outcome"}),
		},
	}
	for _, g := range e.gauges {
		e.registry.MustRegister(g)
	}
	return e
}

func newGauge(name MetricName, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: string(name), Help: help}, labels)
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe sets every gauge from res. Series of an earlier result for the
// same scenario are overwritten.
func (e *Exporter) Observe(res *scenario.Result) {
	sc := res.Scenario
	if res.Report != nil {
		for _, g := range res.Report.Groups {
			e.gauges[MetricGroupLoss].WithLabelValues(sc, g.Group).Set(g.LossPercent)
			e.gauges[MetricGroupDelay].WithLabelValues(sc, g.Group).Set(g.AvgDelayMs)
			e.gauges[MetricGroupJitter].WithLabelValues(sc, g.Group).Set(g.AvgJitterMs)
			e.gauges[MetricGroupThroughput].WithLabelValues(sc, g.Group).Set(g.ThroughputMbps)
			e.gauges[MetricGroupRxPackets].WithLabelValues(sc, g.Group).Set(float64(g.RxPackets))
			e.gauges[MetricGroupTxPackets].WithLabelValues(sc, g.Group).Set(float64(g.TxPackets))
		}
	}
	for node, drops := range res.NodeDrops {
		for reason, n := range drops {
			e.gauges[MetricDrops].WithLabelValues(sc, node, string(reason)).Set(float64(n))
		}
	}
	for _, q := range res.Queues {
		iface := strconv.Itoa(q.Interface)
		for band, b := range q.Bands {
			if b.Enqueued == 0 && b.Dropped == 0 {
				continue
			}
			labels := []string{sc, q.Node, iface, strconv.Itoa(band)}
			e.gauges[MetricBandEnqueued].WithLabelValues(labels...).Set(float64(b.Enqueued))
			e.gauges[MetricBandDropped].WithLabelValues(labels...).Set(float64(b.Dropped))
			e.gauges[MetricBandPeak].WithLabelValues(labels...).Set(float64(b.Peak))
		}
	}
	for _, p := range res.Policies {
		var hits uint64
		for _, n := range p.Stats.RuleHits {
			hits += n
		}
		g := e.gauges[MetricPolicyDecisions]
		g.WithLabelValues(sc, p.Node, "rule").Set(float64(hits))
		g.WithLabelValues(sc, p.Node, "fallback").Set(float64(p.Stats.Fallbacks))
		g.WithLabelValues(sc, p.Node, "transit").Set(float64(p.Stats.Transit))
		g.WithLabelValues(sc, p.Node, "failure").Set(float64(p.Stats.Failures))
	}
}

// WriteTextfile writes the registry in the text exposition format, suitable
// for the node exporter's textfile collector.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
