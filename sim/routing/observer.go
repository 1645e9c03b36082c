package routing

import (
	"github.com/sirupsen/logrus"

	"github.com/qos-sim/qos-sim/sim/trace"
)

// Observer receives every routing decision. Observers are passive: they
// cannot change the outcome.
type Observer interface {
	Observe(d Decision)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Decision)

// Observe implements Observer.
func (f ObserverFunc) Observe(d Decision) { f(d) }

// NopObserver discards decisions.
type NopObserver struct{}

// Observe implements Observer.
func (NopObserver) Observe(Decision) {}

// MultiObserver fans a decision out to several observers in order.
type MultiObserver []Observer

// Observe implements Observer.
func (m MultiObserver) Observe(d Decision) {
	for _, o := range m {
		o.Observe(d)
	}
}

// LogObserver writes decisions to a logrus entry when Enabled is set.
type LogObserver struct {
	Log     *logrus.Entry
	Enabled bool
	// Level defaults to Info when zero (logrus.PanicLevel).
	Level logrus.Level
}

// NewLogObserver returns an enabled observer logging at Info.
func NewLogObserver(log *logrus.Entry) *LogObserver {
	return &LogObserver{Log: log, Enabled: true, Level: logrus.InfoLevel}
}

// Observe implements Observer.
func (o *LogObserver) Observe(d Decision) {
	if o == nil || !o.Enabled || o.Log == nil {
		return
	}
	level := o.Level
	if level == logrus.PanicLevel {
		level = logrus.InfoLevel
	}
	entry := o.Log.WithFields(logrus.Fields{
		"router":  d.Router,
		"packet":  d.PacketID,
		"marking": d.Marking.String(),
		"dst":     d.Dst.String(),
	})
	switch {
	case d.Err != nil:
		entry.Logf(level, "PBR: %v", d.Err)
	case d.Transit:
		entry.Logf(level, "PBR: transit packet, deferring to fallback: %s", d.Route)
	case d.Rule != "":
		entry.Logf(level, "PBR: rule %q matched, routing %s", d.Rule, d.Route)
	default:
		entry.Logf(level, "PBR: no match, deferring to fallback: %s", d.Route)
	}
}

// TraceObserver records decisions into a SimulationTrace. Now supplies the
// simulated time of the decision.
type TraceObserver struct {
	Trace *trace.SimulationTrace
	Now   func() int64
}

// Observe implements Observer.
func (o *TraceObserver) Observe(d Decision) {
	if !o.Trace.RecordsDecisions() {
		return
	}
	rec := trace.RoutingRecord{
		PacketID:  d.PacketID,
		Node:      d.Router,
		Marking:   d.Marking.String(),
		Transit:   d.Transit,
		Rule:      d.Rule,
		Fallback:  d.Fallback,
		Interface: d.Route.Interface(),
	}
	if o.Now != nil {
		rec.Clock = o.Now()
	}
	if d.Err != nil {
		rec.Err = d.Err.Error()
		rec.Interface = -1
	} else {
		rec.NextHop = d.Route.Gateway(d.Dst).String()
	}
	o.Trace.RecordRouting(rec)
}
