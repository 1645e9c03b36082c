package routing

import (
	"fmt"
	"net/netip"

	"github.com/gopacket/gopacket/layers"

	"github.com/qos-sim/qos-sim/sim/packet"
)

// MarkingPredicate reports whether a rule applies to a marking.
type MarkingPredicate func(packet.Marking) bool

// PolicyRule maps markings to a route. Rules are evaluated in the order the
// caller supplies them; the first rule that accepts the marking wins.
type PolicyRule struct {
	Name string
	// Markings lists the code points the rule accepts. Ignored when Match is set.
	Markings []packet.Marking
	// Match, when non-nil, replaces the Markings check.
	Match MarkingPredicate
	// Route is returned for matching packets. A zero destination prefix
	// means "whatever the packet is addressed to": the decision carries a
	// host route for the header destination.
	Route RouteDescriptor
}

// Accepts reports whether the rule applies to marking m.
func (r PolicyRule) Accepts(m packet.Marking) bool {
	if r.Match != nil {
		return r.Match(m)
	}
	for _, rm := range r.Markings {
		if rm == m {
			return true
		}
	}
	return false
}

func (r PolicyRule) routeFor(dst netip.Addr) RouteDescriptor {
	if r.Route.Destination().IsValid() {
		return r.Route
	}
	return r.Route.WithDestination(HostPrefix(dst))
}

// Decision records how a routing question was answered.
type Decision struct {
	Router   string
	PacketID uint64
	Marking  packet.Marking
	Dst      netip.Addr
	Iface    int // oif hint for RouteOutput, iif for RouteInput
	Transit  bool
	Rule     string // matched rule; empty when the fallback answered
	Fallback bool
	Route    RouteDescriptor
	Err      error
}

// PolicyStats counts decisions by outcome.
type PolicyStats struct {
	Decisions uint64
	RuleHits  map[string]uint64
	Fallbacks uint64
	Transit   uint64
	Failures  uint64
}

// PolicyRouter routes originated packets by marking and delegates
// everything else to a fallback Router.
//
// The fallback is a borrowed reference: the PolicyRouter invokes it but
// never creates, replaces or closes it.
type PolicyRouter struct {
	name       string
	rules      []PolicyRule
	fallback   Router
	classifier packet.Classifier
	observer   Observer
	stats      PolicyStats
}

// PolicyOption configures a PolicyRouter.
type PolicyOption func(*PolicyRouter)

// WithName labels decisions from this router (usually the node name).
func WithName(name string) PolicyOption {
	return func(r *PolicyRouter) { r.name = name }
}

// WithObserver attaches a decision observer.
func WithObserver(o Observer) PolicyOption {
	return func(r *PolicyRouter) { r.observer = o }
}

// WithClassifier replaces the default DSCP classifier.
func WithClassifier(c packet.Classifier) PolicyOption {
	return func(r *PolicyRouter) { r.classifier = c }
}

// NewPolicyRouter creates a policy router. fallback may be nil, in which case
// unmatched packets fail with ErrNoRoute. The rule slice is copied.
// Panics on rules that can never be evaluated.
func NewPolicyRouter(fallback Router, rules []PolicyRule, opts ...PolicyOption) *PolicyRouter {
	for i, rule := range rules {
		if rule.Match == nil && len(rule.Markings) == 0 {
			panic(fmt.Sprintf("NewPolicyRouter: rule %d (%q) matches nothing", i, rule.Name))
		}
		if rule.Route.IsZero() {
			panic(fmt.Sprintf("NewPolicyRouter: rule %d (%q) has no route", i, rule.Name))
		}
	}
	r := &PolicyRouter{
		rules:      append([]PolicyRule(nil), rules...),
		fallback:   fallback,
		classifier: packet.DSCPClassifier{},
		observer:   NopObserver{},
		stats:      PolicyStats{RuleHits: make(map[string]uint64)},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rules returns a copy of the rule table in evaluation order.
func (r *PolicyRouter) Rules() []PolicyRule {
	return append([]PolicyRule(nil), r.rules...)
}

// Fallback returns the fallback router (may be nil).
func (r *PolicyRouter) Fallback() Router {
	return r.fallback
}

// Stats returns a copy of the decision counters.
func (r *PolicyRouter) Stats() PolicyStats {
	s := r.stats
	s.RuleHits = make(map[string]uint64, len(r.stats.RuleHits))
	for k, v := range r.stats.RuleHits {
		s.RuleHits[k] = v
	}
	return s
}

// Decide evaluates the rule table for an originated packet. The first rule
// accepting the packet's marking determines the route; with no match the
// fallback's answer is returned unchanged.
func (r *PolicyRouter) Decide(p *packet.Packet, hdr layers.IPv4, oif int) Decision {
	marking := r.classifier.Classify(p)
	d := Decision{
		Router:   r.name,
		PacketID: p.ID(),
		Marking:  marking,
		Dst:      headerDst(hdr),
		Iface:    oif,
	}
	for _, rule := range r.rules {
		if rule.Accepts(marking) {
			d.Rule = rule.Name
			d.Route = rule.routeFor(d.Dst)
			return r.finish(d)
		}
	}
	d.Fallback = true
	if r.fallback == nil {
		d.Err = noRoute(d.Dst)
		return r.finish(d)
	}
	d.Route, d.Err = r.fallback.RouteOutput(p, hdr, oif)
	d = settle(d)
	return r.finish(d)
}

// RouteOutput implements Router.
func (r *PolicyRouter) RouteOutput(p *packet.Packet, hdr layers.IPv4, oif int) (RouteDescriptor, error) {
	d := r.Decide(p, hdr, oif)
	return d.Route, d.Err
}

// RouteInput implements Router. Policy is never evaluated for packets in
// transit; they always go to the fallback.
func (r *PolicyRouter) RouteInput(p *packet.Packet, hdr layers.IPv4, iif int) (RouteDescriptor, error) {
	d := Decision{
		Router:   r.name,
		PacketID: p.ID(),
		Marking:  r.classifier.Classify(p),
		Dst:      headerDst(hdr),
		Iface:    iif,
		Transit:  true,
		Fallback: true,
	}
	if r.fallback == nil {
		d.Err = noRoute(d.Dst)
	} else {
		d.Route, d.Err = r.fallback.RouteInput(p, hdr, iif)
		d = settle(d)
	}
	d = r.finish(d)
	return d.Route, d.Err
}

// settle normalizes a fallback answer: an error clears the route, and an
// empty route without an error is a no-route failure.
func settle(d Decision) Decision {
	switch {
	case d.Err != nil:
		d.Route = RouteDescriptor{}
		d.Err = asRoutingFailure(d.Dst, d.Err)
	case d.Route.IsZero():
		d.Err = noRoute(d.Dst)
	}
	return d
}

func (r *PolicyRouter) finish(d Decision) Decision {
	r.stats.Decisions++
	switch {
	case d.Err != nil:
		r.stats.Failures++
	case d.Rule != "":
		r.stats.RuleHits[d.Rule]++
	case d.Fallback:
		r.stats.Fallbacks++
	}
	if d.Transit {
		r.stats.Transit++
	}
	r.observer.Observe(d)
	return d
}
