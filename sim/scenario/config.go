// Package scenario loads network simulation scenarios from YAML, builds the
// network, routing, queueing, traffic and measurement pieces they describe,
// and runs them.
package scenario

import (
	"bytes"
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qos-sim/qos-sim/sim/packet"
	"github.com/qos-sim/qos-sim/sim/qdisc"
	"github.com/qos-sim/qos-sim/sim/traffic"
)

// Config is the top-level scenario file.
type Config struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Seed        int64         `yaml:"seed"`
	Duration    time.Duration `yaml:"duration"`
	// AddressPool supplies subnets for links without a prefix.
	AddressPool string `yaml:"address_pool,omitempty"`
	PoolBits    int    `yaml:"pool_bits,omitempty"`

	Nodes        []string            `yaml:"nodes"`
	Links        []LinkConfig        `yaml:"links"`
	Routes       []RouteConfig       `yaml:"routes,omitempty"`
	Policies     []PolicyConfig      `yaml:"policies,omitempty"`
	Applications []ApplicationConfig `yaml:"applications"`
	Sinks        []SinkConfig        `yaml:"sinks,omitempty"`
	FlowGroups   []FlowGroupConfig   `yaml:"flow_groups"`
	Snapshot     SnapshotConfig      `yaml:"snapshot"`
}

// LinkConfig is a point-to-point link between nodes A and B.
type LinkConfig struct {
	Name    string        `yaml:"name,omitempty"`
	A       string        `yaml:"a"`
	B       string        `yaml:"b"`
	Rate    DataRate      `yaml:"rate"`
	Delay   time.Duration `yaml:"delay"`
	Prefix  string        `yaml:"prefix,omitempty"`
	Queue   QueueConfig   `yaml:"queue,omitempty"`
	Capture bool          `yaml:"capture,omitempty"`
}

// QueueConfig selects the egress queue discipline for both link ends.
type QueueConfig struct {
	Kind         string         `yaml:"kind,omitempty"` // fifo (default) or prio
	Bands        int            `yaml:"bands,omitempty"`
	BandCapacity int            `yaml:"band_capacity,omitempty"`
	Map          map[string]int `yaml:"map,omitempty"` // marking -> band
	DefaultBand  *int           `yaml:"default_band,omitempty"`
}

// RouteConfig is a static route. Destination "default" installs 0.0.0.0/0.
type RouteConfig struct {
	Node        string `yaml:"node"`
	Destination string `yaml:"destination"`
	NextHop     string `yaml:"next_hop"`
	Interface   int    `yaml:"interface,omitempty"` // resolved from next_hop when zero
	Metric      int    `yaml:"metric,omitempty"`
}

// PolicyConfig installs a policy router on a node, in front of its static
// table.
type PolicyConfig struct {
	Node  string       `yaml:"node"`
	Name  string       `yaml:"name,omitempty"`
	Log   bool         `yaml:"log,omitempty"`
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig is one policy rule.
type RuleConfig struct {
	Name        string   `yaml:"name"`
	Markings    []string `yaml:"markings"`
	NextHop     string   `yaml:"next_hop"`
	Interface   int      `yaml:"interface,omitempty"`
	Destination string   `yaml:"destination,omitempty"`
}

// ApplicationConfig is an on/off constant-bit-rate source.
type ApplicationConfig struct {
	Name        string        `yaml:"name"`
	Node        string        `yaml:"node"`
	Destination string        `yaml:"destination"` // address:port
	Marking     string        `yaml:"marking,omitempty"`
	PacketSize  int           `yaml:"packet_size"`
	Rate        DataRate      `yaml:"rate"`
	SrcPort     uint16        `yaml:"src_port,omitempty"`
	Start       time.Duration `yaml:"start"`
	Stop        time.Duration `yaml:"stop"`
	StartJitter time.Duration `yaml:"start_jitter,omitempty"`
	OnTime      time.Duration `yaml:"on_time,omitempty"`
	OffTime     time.Duration `yaml:"off_time,omitempty"`
	Periods     string        `yaml:"periods,omitempty"`
	Arrival     string        `yaml:"arrival,omitempty"` // cbr (default), poisson, gamma, weibull
	CV          float64       `yaml:"cv,omitempty"`
}

// SinkConfig binds a packet sink to a port on a node.
type SinkConfig struct {
	Node string `yaml:"node"`
	Port uint16 `yaml:"port"`
}

// FlowGroupConfig selects flows for aggregation. Empty criteria match
// everything; set criteria must all match.
type FlowGroupConfig struct {
	Name        string   `yaml:"name"`
	SrcPorts    []uint16 `yaml:"src_ports,omitempty"`
	DstPorts    []uint16 `yaml:"dst_ports,omitempty"`
	Protocol    string   `yaml:"protocol,omitempty"`
	SrcPrefixes []string `yaml:"src_prefixes,omitempty"`
	DstPrefixes []string `yaml:"dst_prefixes,omitempty"`
}

// SnapshotConfig schedules the metrics snapshot.
type SnapshotConfig struct {
	// At is the simulated time of the snapshot; zero means the end of the run.
	At time.Duration `yaml:"at,omitempty"`
	// Window is the throughput window; zero means the span of the
	// applications' active periods.
	Window        time.Duration `yaml:"window,omitempty"`
	AvgPacketSize int           `yaml:"avg_packet_size,omitempty"`
}

// Load reads and strictly decodes a scenario file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse strictly decodes a scenario and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", cfg.Name, err)
	}
	return &cfg, nil
}

// Validate checks field values and cross references between sections.
// Addresses that depend on the built topology are checked by Build.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", c.Duration)
	}
	if c.AddressPool != "" {
		if _, err := netip.ParsePrefix(c.AddressPool); err != nil {
			return fmt.Errorf("address_pool: %w", err)
		}
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node required")
	}
	nodes := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n == "" || nodes[n] {
			return fmt.Errorf("node names must be unique and non-empty, got %q", n)
		}
		nodes[n] = true
	}
	for i, l := range c.Links {
		if err := l.validate(nodes); err != nil {
			return fmt.Errorf("links[%d]: %w", i, err)
		}
	}
	for i, r := range c.Routes {
		if !nodes[r.Node] {
			return fmt.Errorf("routes[%d]: unknown node %q", i, r.Node)
		}
		if r.Destination != "default" {
			if _, err := netip.ParsePrefix(r.Destination); err != nil {
				return fmt.Errorf("routes[%d]: destination: %w", i, err)
			}
		}
		if _, err := netip.ParseAddr(r.NextHop); err != nil {
			return fmt.Errorf("routes[%d]: next_hop: %w", i, err)
		}
	}
	seenPolicy := make(map[string]bool)
	for i, p := range c.Policies {
		if !nodes[p.Node] {
			return fmt.Errorf("policies[%d]: unknown node %q", i, p.Node)
		}
		if seenPolicy[p.Node] {
			return fmt.Errorf("policies[%d]: node %q already has a policy", i, p.Node)
		}
		seenPolicy[p.Node] = true
		for j, r := range p.Rules {
			if err := r.validate(); err != nil {
				return fmt.Errorf("policies[%d].rules[%d]: %w", i, j, err)
			}
		}
	}
	if len(c.Applications) == 0 {
		return fmt.Errorf("at least one application required")
	}
	apps := make(map[string]bool)
	for i, a := range c.Applications {
		if !nodes[a.Node] {
			return fmt.Errorf("applications[%d]: unknown node %q", i, a.Node)
		}
		if apps[a.Name] {
			return fmt.Errorf("applications[%d]: duplicate name %q", i, a.Name)
		}
		apps[a.Name] = true
		oc, err := a.onOff()
		if err != nil {
			return fmt.Errorf("applications[%d]: %w", i, err)
		}
		if err := oc.Validate(); err != nil {
			return fmt.Errorf("applications[%d]: %w", i, err)
		}
	}
	for i, s := range c.Sinks {
		if !nodes[s.Node] {
			return fmt.Errorf("sinks[%d]: unknown node %q", i, s.Node)
		}
	}
	for i, g := range c.FlowGroups {
		if _, err := g.group(); err != nil {
			return fmt.Errorf("flow_groups[%d]: %w", i, err)
		}
	}
	if c.Snapshot.At < 0 || c.Snapshot.At > c.Duration {
		return fmt.Errorf("snapshot.at %v must lie within the run (0..%v)", c.Snapshot.At, c.Duration)
	}
	if c.Snapshot.Window < 0 || c.Snapshot.AvgPacketSize < 0 {
		return fmt.Errorf("snapshot window and avg_packet_size must not be negative")
	}
	return nil
}

func (l LinkConfig) validate(nodes map[string]bool) error {
	if !nodes[l.A] || !nodes[l.B] {
		return fmt.Errorf("unknown node in %q-%q", l.A, l.B)
	}
	if l.Rate <= 0 {
		return fmt.Errorf("rate is required")
	}
	if l.Prefix != "" {
		if _, err := netip.ParsePrefix(l.Prefix); err != nil {
			return fmt.Errorf("prefix: %w", err)
		}
	}
	if !qdisc.IsValidQueueDisc(l.Queue.Kind) {
		return fmt.Errorf("unknown queue kind %q; valid: %v", l.Queue.Kind, qdisc.ValidQueueDiscNames())
	}
	if _, err := l.Queue.build(); err != nil {
		return err
	}
	return nil
}

func (r RuleConfig) validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(r.Markings) == 0 {
		return fmt.Errorf("rule %q: at least one marking required", r.Name)
	}
	for _, m := range r.Markings {
		if _, err := packet.ParseMarking(m); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
	}
	if _, err := netip.ParseAddr(r.NextHop); err != nil {
		return fmt.Errorf("rule %q: next_hop: %w", r.Name, err)
	}
	if r.Destination != "" {
		if _, err := netip.ParsePrefix(r.Destination); err != nil {
			return fmt.Errorf("rule %q: destination: %w", r.Name, err)
		}
	}
	return nil
}

// build turns the queue section into a qdisc.Config.
func (q QueueConfig) build() (qdisc.Config, error) {
	cfg := qdisc.Config{Kind: q.Kind, Bands: q.Bands, BandCapacity: q.BandCapacity}
	if q.Bands < 0 || q.BandCapacity < 0 {
		return cfg, fmt.Errorf("queue bands and band_capacity must not be negative")
	}
	if q.Kind != "prio" {
		if len(q.Map) > 0 || q.DefaultBand != nil {
			return cfg, fmt.Errorf("queue map only applies to kind prio")
		}
		return cfg, nil
	}
	bands := q.Bands
	if bands == 0 {
		bands = 3
	}
	if len(q.Map) == 0 && q.DefaultBand == nil {
		return cfg, nil
	}
	def := bands - 1
	if q.DefaultBand != nil {
		def = *q.DefaultBand
	}
	if def < 0 || def >= bands {
		return cfg, fmt.Errorf("default_band %d out of range [0,%d)", def, bands)
	}
	entries := make(map[packet.Marking]int, len(q.Map))
	for name, band := range q.Map {
		m, err := packet.ParseMarking(name)
		if err != nil {
			return cfg, fmt.Errorf("queue map: %w", err)
		}
		if band < 0 || band >= bands {
			return cfg, fmt.Errorf("queue map: %s -> band %d out of range [0,%d)", name, band, bands)
		}
		entries[m] = band
	}
	m := qdisc.NewBandMap(bands, entries, def)
	cfg.Map = &m
	return cfg, nil
}

func (a ApplicationConfig) onOff() (traffic.OnOffConfig, error) {
	dst, err := netip.ParseAddrPort(a.Destination)
	if err != nil {
		return traffic.OnOffConfig{}, fmt.Errorf("application %q: destination: %w", a.Name, err)
	}
	marking := packet.BE
	if a.Marking != "" {
		if marking, err = packet.ParseMarking(a.Marking); err != nil {
			return traffic.OnOffConfig{}, fmt.Errorf("application %q: %w", a.Name, err)
		}
	}
	return traffic.OnOffConfig{
		Name:        a.Name,
		Dst:         dst,
		Marking:     marking,
		PacketSize:  a.PacketSize,
		RateBps:     a.Rate.Bps(),
		SrcPort:     a.SrcPort,
		Start:       a.Start,
		Stop:        a.Stop,
		StartJitter: a.StartJitter,
		OnTime:      a.OnTime,
		OffTime:     a.OffTime,
		Periods:     a.Periods,
		Arrival:     a.Arrival,
		CV:          a.CV,
	}, nil
}
