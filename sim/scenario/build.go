package scenario

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qos-sim/qos-sim/sim"
	"github.com/qos-sim/qos-sim/sim/flowmon"
	"github.com/qos-sim/qos-sim/sim/network"
	"github.com/qos-sim/qos-sim/sim/packet"
	"github.com/qos-sim/qos-sim/sim/routing"
	"github.com/qos-sim/qos-sim/sim/trace"
	"github.com/qos-sim/qos-sim/sim/traffic"
)

// Options tune a build without editing the scenario file.
type Options struct {
	// Seed, when set, replaces the scenario seed.
	Seed *int64
	// Trace configures decision and drop tracing.
	Trace trace.TraceConfig
	// PolicyLog enables decision logging for policies marked log: true.
	PolicyLog bool
	// Log receives policy decision logs. Defaults to the standard logger.
	Log *logrus.Entry
}

// Policy is a policy router installed on a node.
type Policy struct {
	Node   string
	Router *routing.PolicyRouter
	Log    *routing.LogObserver
}

// Scenario is a built, not yet run, simulation.
type Scenario struct {
	Config   *Config
	Seed     int64
	Sim      *sim.Simulator
	Network  *network.Network
	Monitor  *flowmon.Monitor
	Trace    *trace.SimulationTrace
	Policies []Policy
	Apps     []*traffic.OnOff
	Sinks    []*traffic.Sink
	Groups   []flowmon.Group

	window   time.Duration
	captures []*os.File
}

// Build assembles the scenario: topology, static routes, policies, sinks,
// applications and flow monitoring.
func Build(cfg *Config, opts Options) (*Scenario, error) {
	if cfg == nil {
		return nil, fmt.Errorf("build: config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", cfg.Name, err)
	}
	seed := cfg.Seed
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Scenario{
		Config:  cfg,
		Seed:    seed,
		Sim:     sim.NewSimulator(sim.Ticks(cfg.Duration)),
		Monitor: flowmon.NewMonitor(),
	}
	if opts.Trace.Level != "" && opts.Trace.Level != trace.TraceLevelNone {
		s.Trace = trace.NewSimulationTrace(opts.Trace)
	}

	netOpts := []network.Option{network.WithTrace(s.Trace)}
	if cfg.AddressPool != "" {
		bits := cfg.PoolBits
		if bits == 0 {
			bits = 24
		}
		pool, err := network.NewAddressAllocator(netip.MustParsePrefix(cfg.AddressPool), bits)
		if err != nil {
			return nil, err
		}
		netOpts = append(netOpts, network.WithAddressPool(pool))
	}
	s.Network = network.New(s.Sim, netOpts...)
	s.Network.AddProbe(network.FlowMonitorProbe{Monitor: s.Monitor})

	for _, name := range cfg.Nodes {
		if _, err := s.Network.AddNode(name); err != nil {
			return nil, err
		}
	}
	for i, lc := range cfg.Links {
		if err := s.connect(lc); err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
	}
	for i, rc := range cfg.Routes {
		if err := s.addRoute(rc); err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
	}
	for i, pc := range cfg.Policies {
		if err := s.addPolicy(pc, opts, log); err != nil {
			return nil, fmt.Errorf("policies[%d]: %w", i, err)
		}
	}
	for i, sc := range cfg.Sinks {
		node := s.node(sc.Node)
		sink, err := traffic.NewSink(node, sc.Port)
		if err != nil {
			return nil, fmt.Errorf("sinks[%d]: %w", i, err)
		}
		s.Sinks = append(s.Sinks, sink)
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	var first, last time.Duration = -1, 0
	for i, ac := range cfg.Applications {
		oc, err := ac.onOff()
		if err != nil {
			return nil, fmt.Errorf("applications[%d]: %w", i, err)
		}
		app, err := traffic.NewOnOff(s.node(ac.Node), oc, rng.ForSubsystem(sim.SubsystemApplication(ac.Name)))
		if err != nil {
			return nil, fmt.Errorf("applications[%d]: %w", i, err)
		}
		app.Install()
		s.Apps = append(s.Apps, app)
		if first < 0 || oc.Start < first {
			first = oc.Start
		}
		last = max(last, oc.Stop)
	}

	for _, gc := range cfg.FlowGroups {
		g, err := gc.group()
		if err != nil {
			return nil, err
		}
		s.Groups = append(s.Groups, g)
	}
	s.window = cfg.Snapshot.Window
	if s.window == 0 {
		s.window = last - first
	}
	logrus.Infof("scenario %s: %d nodes, %d links, %d applications, seed %d",
		cfg.Name, len(cfg.Nodes), len(cfg.Links), len(cfg.Applications), seed)
	return s, nil
}

func (s *Scenario) node(name string) *network.Node {
	n, ok := s.Network.Node(name)
	if !ok {
		panic(fmt.Sprintf("scenario: node %q not built", name))
	}
	return n
}

func (s *Scenario) connect(lc LinkConfig) error {
	q, err := lc.Queue.build()
	if err != nil {
		return err
	}
	cfg := network.LinkConfig{RateBps: lc.Rate.Bps(), Delay: lc.Delay, Queue: q}
	if lc.Prefix != "" {
		cfg.Prefix = netip.MustParsePrefix(lc.Prefix)
	}
	_, err = s.Network.Connect(s.node(lc.A), s.node(lc.B), cfg)
	return err
}

// resolveInterface returns iface when set, otherwise the interface of the
// connected network holding nextHop.
func resolveInterface(node *network.Node, nextHop netip.Addr, iface int) (int, error) {
	if iface != 0 {
		if node.Device(iface) == nil {
			return 0, fmt.Errorf("node %s has no interface %d", node.Name(), iface)
		}
		return iface, nil
	}
	for _, d := range node.Devices() {
		if d.Address().Contains(nextHop) {
			return d.Interface(), nil
		}
	}
	return 0, fmt.Errorf("next hop %s is not on a network connected to %s", nextHop, node.Name())
}

func (s *Scenario) addRoute(rc RouteConfig) error {
	node := s.node(rc.Node)
	nextHop := netip.MustParseAddr(rc.NextHop)
	iface, err := resolveInterface(node, nextHop, rc.Interface)
	if err != nil {
		return err
	}
	table := node.Stack().StaticRouting()
	if rc.Destination == "default" {
		return table.SetDefaultRoute(nextHop, iface, rc.Metric)
	}
	dst := netip.MustParsePrefix(rc.Destination)
	if dst.IsSingleIP() {
		return table.AddHostRoute(dst.Addr(), nextHop, iface, rc.Metric)
	}
	return table.AddNetworkRoute(dst, nextHop, iface, rc.Metric)
}

func (s *Scenario) addPolicy(pc PolicyConfig, opts Options, log *logrus.Entry) error {
	node := s.node(pc.Node)
	rules := make([]routing.PolicyRule, 0, len(pc.Rules))
	for _, rc := range pc.Rules {
		nextHop := netip.MustParseAddr(rc.NextHop)
		iface, err := resolveInterface(node, nextHop, rc.Interface)
		if err != nil {
			return fmt.Errorf("rule %q: %w", rc.Name, err)
		}
		var dst netip.Prefix
		if rc.Destination != "" {
			dst = netip.MustParsePrefix(rc.Destination)
		}
		markings := make([]packet.Marking, 0, len(rc.Markings))
		for _, m := range rc.Markings {
			mk, err := packet.ParseMarking(m)
			if err != nil {
				return fmt.Errorf("rule %q: %w", rc.Name, err)
			}
			markings = append(markings, mk)
		}
		rules = append(rules, routing.PolicyRule{
			Name:     rc.Name,
			Markings: markings,
			Route:    routing.NewRouteDescriptor(dst, nextHop, iface),
		})
	}

	name := pc.Name
	if name == "" {
		name = pc.Node
	}
	logObs := routing.NewLogObserver(log.WithField("node", pc.Node))
	logObs.Enabled = pc.Log && opts.PolicyLog
	observers := routing.MultiObserver{logObs}
	if s.Trace.RecordsDecisions() {
		observers = append(observers, &routing.TraceObserver{Trace: s.Trace, Now: s.Sim.Now})
	}
	pr := routing.NewPolicyRouter(node.Stack().StaticRouting(), rules,
		routing.WithName(name), routing.WithObserver(observers))
	node.Stack().SetRouting(pr)
	s.Policies = append(s.Policies, Policy{Node: pc.Node, Router: pr, Log: logObs})
	return nil
}

// Window returns the throughput window the snapshot uses.
func (s *Scenario) Window() time.Duration { return s.window }

// PrintRoutes writes every node's routing table.
func (s *Scenario) PrintRoutes(w io.Writer) {
	for _, n := range s.Network.Nodes() {
		n.PrintRoutingTable(w)
		fmt.Fprintln(w)
	}
}

// EnableCapture writes a pcap file per device of every link marked
// capture: true, named <node>-if<index>.pcap under dir. Files are closed by
// Close.
func (s *Scenario) EnableCapture(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating capture directory: %w", err)
	}
	for i, lc := range s.Config.Links {
		if !lc.Capture {
			continue
		}
		a, b := s.Network.Links()[i].Ends()
		for _, d := range []*network.Device{a, b} {
			path := filepath.Join(dir, fmt.Sprintf("%s-if%d.pcap", d.Node().Name(), d.Interface()))
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating capture file: %w", err)
			}
			s.captures = append(s.captures, f)
			if err := d.EnableCapture(f); err != nil {
				return err
			}
			logrus.Infof("capturing %s to %s", d, path)
		}
	}
	return nil
}

// Close releases capture files.
func (s *Scenario) Close() error {
	var firstErr error
	for _, f := range s.captures {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.captures = nil
	return firstErr
}
