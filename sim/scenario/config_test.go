package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qos-sim/qos-sim/sim/packet"
)

const minimal = `
name: tiny
duration: 2s
nodes: [a, b]
links:
  - {a: a, b: b, rate: 10Mbps, delay: 1ms}
applications:
  - {name: app, node: a, destination: "10.0.0.2:9", packet_size: 100, rate: 64kbps, start: 0s, stop: 1s}
flow_groups:
  - {name: all}
`

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, "tiny", cfg.Name)
	assert.Equal(t, 2*time.Second, cfg.Duration)
	assert.Equal(t, DataRate(10_000_000), cfg.Links[0].Rate)
	assert.Equal(t, DataRate(64_000), cfg.Applications[0].Rate)

	s, err := Build(cfg, Options{})
	require.NoError(t, err)
	// no explicit prefix: the default pool hands out 10.0.0.0/24
	b, _ := s.Network.Node("b")
	assert.Equal(t, "10.0.0.2/24", b.Device(1).Address().String())
	assert.Equal(t, time.Second, s.Window())
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(minimal + "bogus: 1\n"))
	assert.Error(t, err)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no duration", `
name: x
nodes: [a]
applications: [{name: app, node: a, destination: "10.0.0.2:9", packet_size: 1, rate: 1bps, start: 0s, stop: 1s}]`},
		{"unknown link node", `
name: x
duration: 1s
nodes: [a]
links: [{a: a, b: z, rate: 1Mbps}]
applications: [{name: app, node: a, destination: "10.0.0.2:9", packet_size: 1, rate: 1bps, start: 0s, stop: 1s}]`},
		{"bad rate", `
name: x
duration: 1s
nodes: [a, b]
links: [{a: a, b: b, rate: fast}]
applications: [{name: app, node: a, destination: "10.0.0.2:9", packet_size: 1, rate: 1bps, start: 0s, stop: 1s}]`},
		{"bad marking", `
name: x
duration: 1s
nodes: [a]
applications: [{name: app, node: a, destination: "10.0.0.2:9", marking: XX, packet_size: 1, rate: 1bps, start: 0s, stop: 1s}]`},
		{"queue map on fifo", `
name: x
duration: 1s
nodes: [a, b]
links: [{a: a, b: b, rate: 1Mbps, queue: {map: {EF: 0}}}]
applications: [{name: app, node: a, destination: "10.0.0.2:9", packet_size: 1, rate: 1bps, start: 0s, stop: 1s}]`},
		{"band out of range", `
name: x
duration: 1s
nodes: [a, b]
links: [{a: a, b: b, rate: 1Mbps, queue: {kind: prio, bands: 2, map: {EF: 2}}}]
applications: [{name: app, node: a, destination: "10.0.0.2:9", packet_size: 1, rate: 1bps, start: 0s, stop: 1s}]`},
		{"two policies on one node", `
name: x
duration: 1s
nodes: [a]
policies:
  - {node: a, rules: [{name: r, markings: [EF], next_hop: 10.0.0.1}]}
  - {node: a, rules: [{name: r, markings: [EF], next_hop: 10.0.0.1}]}
applications: [{name: app, node: a, destination: "10.0.0.2:9", packet_size: 1, rate: 1bps, start: 0s, stop: 1s}]`},
		{"snapshot after end", `
name: x
duration: 1s
nodes: [a]
applications: [{name: app, node: a, destination: "10.0.0.2:9", packet_size: 1, rate: 1bps, start: 0s, stop: 1s}]
snapshot: {at: 2s}`},
		{"bad group prefix", `
name: x
duration: 1s
nodes: [a]
applications: [{name: app, node: a, destination: "10.0.0.2:9", packet_size: 1, rate: 1bps, start: 0s, stop: 1s}]
flow_groups: [{name: g, src_prefixes: [nope]}]`},
		{"unknown arrival", `
name: x
duration: 1s
nodes: [a]
applications: [{name: app, node: a, destination: "10.0.0.2:9", packet_size: 1, rate: 1bps, start: 0s, stop: 1s, arrival: pareto}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestQueueConfig_BuildsCustomMap(t *testing.T) {
	def := 0
	q := QueueConfig{Kind: "prio", Bands: 2, Map: map[string]int{"CS1": 1}, DefaultBand: &def}
	cfg, err := q.build()
	require.NoError(t, err)
	require.NotNil(t, cfg.Map)
	assert.Equal(t, 1, cfg.Map.Band(packet.CS1))
	assert.Equal(t, 0, cfg.Map.Band(packet.BE))
}

func TestDataRate(t *testing.T) {
	tests := []struct {
		in   string
		want DataRate
		str  string
	}{
		{"5Mbps", 5_000_000, "5Mbps"},
		{"100Mbps", 100_000_000, "100Mbps"},
		{"1.5Mbps", 1_500_000, "1.5Mbps"},
		{"64kbps", 64_000, "64kbps"},
		{"1Gbps", 1_000_000_000, "1Gbps"},
		{"9600", 9600, "9.6kbps"},
		{"500bps", 500, "500bps"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDataRate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}
	for _, bad := range []string{"", "Mbps", "-1Mbps", "fast", "0"} {
		_, err := ParseDataRate(bad)
		assert.Error(t, err, bad)
	}
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"bursty", "pbr", "qos"}, PresetNames())
	for _, name := range PresetNames() {
		cfg, err := Resolve(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, cfg.Name)
	}
	_, err := Preset("nope")
	assert.ErrorContains(t, err, "valid: bursty, pbr, qos")
}

func TestResolve_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))
	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", cfg.Name)
}
