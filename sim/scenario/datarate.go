package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DataRate is a link or application rate in bits per second. In YAML it is
// written with a unit suffix ("5Mbps", "100kbps", "1Gbps", "64000bps") or as
// a bare number of bits per second.
type DataRate int64

var rateUnits = []struct {
	suffix string
	scale  float64
}{
	{"Gbps", 1e9},
	{"Mbps", 1e6},
	{"kbps", 1e3},
	{"Kbps", 1e3},
	{"bps", 1},
}

// ParseDataRate parses a rate string.
func ParseDataRate(s string) (DataRate, error) {
	s = strings.TrimSpace(s)
	for _, u := range rateUnits {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
			if err != nil || v <= 0 {
				return 0, fmt.Errorf("invalid data rate %q", s)
			}
			return DataRate(v * u.scale), nil
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid data rate %q; use e.g. 5Mbps", s)
	}
	return DataRate(v), nil
}

// UnmarshalYAML accepts a suffixed string or an integer.
func (r *DataRate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: data rate must be a scalar", node.Line)
	}
	v, err := ParseDataRate(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*r = v
	return nil
}

// Bps returns the rate in bits per second.
func (r DataRate) Bps() int64 { return int64(r) }

func (r DataRate) String() string {
	v := float64(r)
	switch {
	case v >= 1e9 && int64(r)%1e9 == 0:
		return fmt.Sprintf("%gGbps", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%gMbps", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%gkbps", v/1e3)
	default:
		return fmt.Sprintf("%dbps", int64(r))
	}
}
