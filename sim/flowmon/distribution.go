package flowmon

import (
	"slices"

	"github.com/qos-sim/qos-sim/sim"
)

// Distribution describes per-packet one-way delay in milliseconds. Quantiles
// interpolate linearly between the two nearest ranks.
type Distribution struct {
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
	Min   float64
	Max   float64
	Count int
}

// summarizeDelays builds a Distribution from delay samples in ticks. The
// input is not modified; an empty input gives the zero Distribution.
func summarizeDelays(delays []int64) Distribution {
	n := len(delays)
	if n == 0 {
		return Distribution{}
	}
	sorted := slices.Clone(delays)
	slices.Sort(sorted)

	var total int64
	for _, d := range sorted {
		total += d
	}
	return Distribution{
		Mean:  ticksToMs(total) / float64(n),
		P50:   quantileMs(sorted, 0.50),
		P95:   quantileMs(sorted, 0.95),
		P99:   quantileMs(sorted, 0.99),
		Min:   ticksToMs(sorted[0]),
		Max:   ticksToMs(sorted[n-1]),
		Count: n,
	}
}

// quantileMs returns the q-quantile (0 <= q <= 1) of ascending tick samples
// in milliseconds.
func quantileMs(sorted []int64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	i := int(pos)
	if i >= len(sorted)-1 {
		return ticksToMs(sorted[len(sorted)-1])
	}
	lo, hi := float64(sorted[i]), float64(sorted[i+1])
	return (lo + (pos-float64(i))*(hi-lo)) / float64(sim.Millisecond)
}
