package qdisc

import (
	"math"
	"time"
)

// DefaultBandCapacity matches the classic 100-packet drop-tail default.
const DefaultBandCapacity = 100

// BandCapacityFor sizes a band to hold buffer worth of traffic at rateBps,
// in packets of mtu bytes. The result is at least 1.
func BandCapacityFor(rateBps int64, buffer time.Duration, mtu int) int {
	if rateBps <= 0 || buffer <= 0 || mtu <= 0 {
		return DefaultBandCapacity
	}
	bytes := float64(rateBps) / 8 * buffer.Seconds()
	n := int(math.Floor(bytes/float64(mtu) + 1e-9))
	if n < 1 {
		return 1
	}
	return n
}
