package sim

import (
	"fmt"
	"time"
)

// Simulated time is an int64 count of nanosecond ticks since the start of
// the run. The helpers below convert between ticks and time.Duration.
const (
	Nanosecond  int64 = 1
	Microsecond       = 1000 * Nanosecond
	Millisecond       = 1000 * Microsecond
	Second            = 1000 * Millisecond
)

// epoch anchors tick 0 for APIs that need a time.Time.
var epoch = time.Unix(0, 0).UTC()

// Ticks converts a duration to ticks.
func Ticks(d time.Duration) int64 {
	return int64(d)
}

// Duration converts ticks to a time.Duration.
func Duration(ticks int64) time.Duration {
	return time.Duration(ticks)
}

// Seconds returns ticks as floating point seconds.
func Seconds(ticks int64) float64 {
	return float64(ticks) / float64(Second)
}

// WallTime maps a tick onto a fixed epoch, for libraries that take time.Time.
// The mapping is deterministic and has nothing to do with the host clock.
func WallTime(ticks int64) time.Time {
	return epoch.Add(time.Duration(ticks))
}

// FromWallTime is the inverse of WallTime.
func FromWallTime(t time.Time) int64 {
	return int64(t.Sub(epoch))
}

// FormatTicks renders ticks as seconds with microsecond precision.
func FormatTicks(ticks int64) string {
	return fmt.Sprintf("%.6fs", Seconds(ticks))
}

// TransmissionTime returns the ticks needed to serialize size bytes onto a
// link running at rateBps bits per second.
func TransmissionTime(size int, rateBps int64) int64 {
	if rateBps <= 0 {
		panic(fmt.Sprintf("TransmissionTime: rate must be positive, got %d", rateBps))
	}
	bits := int64(size) * 8
	return bits * Second / rateBps
}
