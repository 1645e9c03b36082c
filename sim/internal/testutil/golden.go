// Package testutil provides shared test infrastructure: the golden report
// dataset for the built-in scenarios and float assertion helpers.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/golden_reports.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is the expected outcome of one scenario run.
type GoldenTestCase struct {
	Scenario string                  `json:"scenario"`
	Seed     int64                   `json:"seed"`
	Groups   map[string]GoldenGroup  `json:"groups"`
	Absent   []string                `json:"absent,omitempty"` // groups that must be omitted
	Drops    map[string]GoldenBounds `json:"drops,omitempty"`  // reason -> packets
}

// GoldenGroup holds bounds per metric, keyed by the metric's report name
// (loss_percent, avg_delay_ms, avg_jitter_ms, throughput_mbps, ...).
// Exact entries are compared with a relative tolerance instead.
type GoldenGroup struct {
	Bounds map[string]GoldenBounds `json:"bounds,omitempty"`
	Exact  map[string]float64      `json:"exact,omitempty"`
}

// GoldenBounds is an inclusive [min, max] range.
type GoldenBounds [2]float64

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "golden_reports.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertWithin checks that got lies in the inclusive range b.
func AssertWithin(t *testing.T, name string, b GoldenBounds, got float64) {
	t.Helper()
	if got < b[0] || got > b[1] {
		t.Errorf("%s: got %v, want within [%v, %v]", name, got, b[0], b[1])
	}
}
