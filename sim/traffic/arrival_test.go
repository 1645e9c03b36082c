package traffic

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coefficientOfVariation(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss/float64(len(xs))) / mean
}

func sampleGaps(t *testing.T, process string, cv, avg float64, n int) []float64 {
	t.Helper()
	s, err := NewGapSampler(process, cv, avg)
	require.NoError(t, err)
	require.NotNil(t, s)
	rng := rand.New(rand.NewSource(42))
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(s.SampleGap(rng))
	}
	return out
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func TestGapSampler_MeanMatchesRate(t *testing.T) {
	// 800 us mean gap: 200 B at 2 Mbps
	const want = 800_000.0
	for _, tc := range []struct {
		process string
		cv      float64
	}{
		{ArrivalPoisson, 0},
		{ArrivalGamma, 2},
		{ArrivalGamma, 0.5},
		{ArrivalWeibull, 1.5},
	} {
		gaps := sampleGaps(t, tc.process, tc.cv, want, 20000)
		got := mean(gaps)
		assert.InDelta(t, want, got, want*0.05, "%s cv=%v", tc.process, tc.cv)
	}
}

func TestGapSampler_CVShapesBurstiness(t *testing.T) {
	poisson := coefficientOfVariation(sampleGaps(t, ArrivalPoisson, 0, 1e6, 20000))
	gamma := coefficientOfVariation(sampleGaps(t, ArrivalGamma, 3, 1e6, 20000))
	weibull := coefficientOfVariation(sampleGaps(t, ArrivalWeibull, 0.5, 1e6, 20000))

	assert.InDelta(t, 1.0, poisson, 0.1)
	assert.Greater(t, gamma, 2.0)
	assert.InDelta(t, 0.5, weibull, 0.05)
}

func TestGapSampler_CBRHasNoSampler(t *testing.T) {
	for _, p := range []string{"", ArrivalCBR} {
		s, err := NewGapSampler(p, 0, 1000)
		require.NoError(t, err)
		assert.Nil(t, s)
	}
	_, err := NewGapSampler("pareto", 1, 1000)
	assert.Error(t, err)
}

func TestGapSampler_GapsAreAtLeastOneTick(t *testing.T) {
	for _, g := range sampleGaps(t, ArrivalGamma, 5, 2, 5000) {
		require.GreaterOrEqual(t, g, 1.0)
	}
}

func TestWeibullShapeFromCV_RoundTrips(t *testing.T) {
	for _, cv := range []float64{0.3, 1, 2} {
		k := weibullShapeFromCV(cv)
		assert.InDelta(t, cv, weibullCV(k), 0.002)
	}
}

func TestOnOff_PoissonArrivalsKeepMeanRate(t *testing.T) {
	n, a, b := pair(t, 100_000_000)
	sink, err := NewSink(b, 9)
	require.NoError(t, err)

	cfg := baseConfig()
	cfg.Arrival = ArrivalPoisson
	app, err := NewOnOff(a, cfg, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	app.Install()
	n.Sim().Run()

	sent, _ := app.Sent()
	assert.InDelta(t, 1250, float64(sent), 125, "mean rate is kept within 10%")
	got, _ := sink.Received()
	assert.Equal(t, sent, got)
}

func TestOnOffConfig_RejectsUnknownArrival(t *testing.T) {
	cfg := baseConfig()
	cfg.Arrival = "bursty"
	assert.Error(t, cfg.Validate())
	cfg.Arrival = ArrivalGamma
	cfg.CV = -1
	assert.Error(t, cfg.Validate())
}
