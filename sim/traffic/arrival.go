package traffic

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Packet arrival processes within an on period.
const (
	// ArrivalCBR paces packets evenly through a token bucket.
	ArrivalCBR = "cbr"
	// ArrivalPoisson draws exponential gaps (CV = 1).
	ArrivalPoisson = "poisson"
	// ArrivalGamma draws Gamma gaps with the configured CV; CV > 1 is bursty.
	ArrivalGamma = "gamma"
	// ArrivalWeibull draws Weibull gaps with the configured CV.
	ArrivalWeibull = "weibull"
)

// IsValidArrival reports whether name is a known arrival process. Empty
// means ArrivalCBR.
func IsValidArrival(name string) bool {
	switch name {
	case "", ArrivalCBR, ArrivalPoisson, ArrivalGamma, ArrivalWeibull:
		return true
	}
	return false
}

// GapSampler draws the gap to the next packet, in ticks. Always >= 1.
type GapSampler interface {
	SampleGap(rng *rand.Rand) int64
}

// PoissonGaps draws exponentially distributed gaps.
type PoissonGaps struct {
	mean float64
}

func (s *PoissonGaps) SampleGap(rng *rand.Rand) int64 {
	return atLeastOne(rng.ExpFloat64() * s.mean)
}

// GammaGaps draws Gamma(shape, scale) gaps.
type GammaGaps struct {
	shape float64 // 1/CV²
	scale float64 // mean * CV²
}

func (s *GammaGaps) SampleGap(rng *rand.Rand) int64 {
	return atLeastOne(gammaRand(rng, s.shape, s.scale))
}

// gammaRand samples Gamma(shape, scale) with Marsaglia-Tsang, boosting
// shape < 1 through Gamma(a) = Gamma(a+1) * U^(1/a).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// WeibullGaps draws Weibull(k, lambda) gaps by inverse CDF.
type WeibullGaps struct {
	shape float64
	scale float64
}

func (s *WeibullGaps) SampleGap(rng *rand.Rand) int64 {
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64
	}
	return atLeastOne(s.scale * math.Pow(-math.Log(u), 1.0/s.shape))
}

func atLeastOne(v float64) int64 {
	if v < 1 {
		return 1
	}
	return int64(v)
}

// NewGapSampler builds the sampler for process with mean gap meanTicks.
// ArrivalCBR and "" return nil: the source paces through its token bucket.
// A cv <= 0 means 1.
func NewGapSampler(process string, cv float64, meanTicks float64) (GapSampler, error) {
	if meanTicks < 1 {
		meanTicks = 1
	}
	if cv <= 0 {
		cv = 1
	}
	switch process {
	case "", ArrivalCBR:
		return nil, nil
	case ArrivalPoisson:
		return &PoissonGaps{mean: meanTicks}, nil
	case ArrivalGamma:
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("traffic: gamma shape %.4f (CV=%.1f) too small, using poisson", shape, cv)
			return &PoissonGaps{mean: meanTicks}, nil
		}
		return &GammaGaps{shape: shape, scale: meanTicks * cv * cv}, nil
	case ArrivalWeibull:
		k := weibullShapeFromCV(cv)
		return &WeibullGaps{shape: k, scale: meanTicks / math.Gamma(1.0+1.0/k)}, nil
	}
	return nil, fmt.Errorf("unknown arrival process %q", process)
}

// weibullShapeFromCV bisects k in [0.1, 100] until the Weibull CV is within
// 0.001 of target. CV decreases monotonically in k.
func weibullShapeFromCV(target float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2.0
		cv := weibullCV(mid)
		if math.Abs(cv-target) < 0.001 {
			return mid
		}
		if cv > target {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("traffic: weibull shape for CV=%.3f did not converge, using k=%.3f", target, (lo+hi)/2.0)
	return (lo + hi) / 2.0
}

func weibullCV(k float64) float64 {
	g1 := math.Gamma(1.0 + 1.0/k)
	g2 := math.Gamma(1.0 + 2.0/k)
	return math.Sqrt(g2/(g1*g1) - 1.0)
}
