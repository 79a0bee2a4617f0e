package degAnalysis

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

const (
	minDisp = 1e-8
	// genes below 100*minDisp do not take part in the trend fit
	trendMinDisp = 100 * minDisp
	// MAD to standard deviation for normal data
	madScale = 1.4826
	// lower bound of the log dispersion prior variance
	minPriorVar = 0.25
)

// DispersionTrend parametric mean-dispersion relation alpha(mu) = A0 + A1/mu
type DispersionTrend struct {
	A0, A1 float64
	// Mean trend fallback, used when the parametric fit fails
	Mean float64
}

func (t DispersionTrend) At(mu float64) float64 {
	if t.Mean > 0 {
		return t.Mean
	}
	return t.A0 + t.A1/mu
}

// momentsDispersion rough gene-wise estimate from the pooled within-group variance of
// normalized counts q: (var - mean(1/s)*mu) / mu^2
func momentsDispersion(q, sizeFactors []float64, cancer []bool, maxDisp float64) float64 {
	var (
		mu          = stat.Mean(q, nil)
		groupMean   [2]float64
		groupN      [2]float64
		residualSS  float64
		invSizeMean float64
	)
	for i, v := range q {
		var g = group(cancer[i])
		groupMean[g] += v
		groupN[g]++
		invSizeMean += 1 / sizeFactors[i]
	}
	invSizeMean /= float64(len(q))
	for g := range groupMean {
		groupMean[g] /= groupN[g]
	}
	for i, v := range q {
		var d = v - groupMean[group(cancer[i])]
		residualSS += d * d
	}
	var rv = residualSS / float64(len(q)-2)
	return clamp((rv-invSizeMean*mu)/(mu*mu), minDisp, maxDisp)
}

func group(cancer bool) int {
	if cancer {
		return 1
	}
	return 0
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// nbLogLik negative binomial log likelihood of counts y with means mu and dispersion alpha
func nbLogLik(y, mu []float64, alpha float64) float64 {
	var (
		r      = 1 / alpha
		lgR, _ = math.Lgamma(r)
		ll     float64
	)
	for i := range y {
		var (
			lgYR, _ = math.Lgamma(y[i] + r)
			lgY1, _ = math.Lgamma(y[i] + 1)
			logP    = math.Log1p(alpha * mu[i])
		)
		ll += lgYR - lgR - lgY1 - r*logP
		if y[i] > 0 {
			ll += y[i] * (math.Log(alpha*mu[i]) - logP)
		}
	}
	return ll
}

// coxReid adjustment -1/2 log det(X'WX), for a two group design the information is diagonal
func coxReid(mu []float64, cancer []bool, alpha float64) float64 {
	var info [2]float64
	for i, m := range mu {
		info[group(cancer[i])] += m / (1 + alpha*m)
	}
	return -0.5 * (math.Log(info[0]) + math.Log(info[1]))
}

// goldenMax maximize f over [lo, hi]
func goldenMax(f func(float64) float64, lo, hi, tol float64) float64 {
	var (
		invPhi = (math.Sqrt(5) - 1) / 2
		c      = hi - invPhi*(hi-lo)
		d      = lo + invPhi*(hi-lo)
		fc     = f(c)
		fd     = f(d)
	)
	for i := 0; i < 200 && hi-lo > tol; i++ {
		if fc > fd {
			hi, d, fd = d, c, fc
			c = hi - invPhi*(hi-lo)
			fc = f(c)
		} else {
			lo, c, fc = c, d, fd
			d = lo + invPhi*(hi-lo)
			fd = f(d)
		}
	}
	return (lo + hi) / 2
}

// fitDispersion maximize the Cox-Reid adjusted likelihood over log alpha,
// with a normal prior on log alpha centered at logPrior when priorVar > 0
func fitDispersion(y, mu []float64, cancer []bool, maxDisp, logPrior, priorVar float64) float64 {
	var objective = func(logAlpha float64) float64 {
		var (
			alpha = math.Exp(logAlpha)
			ll    = nbLogLik(y, mu, alpha) + coxReid(mu, cancer, alpha)
		)
		if priorVar > 0 {
			var d = logAlpha - logPrior
			ll -= d * d / (2 * priorVar)
		}
		return ll
	}
	return math.Exp(goldenMax(objective, math.Log(minDisp), math.Log(maxDisp), 1e-6))
}

// FitDispersionTrend gamma-family fit of dispersion ~ A0 + A1/mean, iteratively dropping
// genes whose dispersion/fitted ratio falls outside [1e-4, 15].
// Falls back to a mean trend when the coefficients are not positive.
func FitDispersionTrend(means, disps []float64) (DispersionTrend, error) {
	var x, y []float64
	for i := range means {
		if disps[i] >= trendMinDisp && means[i] > 0 {
			x = append(x, 1/means[i])
			y = append(y, disps[i])
		}
	}
	if len(x) < 3 {
		if len(disps) == 0 {
			return DispersionTrend{}, fmt.Errorf("%w: no dispersion to fit a trend", ErrEngineFit)
		}
		return meanTrend(disps), nil
	}

	var (
		a0, a1 = 0.1, 1.0
		useX   = x
		useY   = y
	)
	for iter := 0; iter < 10; iter++ {
		var w = make([]float64, len(useX))
		for i := range useX {
			var fitted = a0 + a1*useX[i]
			w[i] = 1 / (fitted * fitted)
		}
		var newA0, newA1 = stat.LinearRegression(useX, useY, w, false)
		if !(newA0 > 0 && newA1 > 0) {
			slog.Warn("parametric dispersion trend failed, use mean trend", "a0", newA0, "a1", newA1)
			return meanTrend(disps), nil
		}
		var change = math.Abs(math.Log(newA0/a0)) + math.Abs(math.Log(newA1/a1))
		a0, a1 = newA0, newA1

		useX, useY = useX[:0:0], useY[:0:0]
		for i := range x {
			var ratio = y[i] / (a0 + a1*x[i])
			if ratio > 1e-4 && ratio < 15 {
				useX = append(useX, x[i])
				useY = append(useY, y[i])
			}
		}
		if change < 1e-6 || len(useX) < 3 {
			break
		}
	}
	return DispersionTrend{A0: a0, A1: a1}, nil
}

func meanTrend(disps []float64) DispersionTrend {
	var kept []float64
	for _, d := range disps {
		if d >= trendMinDisp {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return DispersionTrend{Mean: minDisp}
	}
	return DispersionTrend{Mean: stat.Mean(kept, nil)}
}

// dispersionPrior variance of log dispersions around the trend beyond what sampling explains
func dispersionPrior(genewise, trended []float64, nSample int) (priorVar, residualSD float64, err error) {
	var residuals stats.Float64Data
	for i := range genewise {
		if genewise[i] >= trendMinDisp {
			residuals = append(residuals, math.Log(genewise[i])-math.Log(trended[i]))
		}
	}
	if len(residuals) == 0 {
		return minPriorVar, 0, nil
	}
	mad, err := stats.MedianAbsoluteDeviation(residuals)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: dispersion prior: %v", ErrEngineFit, err)
	}
	var varLogDisp = (mad * madScale) * (mad * madScale)
	priorVar = math.Max(varLogDisp-trigamma(float64(nSample-2)/2), minPriorVar)
	return priorVar, math.Sqrt(varLogDisp), nil
}

// trigamma second derivative of log Gamma, recurrence up to x >= 6 then asymptotic series
func trigamma(x float64) float64 {
	var sum float64
	for x < 6 {
		sum += 1 / (x * x)
		x++
	}
	// 1/x + 1/2x^2 + 1/6x^3 - 1/30x^5 + 1/42x^7 - 1/30x^9
	var (
		x2     = 1 / (x * x)
		series = []float64{1.0 / 6, -1.0 / 30, 1.0 / 42, -1.0 / 30}
		pow    = 1 / (x * x * x)
		tail   = 0.0
	)
	for _, c := range series {
		tail += c * pow
		pow *= x2
	}
	return sum + 1/x + x2/2 + tail
}
