package degAnalysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// floor of a fitted group mean, keeps all-zero groups finite
	minMean = 1e-8
	glmTol  = 1e-8
	// relative log likelihood change of an accepted step
	glmRelTol = 1e-10
	glmIter   = 100
)

// groupFit negative binomial maximum likelihood of one group mean on the log scale
type groupFit struct {
	LogMean float64
	// expected Fisher information of LogMean
	Info float64
}

// fitGroup Newton iteration with step halving on
// l(b) = sum y*b - (y+1/alpha)*log(1+alpha*s*exp(b)), which is concave in b
func fitGroup(y, sizeFactors []float64, alpha float64) (groupFit, error) {
	var (
		sumY = floats.Sum(y)
		sumS = floats.Sum(sizeFactors)
	)
	if sumY == 0 {
		return newGroupFit(sizeFactors, math.Inf(-1), alpha), nil
	}

	var logLik = func(b float64) float64 {
		var ll float64
		for i := range y {
			ll += y[i]*b - (y[i]+1/alpha)*math.Log1p(alpha*sizeFactors[i]*math.Exp(b))
		}
		return ll
	}

	var (
		b  = math.Log(sumY / sumS)
		ll = logLik(b)
	)
	for iter := 0; iter < glmIter; iter++ {
		var score, hessian float64
		for i := range y {
			var mu = sizeFactors[i] * math.Exp(b)
			score += (y[i] - mu) / (1 + alpha*mu)
			hessian -= mu * (1 + alpha*y[i]) / ((1 + alpha*mu) * (1 + alpha*mu))
		}
		var step = -score / hessian
		if hessian == 0 || math.Abs(step) < glmTol {
			return newGroupFit(sizeFactors, b, alpha), nil
		}
		var (
			next  = b + step
			nextL = logLik(next)
		)
		for k := 0; k < 30 && !(nextL >= ll); k++ {
			step /= 2
			next = b + step
			nextL = logLik(next)
		}
		// no ascent left within float precision
		if !(nextL >= ll) {
			return newGroupFit(sizeFactors, b, alpha), nil
		}
		var change = math.Abs(nextL-ll) / (math.Abs(nextL) + 0.1)
		b, ll = next, nextL
		if math.Abs(step) < glmTol || change < glmRelTol {
			return newGroupFit(sizeFactors, b, alpha), nil
		}
	}
	return groupFit{}, fmt.Errorf("no convergence after %d iterations", glmIter)
}

func newGroupFit(sizeFactors []float64, b, alpha float64) groupFit {
	b = math.Max(b, math.Log(minMean))
	return groupFit{LogMean: b, Info: information(sizeFactors, b, alpha)}
}

func information(sizeFactors []float64, logMean, alpha float64) float64 {
	var info float64
	for _, s := range sizeFactors {
		var mu = s * math.Exp(logMean)
		info += mu / (1 + alpha*mu)
	}
	return info
}

// WaldTest cancer against normal on the log2 scale, two-sided normal p-value
func WaldTest(cancer, normal groupFit) (log2FoldChange, lfcSE, stat, pvalue float64) {
	var (
		lfc = cancer.LogMean - normal.LogMean
		se  = math.Sqrt(1/cancer.Info + 1/normal.Info)
	)
	log2FoldChange = lfc / math.Ln2
	lfcSE = se / math.Ln2
	stat = lfc / se
	pvalue = 2 * distuv.UnitNormal.Survival(math.Abs(stat))
	return
}
