package degAnalysis

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// SizeFactors median-of-ratios normalization of a samples x genes matrix:
// the size factor of a sample is the median over genes of count / geometric mean of the gene.
// Only genes without any zero count take part.
func SizeFactors(counts *CountMatrix) ([]float64, error) {
	var (
		nSample    = len(counts.Rows)
		logGeoMean = make([]float64, len(counts.Cols))
		usable     = make([]int, 0, len(counts.Cols))
	)
	for j := range counts.Cols {
		var sum float64
		for i := 0; i < nSample; i++ {
			if counts.Values[i][j] == 0 {
				sum = math.Inf(-1)
				break
			}
			sum += math.Log(float64(counts.Values[i][j]))
		}
		logGeoMean[j] = sum / float64(nSample)
		if !math.IsInf(sum, -1) {
			usable = append(usable, j)
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: every gene contains at least one zero, cannot compute size factors", ErrEngineFit)
	}

	var sizeFactors = make([]float64, nSample)
	for i := 0; i < nSample; i++ {
		var ratios = make(stats.Float64Data, len(usable))
		for k, j := range usable {
			ratios[k] = math.Log(float64(counts.Values[i][j])) - logGeoMean[j]
		}
		var median, err = stats.Median(ratios)
		if err != nil {
			return nil, fmt.Errorf("%w: size factor of %s: %v", ErrEngineFit, counts.Rows[i], err)
		}
		sizeFactors[i] = math.Exp(median)
	}
	return sizeFactors, nil
}
