package degAnalysis

import (
	"math"
	"sort"
)

// BHAdjust Benjamini-Hochberg adjusted p-values in input order, NaN stays NaN and is not counted
func BHAdjust(pvalues []float64) []float64 {
	var (
		padj  = make([]float64, len(pvalues))
		index []int
	)
	for i, p := range pvalues {
		padj[i] = math.NaN()
		if !math.IsNaN(p) {
			index = append(index, i)
		}
	}
	sort.SliceStable(index, func(a, b int) bool {
		return pvalues[index[a]] < pvalues[index[b]]
	})

	var (
		n       = float64(len(index))
		minimum = 1.0
	)
	for rank := len(index); rank >= 1; rank-- {
		var i = index[rank-1]
		minimum = math.Min(minimum, pvalues[i]*n/float64(rank))
		padj[i] = minimum
	}
	return padj
}
