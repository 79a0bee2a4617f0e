package degAnalysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// NativeEngine negative binomial GLM in Go, for hosts without R:
// median-of-ratios size factors, Cox-Reid gene-wise dispersions shrunk toward a
// parametric trend, per-group maximum likelihood means, Wald test and BH adjustment.
type NativeEngine struct {
	// genes fitted concurrently, 0 means GOMAXPROCS
	Threads int
}

func NewNativeEngine(threads int) *NativeEngine {
	return &NativeEngine{Threads: threads}
}

type nbGene struct {
	y        []float64
	mu       []float64
	baseMean float64
	genewise float64
	trended  float64
	final    float64
}

func (e *NativeEngine) Fit(ctx context.Context, counts *CountMatrix, meta *SampleMetadata, factor string) (DEGTable, error) {
	if factor != ConditionFactor {
		return nil, fmt.Errorf("%w: unknown design factor %q", ErrEngineFit, factor)
	}
	if err := CheckDesign(counts, meta); err != nil {
		return nil, err
	}
	var (
		start   = time.Now()
		nSample = len(counts.Rows)
		nGene   = len(counts.Cols)
		maxDisp = math.Max(10, float64(nSample))
		lookup  = meta.Lookup()
		cancer  = make([]bool, nSample)
		genes   = make([]*nbGene, nGene)
	)
	for i, s := range counts.Rows {
		cancer[i] = lookup[s] == Cancer
	}

	sizeFactors, err := SizeFactors(counts)
	if err != nil {
		return nil, err
	}
	slog.Debug("NativeEngine size factors", "sizeFactors", sizeFactors)

	// gene-wise dispersions
	err = e.parallel(ctx, nGene, func(j int) error {
		var g = &nbGene{y: counts.Column(j)}
		var q = make([]float64, nSample)
		for i := range q {
			q[i] = g.y[i] / sizeFactors[i]
		}
		g.baseMean = stat.Mean(q, nil)
		g.mu = groupMeans(q, sizeFactors, cancer)

		var rough = momentsDispersion(q, sizeFactors, cancer, maxDisp)
		g.genewise = fitDispersion(g.y, g.mu, cancer, maxDisp, 0, 0)
		if profile(g.y, g.mu, cancer, rough) > profile(g.y, g.mu, cancer, g.genewise) {
			g.genewise = rough
		}
		genes[j] = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	// trend and prior
	var (
		means    = make([]float64, nGene)
		genewise = make([]float64, nGene)
		trended  = make([]float64, nGene)
	)
	for j, g := range genes {
		means[j] = g.baseMean
		genewise[j] = g.genewise
	}
	trend, err := FitDispersionTrend(means, genewise)
	if err != nil {
		return nil, err
	}
	for j, g := range genes {
		g.trended = clamp(trend.At(g.baseMean), minDisp, maxDisp)
		trended[j] = g.trended
	}
	priorVar, residualSD, err := dispersionPrior(genewise, trended, nSample)
	if err != nil {
		return nil, err
	}
	slog.Info("NativeEngine dispersion trend", "a0", trend.A0, "a1", trend.A1, "mean", trend.Mean, "priorVar", priorVar)

	// final dispersions, GLM and Wald test
	var (
		table   = make(DEGTable, nGene)
		pvalues = make([]float64, nGene)
	)
	err = e.parallel(ctx, nGene, func(j int) error {
		var g = genes[j]
		if math.Log(g.genewise) > math.Log(g.trended)+2*residualSD {
			g.final = g.genewise
		} else {
			g.final = fitDispersion(g.y, g.mu, cancer, maxDisp, math.Log(g.trended), priorVar)
		}

		var fits [2]groupFit
		for k := range fits {
			var y, s []float64
			for i := range g.y {
				if group(cancer[i]) == k {
					y = append(y, g.y[i])
					s = append(s, sizeFactors[i])
				}
			}
			var fit, err = fitGroup(y, s, g.final)
			if err != nil {
				return fmt.Errorf("%w: gene %s: %v", ErrEngineFit, counts.Cols[j], err)
			}
			fits[k] = fit
		}
		var lfc, se, z, p = WaldTest(fits[1], fits[0])
		table[j] = DEGResult{
			Gene:           counts.Cols[j],
			BaseMean:       g.baseMean,
			Log2FoldChange: lfc,
			LfcSE:          se,
			Stat:           z,
			Pvalue:         p,
		}
		pvalues[j] = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	for j, padj := range BHAdjust(pvalues) {
		table[j].Padj = padj
	}
	slog.Info("NativeEngine done", "genes", nGene, "time", time.Since(start))
	return table, nil
}

// groupMeans fitted count mu of every sample from the mean normalized count of its group
func groupMeans(q, sizeFactors []float64, cancer []bool) []float64 {
	var sum, n [2]float64
	for i, v := range q {
		sum[group(cancer[i])] += v
		n[group(cancer[i])]++
	}
	var mu = make([]float64, len(q))
	for i := range q {
		var g = group(cancer[i])
		mu[i] = sizeFactors[i] * math.Max(sum[g]/n[g], minMean)
	}
	return mu
}

func profile(y, mu []float64, cancer []bool, alpha float64) float64 {
	return nbLogLik(y, mu, alpha) + coxReid(mu, cancer, alpha)
}

// parallel run fn for 0..n-1 on Threads workers, stops feeding at the first error or when ctx is done
func (e *NativeEngine) parallel(ctx context.Context, n int, fn func(j int) error) error {
	var (
		threads  = e.Threads
		jobs     = make(chan int)
		wg       sync.WaitGroup
		mutex    sync.Mutex
		firstErr error
	)
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	var failed = func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return firstErr != nil
	}

	for t := 0; t < threads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := fn(j); err != nil {
					mutex.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mutex.Unlock()
				}
			}
		}()
	}
	for j := 0; j < n && ctx.Err() == nil && !failed(); j++ {
		jobs <- j
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
