package degAnalysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Engine fit a count model with factor as design and test cancer against normal
type Engine interface {
	Fit(ctx context.Context, counts *CountMatrix, meta *SampleMetadata, factor string) (DEGTable, error)
}

// EngineFunc adapt a plain function to Engine
type EngineFunc func(ctx context.Context, counts *CountMatrix, meta *SampleMetadata, factor string) (DEGTable, error)

func (f EngineFunc) Fit(ctx context.Context, counts *CountMatrix, meta *SampleMetadata, factor string) (DEGTable, error) {
	return f(ctx, counts, meta, factor)
}

// minGroupSize samples needed in each condition to estimate dispersion
const minGroupSize = 2

// CheckDesign counts must be samples x genes, co-indexed with meta, with two samples in each condition
func CheckDesign(counts *CountMatrix, meta *SampleMetadata) error {
	if err := meta.CheckCoIndexed(counts); err != nil {
		return err
	}
	if len(counts.Cols) == 0 {
		return fmt.Errorf("%w: no genes left to test", ErrEngineFit)
	}
	var count = meta.Count()
	for _, c := range []Condition{Cancer, Normal} {
		if count[c] < minGroupSize {
			return fmt.Errorf("%w: %d %s samples, need at least %d", ErrEngineFit, count[c], c, minGroupSize)
		}
	}
	return nil
}

type fitResult struct {
	table DEGTable
	err   error
}

// RunDEG fit engine on counts and meta.
// The fit runs on its own goroutine: when ctx is done RunDEG returns ctx.Err() at once
// and the abandoned fit's result is dropped.
func RunDEG(ctx context.Context, engine Engine, counts *CountMatrix, meta *SampleMetadata) (DEGTable, error) {
	if err := CheckDesign(counts, meta); err != nil {
		return nil, err
	}
	var (
		start = time.Now()
		done  = make(chan fitResult, 1)
	)
	slog.Info("RunDEG", "samples", len(counts.Rows), "genes", len(counts.Cols), "engine", fmt.Sprintf("%T", engine))
	go func() {
		var table, err = engine.Fit(ctx, counts, meta, ConditionFactor)
		done <- fitResult{table, err}
	}()

	select {
	case <-ctx.Done():
		slog.Warn("RunDEG abandoned", "err", ctx.Err(), "time", time.Since(start))
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, ErrEngineFit) || errors.Is(res.err, ErrMalformedInput) ||
				errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded) {
				return nil, res.err
			}
			return nil, fmt.Errorf("%w: %v", ErrEngineFit, res.err)
		}
		if len(res.table) != len(counts.Cols) {
			return nil, fmt.Errorf("%w: %d result rows for %d genes", ErrEngineFit, len(res.table), len(counts.Cols))
		}
		slog.Info("RunDEG done", "genes", len(res.table), "time", time.Since(start))
		return res.table, nil
	}
}
