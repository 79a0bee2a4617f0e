package degAnalysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// SampleRowName key column of the transposed samples x genes matrix
const SampleRowName = "sample"

// LoadCountMatrix read path into a genes x samples matrix, missing cells are 0 and fractions rounded
func LoadCountMatrix(path string) (*CountMatrix, error) {
	var rows, err = ReadTableFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCountRows(path, rows)
}

// Clean drop all-zero genes and turn a genes x samples matrix into samples x genes
func (m *CountMatrix) Clean() (cleaned *CountMatrix, dropped []string) {
	var kept *CountMatrix
	kept, dropped = m.DropZeroRows()
	return kept.Transpose(SampleRowName), dropped
}

// Preprocess load, clean, orient and label a count file
func Preprocess(path string) (*CountMatrix, *SampleMetadata, error) {
	var p = &Pipeline{Input: path}
	if err := p.Preprocess(); err != nil {
		return nil, nil, err
	}
	return p.Counts, p.Metadata, nil
}

// PreprocessReader Preprocess uploaded bytes, name decides the format
func PreprocessReader(name string, r io.Reader) (*CountMatrix, *SampleMetadata, error) {
	var p = &Pipeline{Input: name}
	if err := p.PreprocessReader(r); err != nil {
		return nil, nil, err
	}
	return p.Counts, p.Metadata, nil
}

// Pipeline state of one run, each stage fills its fields and never touches earlier ones
type Pipeline struct {
	Input   string
	Engine  Engine
	Labeler Labeler

	Raw      *CountMatrix
	Counts   *CountMatrix
	Metadata *SampleMetadata
	Dropped  []string

	Results  DEGTable
	Criteria FilterCriteria
	Filtered *FilteredGeneList
}

func NewPipeline(input string, engine Engine, labeler Labeler) *Pipeline {
	return &Pipeline{
		Input:    input,
		Engine:   engine,
		Labeler:  labeler,
		Criteria: DefaultCriteria(),
	}
}

func (p *Pipeline) Preprocess() error {
	var raw, err = LoadCountMatrix(p.Input)
	if err != nil {
		return err
	}
	p.clean(raw)
	return nil
}

func (p *Pipeline) PreprocessReader(r io.Reader) error {
	var rows, err = ReadTable(p.Input, r)
	if err != nil {
		return err
	}
	raw, err := ParseCountRows(p.Input, rows)
	if err != nil {
		return err
	}
	p.clean(raw)
	return nil
}

func (p *Pipeline) clean(raw *CountMatrix) {
	p.Raw = raw
	p.Counts, p.Dropped = raw.Clean()
	p.Metadata = LabelSamples(p.Counts.Rows, p.Labeler)
	var count = p.Metadata.Count()
	slog.Info(
		"Preprocess",
		slog.Group("input", "name", p.Input, "genes", len(raw.Rows), "samples", len(raw.Cols)),
		"dropped", len(p.Dropped),
		slog.Group("condition", string(Cancer), count[Cancer], string(Normal), count[Normal]),
	)
}

// RunDEG fit p.Engine, NativeEngine when nil
func (p *Pipeline) RunDEG(ctx context.Context) error {
	if p.Counts == nil || p.Metadata == nil {
		return fmt.Errorf("%w: %s not preprocessed", ErrMalformedInput, p.Input)
	}
	if p.Engine == nil {
		p.Engine = NewNativeEngine(0)
	}
	var table, err = RunDEG(ctx, p.Engine, p.Counts, p.Metadata)
	if err != nil {
		return err
	}
	p.Results = table
	return nil
}

// FilterResults re-filter p.Results with criteria, the engine is not run again
func (p *Pipeline) FilterResults(criteria FilterCriteria) *FilteredGeneList {
	if names := criteria.Unsatisfiable(); len(names) > 0 {
		slog.Warn("no gene can pass", "criteria", names)
	}
	p.Criteria = criteria
	p.Filtered = FilterResults(p.Results, criteria)
	slog.Info("FilterResults", "tested", len(p.Results), "passed", len(p.Filtered.Genes))
	return p.Filtered
}

// Run Preprocess, RunDEG and FilterResults with p.Criteria
func (p *Pipeline) Run(ctx context.Context) error {
	var start = time.Now()
	if err := p.Preprocess(); err != nil {
		return err
	}
	if err := p.RunDEG(ctx); err != nil {
		return err
	}
	p.FilterResults(p.Criteria)
	slog.Info("Done", "time", time.Since(start))
	return nil
}
