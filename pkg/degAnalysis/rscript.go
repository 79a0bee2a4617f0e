package degAnalysis

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/liserjrqlxue/goUtil/simpleUtil"
)

// RscriptEngine run DESeq2 through Rscript on a temp directory:
// counts.csv and metadata.csv in, result.csv out
type RscriptEngine struct {
	// Rscript executable, default "Rscript" from PATH
	Rscript string
	// Script overrides the embedded etc/deseq2.R
	Script string
	// TempDir parent of the work directory, default os.TempDir()
	TempDir string
	// KeepTemp leave the work directory for inspection
	KeepTemp bool
}

func NewRscriptEngine(rscript, script string) *RscriptEngine {
	return &RscriptEngine{Rscript: rscript, Script: script}
}

type sampleCondition struct {
	Sample    string `csv:"sample"`
	Condition string `csv:"Condition"`
}

func (e *RscriptEngine) Fit(ctx context.Context, counts *CountMatrix, meta *SampleMetadata, factor string) (DEGTable, error) {
	if factor != ConditionFactor {
		return nil, fmt.Errorf("%w: unknown design factor %q", ErrEngineFit, factor)
	}
	if err := CheckDesign(counts, meta); err != nil {
		return nil, err
	}

	var workDir, err = os.MkdirTemp(e.TempDir, "DEGAnalysis.")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineFit, err)
	}
	if e.KeepTemp {
		slog.Info("RscriptEngine keep work directory", "dir", workDir)
	} else {
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				slog.Warn("RscriptEngine remove work directory", "dir", workDir, "err", err)
			}
		}()
	}

	if err = writeCountsCSV(filepath.Join(workDir, "counts.csv"), counts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineFit, err)
	}
	if err = writeMetadataCSV(filepath.Join(workDir, "metadata.csv"), counts, meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineFit, err)
	}
	script, err := e.script(workDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineFit, err)
	}

	var (
		rscript = e.Rscript
		stderr  bytes.Buffer
		start   = time.Now()
	)
	if rscript == "" {
		rscript = "Rscript"
	}
	var cmd = exec.CommandContext(ctx, rscript, script, workDir)
	cmd.Stderr = &stderr
	slog.Info("Rscript", "cmd", cmd.String())
	if err = cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Error("Rscript error", "err", err, "stderr", stderr.String())
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrEngineFit, rscript, err, lastLine(stderr.String()))
	}
	slog.Info("Rscript done", "time", time.Since(start))

	return readRscriptResult(filepath.Join(workDir, "result.csv"), counts.Cols)
}

// script path of the R script, the embedded one is written into workDir
func (e *RscriptEngine) script(workDir string) (string, error) {
	if e.Script != "" {
		return e.Script, nil
	}
	var data, err = EtcFS.ReadFile(Deseq2R)
	if err != nil {
		return "", err
	}
	var path = filepath.Join(workDir, filepath.Base(Deseq2R))
	return path, os.WriteFile(path, data, 0644)
}

// writeCountsCSV samples x genes with a leading sample column
func writeCountsCSV(path string, counts *CountMatrix) (err error) {
	var file *os.File
	if file, err = os.Create(path); err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	var (
		w      = csv.NewWriter(file)
		record = make([]string, len(counts.Cols)+1)
	)
	record[0] = "sample"
	copy(record[1:], counts.Cols)
	if err = w.Write(record); err != nil {
		return err
	}
	for i, sample := range counts.Rows {
		record[0] = sample
		for j, v := range counts.Values[i] {
			record[j+1] = strconv.FormatInt(int64(v), 10)
		}
		if err = w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeMetadataCSV one row per matrix sample, in matrix order
func writeMetadataCSV(path string, counts *CountMatrix, meta *SampleMetadata) error {
	var (
		lookup = meta.Lookup()
		rows   = make([]*sampleCondition, len(counts.Rows))
	)
	for i, s := range counts.Rows {
		rows[i] = &sampleCondition{Sample: s, Condition: string(lookup[s])}
	}
	var file, err = os.Create(path)
	if err != nil {
		return err
	}
	if err = gocsv.MarshalFile(&rows, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// readRscriptResult parse result.csv and order it like genes
func readRscriptResult(path string, genes []string) (DEGTable, error) {
	var file, err = os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineFit, err)
	}
	defer simpleUtil.DeferClose(file)

	var rows []*DEGResult
	if err = gocsv.Unmarshal(file, &rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEngineFit, path, err)
	}
	var byGene = make(map[string]*DEGResult, len(rows))
	for _, r := range rows {
		byGene[r.Gene] = r
	}
	var table = make(DEGTable, len(genes))
	for i, gene := range genes {
		var r, ok = byGene[gene]
		if !ok {
			return nil, fmt.Errorf("%w: %s: no result for gene %s", ErrEngineFit, path, gene)
		}
		table[i] = *r
	}
	return table, nil
}

func lastLine(s string) string {
	var lines = strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
