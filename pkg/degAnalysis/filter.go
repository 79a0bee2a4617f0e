package degAnalysis

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/liserjrqlxue/goUtil/osUtil"
	"github.com/liserjrqlxue/goUtil/simpleUtil"
)

// DEGResult per-gene statistics of one fit
type DEGResult struct {
	Gene           string  `csv:"gene"`
	BaseMean       float64 `csv:"baseMean"`
	Log2FoldChange float64 `csv:"log2FoldChange"`
	LfcSE          float64 `csv:"lfcSE"`
	Stat           float64 `csv:"stat"`
	Pvalue         float64 `csv:"pvalue"`
	Padj           float64 `csv:"padj"`
}

// DEGTable statistics table, one row per gene, treated as immutable
type DEGTable []DEGResult

// Genes identifiers in row order
func (table DEGTable) Genes() []string {
	var genes = make([]string, len(table))
	for i, r := range table {
		genes[i] = r.Gene
	}
	return genes
}

// SortBy return a copy sorted ascending by column, NaN last
func (table DEGTable) SortBy(column string) (DEGTable, error) {
	var key, ok = columnValue[column]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	var sorted = append(DEGTable(nil), table...)
	sort.SliceStable(sorted, func(i, j int) bool {
		var a, b = key(sorted[i]), key(sorted[j])
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a < b
	})
	return sorted, nil
}

var columnValue = map[string]func(DEGResult) float64{
	"baseMean":       func(r DEGResult) float64 { return r.BaseMean },
	"log2FoldChange": func(r DEGResult) float64 { return r.Log2FoldChange },
	"lfcSE":          func(r DEGResult) float64 { return r.LfcSE },
	"stat":           func(r DEGResult) float64 { return r.Stat },
	"pvalue":         func(r DEGResult) float64 { return r.Pvalue },
	"padj":           func(r DEGResult) float64 { return r.Padj },
}

// FilterCriteria six thresholds, all must hold for a gene to survive:
// padj < Padj, |log2FoldChange| > Log2FoldChange, baseMean > BaseMean,
// pvalue < Pvalue, lfcSE > LfcSE, |stat| > Stat
type FilterCriteria struct {
	Padj           float64
	Log2FoldChange float64
	BaseMean       float64
	Pvalue         float64
	LfcSE          float64
	Stat           float64
}

// DefaultCriteria reference thresholds.
// Pvalue 0 can never be satisfied, kept as is until product decides otherwise; see Unsatisfiable.
func DefaultCriteria() FilterCriteria {
	return FilterCriteria{
		Padj:           0.05,
		Log2FoldChange: 0.0,
		BaseMean:       10,
		Pvalue:         0.0,
		LfcSE:          0.0,
		Stat:           0.0,
	}
}

// Unsatisfiable names of thresholds no valid statistic can pass
func (c FilterCriteria) Unsatisfiable() []string {
	var names []string
	if !(c.Padj > 0) {
		names = append(names, "padj")
	}
	if !(c.Pvalue > 0) {
		names = append(names, "pvalue")
	}
	if math.IsNaN(c.Log2FoldChange) || math.IsInf(c.Log2FoldChange, 1) {
		names = append(names, "log2FoldChange")
	}
	if math.IsNaN(c.BaseMean) || math.IsInf(c.BaseMean, 1) {
		names = append(names, "baseMean")
	}
	if math.IsNaN(c.LfcSE) || math.IsInf(c.LfcSE, 1) {
		names = append(names, "lfcSE")
	}
	if math.IsNaN(c.Stat) || math.IsInf(c.Stat, 1) {
		names = append(names, "stat")
	}
	return names
}

// Pass row satisfies every threshold, NaN never passes
func (c FilterCriteria) Pass(r DEGResult) bool {
	return r.Padj < c.Padj &&
		math.Abs(r.Log2FoldChange) > c.Log2FoldChange &&
		r.BaseMean > c.BaseMean &&
		r.Pvalue < c.Pvalue &&
		r.LfcSE > c.LfcSE &&
		math.Abs(r.Stat) > c.Stat
}

// Set threshold by column name
func (c *FilterCriteria) Set(name string, value float64) error {
	switch name {
	case "padj":
		c.Padj = value
	case "log2FoldChange":
		c.Log2FoldChange = value
	case "baseMean":
		c.BaseMean = value
	case "pvalue":
		c.Pvalue = value
	case "lfcSE":
		c.LfcSE = value
	case "stat":
		c.Stat = value
	default:
		return fmt.Errorf("unknown criterion %q", name)
	}
	return nil
}

// openCriteria path under exPath, or path itself when exPath is empty, then cfgFS when not on disk
func openCriteria(path, exPath string, cfgFS embed.FS) (fs.File, error) {
	var diskPath = path
	if exPath != "" {
		diskPath = filepath.Join(exPath, path)
	}
	var file, err = os.Open(diskPath)
	if err == nil {
		return file, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	embedded, embedErr := cfgFS.Open(path)
	if embedErr != nil {
		return nil, fmt.Errorf("criteria %s: %w", path, err)
	}
	return embedded, nil
}

// LoadCriteria read Name\tValue rows from path, a file beside exPath overrides the one in cfgFS
func LoadCriteria(path, exPath string, cfgFS embed.FS) (FilterCriteria, error) {
	var criteria = DefaultCriteria()
	var file, err = openCriteria(path, exPath, cfgFS)
	if err != nil {
		return criteria, err
	}
	defer simpleUtil.DeferClose(file)

	var rows, _ = osUtil.FS2MapArray(file, "\t", nil)
	for _, row := range rows {
		var value, err = strconv.ParseFloat(strings.TrimSpace(row["Value"]), 64)
		if err != nil {
			return criteria, fmt.Errorf("criterion %s: %w", row["Name"], err)
		}
		if err = criteria.Set(row["Name"], value); err != nil {
			return criteria, err
		}
	}
	return criteria, nil
}

// FilteredGeneList rows that passed, and their genes in row order
type FilteredGeneList struct {
	Table DEGTable
	Genes []string
}

// FilterResults keep rows passing all criteria, table is not modified
func FilterResults(table DEGTable, criteria FilterCriteria) *FilteredGeneList {
	var filtered = &FilteredGeneList{
		Table: DEGTable{},
		Genes: []string{},
	}
	for _, r := range table {
		if criteria.Pass(r) {
			filtered.Table = append(filtered.Table, r)
			filtered.Genes = append(filtered.Genes, r.Gene)
		}
	}
	return filtered
}
