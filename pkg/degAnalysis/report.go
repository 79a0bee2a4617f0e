package degAnalysis

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/liserjrqlxue/goUtil/fmtUtil"
	math2 "github.com/liserjrqlxue/goUtil/math"
	"github.com/liserjrqlxue/goUtil/osUtil"
	"github.com/liserjrqlxue/goUtil/simpleUtil"
)

// TitleDEG column order of every statistics output
var TitleDEG = []string{"gene", "baseMean", "log2FoldChange", "lfcSE", "stat", "pvalue", "padj"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Record row of r in TitleDEG order
func (r DEGResult) Record() []string {
	return []string{
		r.Gene,
		formatFloat(r.BaseMean),
		formatFloat(r.Log2FoldChange),
		formatFloat(r.LfcSE),
		formatFloat(r.Stat),
		formatFloat(r.Pvalue),
		formatFloat(r.Padj),
	}
}

// WriteDEGTable tab-separated statistics table with TitleDEG header
func WriteDEGTable(path string, table DEGTable) {
	var file = osUtil.Create(path)
	defer simpleUtil.DeferClose(file)

	fmtUtil.FprintStringArray(file, TitleDEG, "\t")
	for _, r := range table {
		fmtUtil.FprintStringArray(file, r.Record(), "\t")
	}
}

// WriteGeneList one gene per line
func WriteGeneList(path string, genes []string) {
	var file = osUtil.Create(path)
	defer simpleUtil.DeferClose(file)

	for _, gene := range genes {
		fmtUtil.Fprintf(file, "%s\n", gene)
	}
}

// WriteDEGCSV comma-separated statistics table, read back with LoadDEGTable
func WriteDEGCSV(path string, table DEGTable) error {
	var file, err = os.Create(path)
	if err != nil {
		return err
	}
	if err = gocsv.MarshalFile(&table, file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// LoadDEGTable read a statistics table written by WriteDEGCSV or WriteDEGTable,
// .tsv and .txt are tab-separated
func LoadDEGTable(path string) (DEGTable, error) {
	var format, gz, err = DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if gz || (format != FormatCSV && format != FormatTSV) {
		return nil, fmt.Errorf("%w: statistics table %s", ErrUnsupportedFormat, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer simpleUtil.DeferClose(file)

	var reader = csv.NewReader(file)
	if format == FormatTSV {
		reader.Comma = '\t'
	}
	var table DEGTable
	if err = gocsv.UnmarshalCSV(reader, &table); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, path, err)
	}
	return table, nil
}

// Summary counts of one filtered run
type Summary struct {
	Tested int
	Passed int
	Up     int
	Down   int
	// mean and standard deviation of log2FoldChange over passed genes
	Log2FoldChangeMean float64
	Log2FoldChangeSD   float64
	Criteria           FilterCriteria
}

func Summarize(table DEGTable, filtered *FilteredGeneList, criteria FilterCriteria) *Summary {
	var (
		summary = &Summary{
			Tested:   len(table),
			Passed:   len(filtered.Genes),
			Criteria: criteria,
		}
		lfc []float64
	)
	for _, r := range filtered.Table {
		lfc = append(lfc, r.Log2FoldChange)
		if r.Log2FoldChange > 0 {
			summary.Up++
		} else if r.Log2FoldChange < 0 {
			summary.Down++
		}
	}
	if len(lfc) > 0 {
		summary.Log2FoldChangeMean, summary.Log2FoldChangeSD = math2.MeanStdDev(lfc)
	}
	if len(lfc) == 1 {
		summary.Log2FoldChangeSD = 0
	}
	return summary
}

// Rows Name, Value pairs in report order
func (s *Summary) Rows() [][]string {
	return [][]string{
		{"tested", strconv.Itoa(s.Tested)},
		{"passed", strconv.Itoa(s.Passed)},
		{"up", strconv.Itoa(s.Up)},
		{"down", strconv.Itoa(s.Down)},
		{"log2FoldChangeMean", formatFloat(s.Log2FoldChangeMean)},
		{"log2FoldChangeSD", formatFloat(s.Log2FoldChangeSD)},
		{"padj<", formatFloat(s.Criteria.Padj)},
		{"|log2FoldChange|>", formatFloat(s.Criteria.Log2FoldChange)},
		{"baseMean>", formatFloat(s.Criteria.BaseMean)},
		{"pvalue<", formatFloat(s.Criteria.Pvalue)},
		{"lfcSE>", formatFloat(s.Criteria.LfcSE)},
		{"|stat|>", formatFloat(s.Criteria.Stat)},
	}
}

// Markdown run summary for chat notifications
func (s *Summary) Markdown(input string) string {
	var md = fmt.Sprintf(
		"### DEGAnalysis\n> input: %s\n> tested: %d\n> passed: <font color=\"warning\">%d</font> (up %d, down %d)\n",
		input, s.Tested, s.Passed, s.Up, s.Down,
	)
	if unsatisfiable := s.Criteria.Unsatisfiable(); len(unsatisfiable) > 0 {
		md += fmt.Sprintf("> unsatisfiable: %v\n", unsatisfiable)
	}
	return md
}

// WriteSummary Name\tValue lines
func (s *Summary) WriteSummary(path string) {
	var file = osUtil.Create(path)
	defer simpleUtil.DeferClose(file)

	fmtUtil.FprintStringArray(file, []string{"Name", "Value"}, "\t")
	for _, row := range s.Rows() {
		fmtUtil.FprintStringArray(file, row, "\t")
	}
}
