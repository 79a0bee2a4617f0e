package degAnalysis

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

var reportTable = DEGTable{
	{Gene: "UP", BaseMean: 1275.5, Log2FoldChange: 5.6, LfcSE: 0.2, Stat: 28, Pvalue: 1e-150, Padj: 3e-149},
	{Gene: "DOWN", BaseMean: 80, Log2FoldChange: -1.5, LfcSE: 0.4, Stat: -3.75, Pvalue: 1.7e-4, Padj: 0.002},
	{Gene: "FLAT", BaseMean: 40, Log2FoldChange: 0.01, LfcSE: 0.3, Stat: 0.03, Pvalue: 0.97, Padj: 0.97},
	{Gene: "NA", BaseMean: 0.5, Log2FoldChange: math.NaN(), LfcSE: math.NaN(), Stat: math.NaN(), Pvalue: math.NaN(), Padj: math.NaN()},
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func sameTable(t *testing.T, got, want DEGTable) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d rows; want %d", len(got), len(want))
	}
	for i := range want {
		var g, w = got[i], want[i]
		if g.Gene != w.Gene ||
			!sameFloat(g.BaseMean, w.BaseMean) ||
			!sameFloat(g.Log2FoldChange, w.Log2FoldChange) ||
			!sameFloat(g.LfcSE, w.LfcSE) ||
			!sameFloat(g.Stat, w.Stat) ||
			!sameFloat(g.Pvalue, w.Pvalue) ||
			!sameFloat(g.Padj, w.Padj) {
			t.Errorf("row %d = %+v; want %+v", i, g, w)
		}
	}
}

func TestDEGTableRoundTrip(t *testing.T) {
	var dir = t.TempDir()

	t.Run("csv", func(t *testing.T) {
		var path = filepath.Join(dir, "stats.csv")
		if err := WriteDEGCSV(path, reportTable); err != nil {
			t.Fatal(err)
		}
		var table, err = LoadDEGTable(path)
		if err != nil {
			t.Fatal(err)
		}
		sameTable(t, table, reportTable)
	})

	t.Run("tsv", func(t *testing.T) {
		var path = filepath.Join(dir, "stats.tsv")
		WriteDEGTable(path, reportTable)
		var content, err = os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var header = strings.SplitN(string(content), "\n", 2)[0]
		if header != strings.Join(TitleDEG, "\t") {
			t.Errorf("header = %q", header)
		}
		table, err := LoadDEGTable(path)
		if err != nil {
			t.Fatal(err)
		}
		sameTable(t, table, reportTable)
	})

	t.Run("refilter", func(t *testing.T) {
		var table, err = LoadDEGTable(filepath.Join(dir, "stats.csv"))
		if err != nil {
			t.Fatal(err)
		}
		var criteria = DefaultCriteria()
		criteria.Pvalue = 0.05
		var filtered = FilterResults(table, criteria)
		if !reflect.DeepEqual(filtered.Genes, []string{"UP", "DOWN"}) {
			t.Errorf("re-filtered genes = %v; want [UP DOWN]", filtered.Genes)
		}
	})
}

func TestSummarize(t *testing.T) {
	var criteria = DefaultCriteria()
	criteria.Pvalue = 0.05
	var summary = Summarize(reportTable, FilterResults(reportTable, criteria), criteria)
	if summary.Tested != 4 || summary.Passed != 2 || summary.Up != 1 || summary.Down != 1 {
		t.Errorf("Summarize() = %+v", summary)
	}
	if !closeTo(summary.Log2FoldChangeMean, 2.05, 1e-12) {
		t.Errorf("Log2FoldChangeMean = %v; want 2.05", summary.Log2FoldChangeMean)
	}
	if md := summary.Markdown("counts.csv"); !strings.Contains(md, "counts.csv") || strings.Contains(md, "unsatisfiable") {
		t.Errorf("Markdown() = %q", md)
	}
	if md := Summarize(reportTable, FilterResults(reportTable, DefaultCriteria()), DefaultCriteria()).Markdown("x"); !strings.Contains(md, "unsatisfiable") {
		t.Errorf("Markdown() with default criteria = %q; want unsatisfiable warning", md)
	}
}

func TestPipeline(t *testing.T) {
	var (
		dir  = t.TempDir()
		path = filepath.Join(dir, "counts.csv")
		csv  = "Ensembl_ID,TCGA-AA-01,TCGA-AA-11,TCGA-BB-01,TCGA-BB-11\n" +
			"G1,10,20,30,5\n" +
			"G2,0,0,0,0\n" +
			"G3,1.5,NA,,7\n"
	)
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	var fits int
	var engine = EngineFunc(func(_ context.Context, counts *CountMatrix, meta *SampleMetadata, factor string) (DEGTable, error) {
		fits++
		var table = make(DEGTable, len(counts.Cols))
		for j, gene := range counts.Cols {
			table[j] = DEGResult{Gene: gene, BaseMean: 20, Log2FoldChange: 1, LfcSE: 0.1, Stat: 10, Pvalue: 0.001, Padj: 0.01 * float64(j+1)}
		}
		return table, nil
	})

	var p = NewPipeline(path, engine, NewBarcodeLabeler())
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.Dropped, []string{"G2"}) {
		t.Errorf("Dropped = %v; want [G2]", p.Dropped)
	}
	if !reflect.DeepEqual(p.Results.Genes(), []string{"G1", "G3"}) {
		t.Errorf("Results genes = %v", p.Results.Genes())
	}
	// default pvalue < 0 keeps nothing
	if len(p.Filtered.Genes) != 0 {
		t.Errorf("Filtered with default criteria = %v; want empty", p.Filtered.Genes)
	}

	var criteria = DefaultCriteria()
	criteria.Pvalue = 0.05
	criteria.Padj = 0.015
	if got := p.FilterResults(criteria).Genes; !reflect.DeepEqual(got, []string{"G1"}) {
		t.Errorf("re-filtered genes = %v; want [G1]", got)
	}
	if fits != 1 {
		t.Errorf("engine fitted %d times; want 1", fits)
	}

	t.Run("xlsx", func(t *testing.T) {
		var xlsxPath = filepath.Join(dir, "DEG.xlsx")
		p.WriteXlsx(xlsxPath)
		var xlsx, err = excelize.OpenFile(xlsxPath)
		if err != nil {
			t.Fatal(err)
		}
		defer xlsx.Close()
		if got := xlsx.GetSheetList(); !reflect.DeepEqual(got, SheetList) {
			t.Errorf("sheets = %v; want %v", got, SheetList)
		}
		if got := GetCellValue(xlsx, "Statistics", 1, 3); got != "G3" {
			t.Errorf("Statistics A3 = %q; want G3", got)
		}
		if got := GetCellValue(xlsx, "Genes", 1, 2); got != "G1" {
			t.Errorf("Genes A2 = %q; want G1", got)
		}
		if got := GetCellValue(xlsx, "Metadata", 2, 2); got != string(Cancer) {
			t.Errorf("Metadata B2 = %q; want cancer", got)
		}
	})

	t.Run("plot", func(t *testing.T) {
		var png = filepath.Join(dir, "volcano.png")
		if err := PlotVolcano(png, reportTable, criteria); err != nil {
			t.Fatal(err)
		}
		var html = filepath.Join(dir, "volcano.html")
		PlotVolcanoHTML(html, reportTable, criteria)
		for _, path := range []string{png, html} {
			if info, err := os.Stat(path); err != nil || info.Size() == 0 {
				t.Errorf("%s not written: %v", path, err)
			}
		}
	})
}

func TestPipelineRunDEGBeforePreprocess(t *testing.T) {
	var p = NewPipeline("counts.csv", nil, nil)
	if err := p.RunDEG(context.Background()); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("RunDEG() error = %v; want ErrMalformedInput", err)
	}
	if p.Results != nil {
		t.Errorf("Results = %v; want nil", p.Results)
	}
}
