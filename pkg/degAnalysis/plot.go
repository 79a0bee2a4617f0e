package degAnalysis

import (
	"fmt"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/liserjrqlxue/goUtil/osUtil"
	"github.com/liserjrqlxue/goUtil/simpleUtil"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// smallest padj drawn, keeps -log10 finite
const minPlotPadj = 1e-300

// volcanoPoint x log2FoldChange, y -log10(padj), rows with NaN are skipped
func volcanoPoint(r DEGResult) (x, y float64, ok bool) {
	if math.IsNaN(r.Log2FoldChange) || math.IsNaN(r.Padj) || math.IsInf(r.Log2FoldChange, 0) {
		return 0, 0, false
	}
	return r.Log2FoldChange, -math.Log10(math.Max(r.Padj, minPlotPadj)), true
}

// PlotVolcano PNG volcano plot, genes passing criteria in red
func PlotVolcano(path string, table DEGTable, criteria FilterCriteria) error {
	var (
		p       = plot.New()
		passed  = plotter.XYs{}
		others  = plotter.XYs{}
		minX    = 0.0
		maxX    = 0.0
		nPassed = 0
	)
	p.Title.Text = "Volcano: cancer vs normal"
	p.X.Label.Text = "log2FoldChange"
	p.Y.Label.Text = "-log10(padj)"

	for _, r := range table {
		var x, y, ok = volcanoPoint(r)
		if !ok {
			continue
		}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		if criteria.Pass(r) {
			passed = append(passed, plotter.XY{X: x, Y: y})
			nPassed++
		} else {
			others = append(others, plotter.XY{X: x, Y: y})
		}
	}

	othersPlot, err := plotter.NewScatter(others)
	if err != nil {
		return err
	}
	othersPlot.GlyphStyle.Color = plotutil.Color(6)
	othersPlot.GlyphStyle.Radius = vg.Points(1.5)
	othersPlot.GlyphStyle.Shape = plotutil.Shape(0)

	passedPlot, err := plotter.NewScatter(passed)
	if err != nil {
		return err
	}
	passedPlot.GlyphStyle.Color = plotutil.Color(0)
	passedPlot.GlyphStyle.Radius = vg.Points(2)
	passedPlot.GlyphStyle.Shape = plotutil.Shape(0)

	p.Add(othersPlot, passedPlot)
	p.Legend.Add(fmt.Sprintf("other (%d)", len(others)), othersPlot)
	p.Legend.Add(fmt.Sprintf("DEG (%d)", nPassed), passedPlot)

	// padj threshold
	if criteria.Padj > 0 && criteria.Padj < 1 && maxX > minX {
		var y = -math.Log10(criteria.Padj)
		threshold, err := plotter.NewLine(plotter.XYs{{X: minX, Y: y}, {X: maxX, Y: y}})
		if err != nil {
			return err
		}
		threshold.Color = plotutil.Color(2)
		threshold.Dashes = plotutil.Dashes(1)
		p.Add(threshold)
	}

	return p.Save(10*vg.Inch, 8*vg.Inch, path)
}

func generateScatterItems(table DEGTable, keep func(DEGResult) bool) []opts.ScatterData {
	var items = make([]opts.ScatterData, 0)
	for _, r := range table {
		var x, y, ok = volcanoPoint(r)
		if ok && keep(r) {
			items = append(items, opts.ScatterData{Name: r.Gene, Value: []float64{x, y}})
		}
	}
	return items
}

// PlotVolcanoHTML interactive volcano plot
func PlotVolcanoHTML(path string, table DEGTable, criteria FilterCriteria) {
	var (
		scatter = charts.NewScatter()
		output  = osUtil.Create(path)
	)
	defer simpleUtil.DeferClose(output)
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Volcano",
			Subtitle: "cancer vs normal",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "log2FoldChange", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "-log10(padj)", Type: "value"}),
	)

	scatter.
		AddSeries("other", generateScatterItems(table, func(r DEGResult) bool { return !criteria.Pass(r) })).
		AddSeries("DEG", generateScatterItems(table, criteria.Pass))
	simpleUtil.CheckErr(scatter.Render(output))
}
