package degAnalysis

import (
	"log/slog"
	"math"

	"github.com/liserjrqlxue/goUtil/simpleUtil"
	"github.com/xuri/excelize/v2"
)

// sheets of the Excel report, first one renames Sheet1
var SheetList = []string{"Statistics", "Filtered", "Metadata", "Genes", "Summary"}

func GetCellValue(xlsx *excelize.File, sheet string, col, row int) string {
	return simpleUtil.HandleError(
		xlsx.GetCellValue(
			sheet,
			simpleUtil.HandleError(excelize.CoordinatesToCellName(col, row)),
		),
	)
}

func SetCellStr(xlsx *excelize.File, sheet string, col, row int, value string) {
	simpleUtil.CheckErr(
		xlsx.SetCellStr(
			sheet,
			simpleUtil.HandleError(excelize.CoordinatesToCellName(col, row)),
			value,
		),
	)
}

func SetRow(xlsx *excelize.File, sheet string, col, row int, value []interface{}) {
	simpleUtil.CheckErr(
		xlsx.SetSheetRow(
			sheet,
			simpleUtil.HandleError(excelize.CoordinatesToCellName(col, row)),
			&value,
		),
	)
}

// cellFloat NaN and Inf are not valid numeric cells, write them as text
func cellFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return formatFloat(v)
	}
	return v
}

func (r DEGResult) cells() []interface{} {
	return []interface{}{
		r.Gene,
		cellFloat(r.BaseMean),
		cellFloat(r.Log2FoldChange),
		cellFloat(r.LfcSE),
		cellFloat(r.Stat),
		cellFloat(r.Pvalue),
		cellFloat(r.Padj),
	}
}

func stringsRow(values []string) []interface{} {
	var row = make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func writeTableSheet(xlsx *excelize.File, sheet string, table DEGTable) {
	SetRow(xlsx, sheet, 1, 1, stringsRow(TitleDEG))
	for i, r := range table {
		SetRow(xlsx, sheet, 1, i+2, r.cells())
	}
	simpleUtil.CheckErr(xlsx.SetColWidth(sheet, "A", "A", 20))
	simpleUtil.CheckErr(xlsx.SetColWidth(sheet, "B", "G", 14))
}

// WriteXlsx statistics, filtered rows, sample conditions, gene list and summary of p
func (p *Pipeline) WriteXlsx(path string) {
	var xlsx = excelize.NewFile()
	defer simpleUtil.DeferClose(xlsx)

	var center = &excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
		},
	}
	var centerStyle = simpleUtil.HandleError(xlsx.NewStyle(center))

	for i, sheet := range SheetList {
		if i == 0 {
			simpleUtil.CheckErr(xlsx.SetSheetName("Sheet1", sheet))
		} else {
			simpleUtil.HandleError(xlsx.NewSheet(sheet))
		}
	}

	var filtered = p.Filtered
	if filtered == nil {
		filtered = FilterResults(p.Results, p.Criteria)
	}
	writeTableSheet(xlsx, "Statistics", p.Results)
	writeTableSheet(xlsx, "Filtered", filtered.Table)

	if p.Metadata != nil {
		var sheet = "Metadata"
		SetRow(xlsx, sheet, 1, 1, []interface{}{"sample", ConditionFactor})
		for i, s := range p.Metadata.Samples {
			SetRow(xlsx, sheet, 1, i+2, []interface{}{s, string(p.Metadata.Conditions[i])})
		}
		simpleUtil.CheckErr(xlsx.SetColWidth(sheet, "A", "A", 30))
		simpleUtil.CheckErr(xlsx.SetColWidth(sheet, "B", "B", 12))
		simpleUtil.CheckErr(xlsx.SetColStyle(sheet, "B", centerStyle))
	}

	SetCellStr(xlsx, "Genes", 1, 1, "gene")
	for i, gene := range filtered.Genes {
		SetCellStr(xlsx, "Genes", 1, i+2, gene)
	}
	simpleUtil.CheckErr(xlsx.SetColWidth("Genes", "A", "A", 20))

	var summary = Summarize(p.Results, filtered, p.Criteria)
	SetRow(xlsx, "Summary", 1, 1, []interface{}{"Name", "Value"})
	for i, row := range summary.Rows() {
		SetRow(xlsx, "Summary", 1, i+2, stringsRow(row))
	}
	simpleUtil.CheckErr(xlsx.SetColWidth("Summary", "A", "A", 20))
	simpleUtil.CheckErr(xlsx.SetColStyle("Summary", "B", centerStyle))

	slog.Info("WriteXlsx", "path", path)
	simpleUtil.CheckErr(xlsx.SaveAs(path))
}
