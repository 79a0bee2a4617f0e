package degAnalysis

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/csimplestring/go-csv/detector"
	"github.com/extrame/xls"
	gzip "github.com/klauspost/pgzip"
	"github.com/liserjrqlxue/goUtil/simpleUtil"
	"github.com/xuri/excelize/v2"
)

// regexp
var (
	isGz = regexp.MustCompile(`(?i)\.gz$`)
)

// Format serialization of a count table, decided by file extension
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

var extFormat = map[string]Format{
	".csv":  FormatCSV,
	".tsv":  FormatTSV,
	".txt":  FormatTSV,
	".xlsx": FormatXLSX,
	".xls":  FormatXLS,
}

// DetectFormat map a file name to its Format, a trailing .gz is reported separately
func DetectFormat(name string) (format Format, gz bool, err error) {
	var base = name
	if isGz.MatchString(base) {
		gz = true
		base = base[:len(base)-3]
	}
	var ok bool
	format, ok = extFormat[strings.ToLower(filepath.Ext(base))]
	if !ok {
		return "", gz, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	return format, gz, nil
}

// ReadTable read all rows of a count table, name decides the Format
func ReadTable(name string, r io.Reader) ([][]string, error) {
	var format, gz, err = DetectFormat(name)
	if err != nil {
		return nil, err
	}
	if gz {
		var gr, err = gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, name, err)
		}
		defer simpleUtil.DeferClose(gr)
		r = gr
	}
	slog.Debug("ReadTable", "name", name, "format", format, "gz", gz)

	switch format {
	case FormatCSV:
		return readDelimited(name, r, ',')
	case FormatTSV:
		if !isTxt(name) {
			return readDelimited(name, r, '\t')
		}
		var data, err = io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, name, err)
		}
		return readDelimited(name, bytes.NewReader(data), DetermineDelimiter(bytes.NewReader(data), '\t'))
	case FormatXLSX:
		return readXlsx(name, r)
	case FormatXLS:
		return readXls(name, r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// ReadTableFile open path and ReadTable it
func ReadTableFile(path string) ([][]string, error) {
	if _, _, err := DetectFormat(path); err != nil {
		return nil, err
	}
	var file, err = os.Open(path)
	if err != nil {
		return nil, err
	}
	defer simpleUtil.DeferClose(file)
	return ReadTable(filepath.Base(path), file)
}

// isTxt .txt or .txt.gz, the only extension whose delimiter is sniffed
func isTxt(name string) bool {
	return strings.EqualFold(filepath.Ext(isGz.ReplaceAllString(name, "")), ".txt")
}

// delimiters accepted from the detector
const txtDelimiters = "\t,;|"

// DetermineDelimiter returns the first detected delimiter among txtDelimiters,
// fallback when none is detected.
func DetermineDelimiter(r io.Reader, fallback rune) rune {
	for _, d := range detector.New().DetectDelimiter(r, '"') {
		if len(d) == 1 && strings.Contains(txtDelimiters, d) {
			return rune(d[0])
		}
	}
	return fallback
}

func readDelimited(name string, r io.Reader, comma rune) ([][]string, error) {
	var reader = csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	var rows, err = reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, name, err)
	}
	return rows, nil
}

// first sheet of the workbook, raw cell values so number formats do not leak into counts
func readXlsx(name string, r io.Reader) ([][]string, error) {
	var xlsx, err = excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, name, err)
	}
	defer simpleUtil.DeferClose(xlsx)

	var sheets = xlsx.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s: no sheet", ErrMalformedInput, name)
	}
	rows, err := xlsx.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: sheet %s: %v", ErrMalformedInput, name, sheets[0], err)
	}
	return rows, nil
}

func readXls(name string, r io.Reader) ([][]string, error) {
	var data, err = io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, name, err)
	}
	workBook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, name, err)
	}
	if workBook.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: %s: no sheet", ErrMalformedInput, name)
	}
	var sheet = workBook.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%w: %s: sheet 0 was nil", ErrMalformedInput, name)
	}

	var rows [][]string
	for rowID := 0; rowID <= int(sheet.MaxRow); rowID++ {
		var row = sheet.Row(rowID)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		var cells = make([]string, 0, row.LastCol()+1)
		for colID := 0; colID <= row.LastCol(); colID++ {
			cells = append(cells, row.Col(colID))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
