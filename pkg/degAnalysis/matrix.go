package degAnalysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CountMatrix raw read counts, Values[i][j] is the count of Rows[i] in Cols[j].
// Loaded as genes x samples, Transpose turns it into samples x genes.
type CountMatrix struct {
	// header of the key column, e.g. Ensembl_ID
	RowName string
	Rows    []string
	Cols    []string
	Values  [][]int32
}

// missing cell spellings, filled with 0
var missingValues = map[string]bool{
	"":    true,
	"NA":  true,
	"NaN": true,
	"nan": true,
	"N/A": true,
}

// ParseCount coerce one cell to int32: missing -> 0, fraction -> nearest integer (half to even)
func ParseCount(s string) (int32, error) {
	s = strings.TrimSpace(s)
	if missingValues[s] {
		return 0, nil
	}
	var f, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not numeric", s)
	}
	if math.IsNaN(f) {
		return 0, nil
	}
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	var r = math.RoundToEven(f)
	if r < 0 {
		return 0, fmt.Errorf("%q is a negative count", s)
	}
	if r > math.MaxInt32 {
		return 0, fmt.Errorf("%q overflows int32", s)
	}
	return int32(r), nil
}

// ParseCountRows build a genes x samples CountMatrix from a header row plus data rows,
// first column is the gene identifier. name is only used in error messages.
func ParseCountRows(name string, rows [][]string) (*CountMatrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s: empty table", ErrMalformedInput, name)
	}
	var header = trimTrailingEmpty(rows[0])
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: %s: header has no sample columns", ErrMalformedInput, name)
	}
	var m = &CountMatrix{
		RowName: strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")),
		Cols:    make([]string, len(header)-1),
	}
	var seen = make(map[string]bool)
	for j, s := range header[1:] {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("%w: %s: empty sample identifier at column %d", ErrMalformedInput, name, j+2)
		}
		if seen[s] {
			return nil, fmt.Errorf("%w: %s: duplicate sample identifier %q", ErrMalformedInput, name, s)
		}
		seen[s] = true
		m.Cols[j] = s
	}

	seen = make(map[string]bool)
	for i, row := range rows[1:] {
		row = trimTrailingEmpty(row)
		if len(row) == 0 {
			continue
		}
		var gene = strings.TrimSpace(row[0])
		if gene == "" {
			return nil, fmt.Errorf("%w: %s: line %d: empty gene identifier", ErrMalformedInput, name, i+2)
		}
		if seen[gene] {
			return nil, fmt.Errorf("%w: %s: duplicate gene identifier %q", ErrMalformedInput, name, gene)
		}
		seen[gene] = true
		if len(row) > len(header) {
			return nil, fmt.Errorf("%w: %s: gene %s has %d cells, header has %d", ErrMalformedInput, name, gene, len(row), len(header))
		}

		var values = make([]int32, len(m.Cols))
		for j := range m.Cols {
			if j+1 >= len(row) {
				break
			}
			var v, err = ParseCount(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("%w: %s: gene %s sample %s: %v", ErrMalformedInput, name, gene, m.Cols[j], err)
			}
			values[j] = v
		}
		m.Rows = append(m.Rows, gene)
		m.Values = append(m.Values, values)
	}
	if len(m.Rows) == 0 {
		return nil, fmt.Errorf("%w: %s: no data rows", ErrMalformedInput, name)
	}
	return m, nil
}

func trimTrailingEmpty(row []string) []string {
	var n = len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return row[:n]
}

// RowSums total count of every row
func (m *CountMatrix) RowSums() []int64 {
	var sums = make([]int64, len(m.Rows))
	for i, values := range m.Values {
		for _, v := range values {
			sums[i] += int64(v)
		}
	}
	return sums
}

// DropZeroRows return a copy without rows whose total is exactly 0, and the dropped row names
func (m *CountMatrix) DropZeroRows() (kept *CountMatrix, dropped []string) {
	kept = &CountMatrix{
		RowName: m.RowName,
		Cols:    append([]string(nil), m.Cols...),
	}
	for i, sum := range m.RowSums() {
		if sum == 0 {
			dropped = append(dropped, m.Rows[i])
			continue
		}
		kept.Rows = append(kept.Rows, m.Rows[i])
		kept.Values = append(kept.Values, append([]int32(nil), m.Values[i]...))
	}
	return
}

// Transpose return a new matrix with rows and columns swapped, rowName names the new key column
func (m *CountMatrix) Transpose(rowName string) *CountMatrix {
	var t = &CountMatrix{
		RowName: rowName,
		Rows:    append([]string(nil), m.Cols...),
		Cols:    append([]string(nil), m.Rows...),
		Values:  make([][]int32, len(m.Cols)),
	}
	for j := range m.Cols {
		t.Values[j] = make([]int32, len(m.Rows))
		for i := range m.Rows {
			t.Values[j][i] = m.Values[i][j]
		}
	}
	return t
}

// Column counts of column j across all rows, as float64
func (m *CountMatrix) Column(j int) []float64 {
	var col = make([]float64, len(m.Rows))
	for i := range m.Rows {
		col[i] = float64(m.Values[i][j])
	}
	return col
}

// RowIndex position of every row name
func (m *CountMatrix) RowIndex() map[string]int {
	var index = make(map[string]int, len(m.Rows))
	for i, s := range m.Rows {
		index[s] = i
	}
	return index
}
