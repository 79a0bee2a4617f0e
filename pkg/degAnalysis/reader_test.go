package degAnalysis

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	gzip "github.com/klauspost/pgzip"
	"github.com/xuri/excelize/v2"
)

const testCSV = "Ensembl_ID,TCGA-AA-01,TCGA-AA-11,TCGA-BB-01\n" +
	"G1,10,20,30\n" +
	"G2,0,0,0\n" +
	"G3,1.5,NA,\n"

var testRows = [][]string{
	{"Ensembl_ID", "TCGA-AA-01", "TCGA-AA-11", "TCGA-BB-01"},
	{"G1", "10", "20", "30"},
	{"G2", "0", "0", "0"},
	{"G3", "1.5", "NA", ""},
}

func TestDetectFormat(t *testing.T) {
	var tests = []struct {
		name   string
		format Format
		gz     bool
	}{
		{"counts.csv", FormatCSV, false},
		{"COUNTS.CSV", FormatCSV, false},
		{"counts.tsv", FormatTSV, false},
		{"counts.txt.gz", FormatTSV, true},
		{"counts.xlsx", FormatXLSX, false},
		{"counts.xls", FormatXLS, false},
		{"counts.csv.GZ", FormatCSV, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var format, gz, err = DetectFormat(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if format != tt.format || gz != tt.gz {
				t.Errorf("DetectFormat(%s) = %s, %v; want %s, %v", tt.name, format, gz, tt.format, tt.gz)
			}
		})
	}

	for _, name := range []string{"counts.json", "counts", "counts.gz"} {
		if _, _, err := DetectFormat(name); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("DetectFormat(%s) error = %v; want ErrUnsupportedFormat", name, err)
		}
	}
}

func TestReadTable(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		var rows, err = ReadTable("counts.csv", strings.NewReader(testCSV))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(rows, testRows) {
			t.Errorf("ReadTable() = %v; want %v", rows, testRows)
		}
	})

	t.Run("tsv", func(t *testing.T) {
		var tsv = strings.ReplaceAll(testCSV, ",", "\t")
		var rows, err = ReadTable("counts.tsv", strings.NewReader(tsv))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(rows, testRows) {
			t.Errorf("ReadTable() = %v; want %v", rows, testRows)
		}
	})

	t.Run("underscore ids", func(t *testing.T) {
		var (
			tsv  = "Gene_ID\tS-01\tS-11\nHLA_A\t5\t6\nHLA_B\t7\t8\n"
			want = [][]string{
				{"Gene_ID", "S-01", "S-11"},
				{"HLA_A", "5", "6"},
				{"HLA_B", "7", "8"},
			}
		)
		for _, name := range []string{"counts.tsv", "counts.txt"} {
			var rows, err = ReadTable(name, strings.NewReader(tsv))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(rows, want) {
				t.Errorf("ReadTable(%s) = %q; want %q", name, rows, want)
			}
			if _, err = ParseCountRows(name, rows); err != nil {
				t.Errorf("ParseCountRows(%s) error = %v", name, err)
			}
		}
	})

	t.Run("txt sniffed", func(t *testing.T) {
		var rows, err = ReadTable("counts.txt", strings.NewReader(testCSV))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(rows, testRows) {
			t.Errorf("ReadTable() = %v; want %v", rows, testRows)
		}
	})

	t.Run("gz", func(t *testing.T) {
		var buf bytes.Buffer
		var w = gzip.NewWriter(&buf)
		if _, err := w.Write([]byte(testCSV)); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		var rows, err = ReadTable("counts.csv.gz", &buf)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(rows, testRows) {
			t.Errorf("ReadTable() = %v; want %v", rows, testRows)
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		var xlsx = excelize.NewFile()
		defer xlsx.Close()
		for i, row := range [][]interface{}{
			{"Ensembl_ID", "TCGA-AA-01", "TCGA-AA-11", "TCGA-BB-01"},
			{"G1", 10, 20, 30},
			{"G2", 0, 0, 0},
			{"G3", 1.5, "NA"},
		} {
			SetRow(xlsx, "Sheet1", 1, i+1, row)
		}
		var buf, err = xlsx.WriteToBuffer()
		if err != nil {
			t.Fatal(err)
		}
		rows, err := ReadTable("counts.xlsx", buf)
		if err != nil {
			t.Fatal(err)
		}
		var m, _ = ParseCountRows("counts.xlsx", rows)
		var want, _ = ParseCountRows("counts.csv", testRows)
		if !reflect.DeepEqual(m, want) {
			t.Errorf("xlsx matrix = %+v; want %+v", m, want)
		}
	})

	t.Run("corrupt gz", func(t *testing.T) {
		var _, err = ReadTable("counts.csv.gz", strings.NewReader(testCSV))
		if !errors.Is(err, ErrMalformedInput) {
			t.Errorf("ReadTable() error = %v; want ErrMalformedInput", err)
		}
	})
}

func TestPreprocess(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "counts.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0644); err != nil {
		t.Fatal(err)
	}

	var counts, meta, err = Preprocess(path)
	if err != nil {
		t.Fatal(err)
	}
	var want = &CountMatrix{
		RowName: SampleRowName,
		Rows:    []string{"TCGA-AA-01", "TCGA-AA-11", "TCGA-BB-01"},
		Cols:    []string{"G1", "G3"},
		Values:  [][]int32{{10, 2}, {20, 0}, {30, 0}},
	}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("Preprocess() counts = %+v; want %+v", counts, want)
	}
	if err = meta.CheckCoIndexed(counts); err != nil {
		t.Errorf("metadata not co-indexed: %v", err)
	}
	if !reflect.DeepEqual(meta.Conditions, []Condition{Cancer, Normal, Cancer}) {
		t.Errorf("Preprocess() conditions = %v", meta.Conditions)
	}

	t.Run("idempotent", func(t *testing.T) {
		var again, _, err = Preprocess(path)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(again, counts) {
			t.Errorf("second Preprocess() = %+v; want %+v", again, counts)
		}
	})

	t.Run("reader", func(t *testing.T) {
		var fromReader, _, err = PreprocessReader("upload.csv", strings.NewReader(testCSV))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(fromReader, counts) {
			t.Errorf("PreprocessReader() = %+v; want %+v", fromReader, counts)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		var _, _, err = PreprocessReader("upload.json", strings.NewReader(testCSV))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("PreprocessReader() error = %v; want ErrUnsupportedFormat", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		var _, _, err = PreprocessReader("upload.csv", strings.NewReader("Ensembl_ID,S1\nG1,many\n"))
		if !errors.Is(err, ErrMalformedInput) {
			t.Errorf("PreprocessReader() error = %v; want ErrMalformedInput", err)
		}
	})
}
