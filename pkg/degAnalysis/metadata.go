package degAnalysis

import (
	"fmt"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Condition sample group of the design factor
type Condition string

const (
	Cancer Condition = "cancer"
	Normal Condition = "normal"
)

// ConditionFactor name of the design factor column
const ConditionFactor = "Condition"

// DefaultCancerCode TCGA barcode segment of primary tumor samples
const DefaultCancerCode = "-01"

// Label TCGA barcode convention: cancer iff id contains "-01" anywhere.
// The match is unanchored, so other barcode fields containing "-01" are labeled cancer too.
func Label(id string) Condition {
	if strings.Contains(id, DefaultCancerCode) {
		return Cancer
	}
	return Normal
}

// Labeler derive a Condition from a sample identifier
type Labeler interface {
	Label(id string) Condition
}

// LabelFunc adapt a plain function to Labeler
type LabelFunc func(id string) Condition

func (f LabelFunc) Label(id string) Condition {
	return f(id)
}

// BarcodeLabeler cancer iff id contains any of CancerCodes, unanchored like Label
type BarcodeLabeler struct {
	CancerCodes []string
	matcher     *ahocorasick.Matcher
}

// NewBarcodeLabeler empty codes fall back to DefaultCancerCode
func NewBarcodeLabeler(codes ...string) *BarcodeLabeler {
	var cancerCodes []string
	for _, code := range codes {
		if code != "" {
			cancerCodes = append(cancerCodes, code)
		}
	}
	if len(cancerCodes) == 0 {
		cancerCodes = []string{DefaultCancerCode}
	}
	return &BarcodeLabeler{
		CancerCodes: cancerCodes,
		matcher:     ahocorasick.NewStringMatcher(cancerCodes),
	}
}

func (l *BarcodeLabeler) Label(id string) Condition {
	if l.matcher.Contains([]byte(id)) {
		return Cancer
	}
	return Normal
}

// SampleMetadata one Condition per sample, Conditions[i] belongs to Samples[i]
type SampleMetadata struct {
	Samples    []string
	Conditions []Condition
}

// LabelSamples label ids in order, nil labeler means Label
func LabelSamples(ids []string, labeler Labeler) *SampleMetadata {
	if labeler == nil {
		labeler = LabelFunc(Label)
	}
	var meta = &SampleMetadata{
		Samples:    append([]string(nil), ids...),
		Conditions: make([]Condition, len(ids)),
	}
	for i, id := range ids {
		meta.Conditions[i] = labeler.Label(id)
	}
	return meta
}

// Lookup condition of one sample
func (meta *SampleMetadata) Lookup() map[string]Condition {
	var m = make(map[string]Condition, len(meta.Samples))
	for i, s := range meta.Samples {
		m[s] = meta.Conditions[i]
	}
	return m
}

// Count samples per condition
func (meta *SampleMetadata) Count() map[Condition]int {
	var count = make(map[Condition]int)
	for _, c := range meta.Conditions {
		count[c]++
	}
	return count
}

// CheckCoIndexed every matrix row has exactly one metadata row and vice versa
func (meta *SampleMetadata) CheckCoIndexed(counts *CountMatrix) error {
	if len(meta.Samples) != len(meta.Conditions) {
		return fmt.Errorf("%w: metadata has %d samples but %d conditions", ErrMalformedInput, len(meta.Samples), len(meta.Conditions))
	}
	var lookup = meta.Lookup()
	if len(lookup) != len(meta.Samples) {
		return fmt.Errorf("%w: duplicate sample in metadata", ErrMalformedInput)
	}
	for _, s := range counts.Rows {
		if _, ok := lookup[s]; !ok {
			return fmt.Errorf("%w: sample %s has no metadata", ErrMalformedInput, s)
		}
	}
	if len(counts.Rows) != len(meta.Samples) {
		var rows = counts.RowIndex()
		for _, s := range meta.Samples {
			if _, ok := rows[s]; !ok {
				return fmt.Errorf("%w: metadata sample %s is not in the count matrix", ErrMalformedInput, s)
			}
		}
		return fmt.Errorf("%w: duplicate sample in count matrix", ErrMalformedInput)
	}
	for _, c := range meta.Conditions {
		if c != Cancer && c != Normal {
			return fmt.Errorf("%w: unknown condition %q", ErrMalformedInput, c)
		}
	}
	return nil
}
