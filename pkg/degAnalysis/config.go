package degAnalysis

import "embed"

// EtcFS default configuration: criteria.txt thresholds and the deseq2.R script
//
//go:embed etc/*
var EtcFS embed.FS

const (
	CriteriaTxt = "etc/criteria.txt"
	Deseq2R     = "etc/deseq2.R"
)
