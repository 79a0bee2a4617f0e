package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"DEGAnalysis/pkg/degAnalysis"
	"DEGAnalysis/pkg/wechatwork"

	"github.com/liserjrqlxue/goUtil/simpleUtil"
)

// os
var (
	ex, _  = os.Executable()
	exPath = filepath.Dir(ex)
)

// regexp
var (
	inputExt = regexp.MustCompile(`(?i)(\.(csv|tsv|txt|xlsx|xls))?(\.gz)?$`)
)

// flag
var (
	input = flag.String(
		"i",
		"",
		"raw count matrix, genes x samples: .csv .tsv .txt .xlsx .xls, optionally .gz",
	)
	stats = flag.String(
		"stats",
		"",
		"re-filter a saved statistics table (.csv or .tsv) instead of running the engine",
	)
	output = flag.String(
		"o",
		"",
		"output prefix, default is [input basename].DEG",
	)
	engine = flag.String(
		"engine",
		"native",
		"DE engine: native or rscript",
	)
	rscript = flag.String(
		"rscript",
		"Rscript",
		"Rscript executable for -engine rscript",
	)
	script = flag.String(
		"script",
		"",
		"DESeq2 R script for -engine rscript, default embedded etc/deseq2.R",
	)
	keepTemp = flag.Bool(
		"keepTemp",
		false,
		"keep the Rscript work directory",
	)
	thread = flag.Int(
		"t",
		0,
		"threads of the native engine, default GOMAXPROCS",
	)
	codes = flag.String(
		"codes",
		degAnalysis.DefaultCancerCode,
		"comma separated barcode substrings labeling a sample cancer",
	)
	criteriaTxt = flag.String(
		"criteria",
		"",
		"Name\\tValue thresholds file, default embedded etc/criteria.txt",
	)
	padj = flag.Float64(
		"padj",
		0.05,
		"keep padj < padj",
	)
	log2FoldChange = flag.Float64(
		"log2FoldChange",
		0.0,
		"keep |log2FoldChange| > log2FoldChange",
	)
	baseMean = flag.Float64(
		"baseMean",
		10,
		"keep baseMean > baseMean",
	)
	pvalue = flag.Float64(
		"pvalue",
		0.0,
		"keep pvalue < pvalue",
	)
	lfcSE = flag.Float64(
		"lfcSE",
		0.0,
		"keep lfcSE > lfcSE",
	)
	stat = flag.Float64(
		"stat",
		0.0,
		"keep |stat| > stat",
	)
	xlsx = flag.Bool(
		"xlsx",
		true,
		"write Excel report",
	)
	plot = flag.Bool(
		"plot",
		false,
		"write volcano plot png and html",
	)
	webhook = flag.String(
		"webhook",
		"",
		"WeChat Work webhook key, notify summary when set",
	)
	timeout = flag.Duration(
		"timeout",
		0,
		"abandon the DE fit after timeout, 0 means no limit",
	)
	debug = flag.Bool(
		"debug",
		false,
		"debug log",
	)
)

// thresholds set on the command line override the criteria file
var thresholdFlags = map[string]*float64{
	"padj":           padj,
	"log2FoldChange": log2FoldChange,
	"baseMean":       baseMean,
	"pvalue":         pvalue,
	"lfcSE":          lfcSE,
	"stat":           stat,
}

func loadCriteria() degAnalysis.FilterCriteria {
	var criteria degAnalysis.FilterCriteria
	if *criteriaTxt == "" {
		criteria = simpleUtil.HandleError(degAnalysis.LoadCriteria(degAnalysis.CriteriaTxt, exPath, degAnalysis.EtcFS))
	} else {
		criteria = simpleUtil.HandleError(degAnalysis.LoadCriteria(*criteriaTxt, "", degAnalysis.EtcFS))
	}
	flag.Visit(func(f *flag.Flag) {
		if v, ok := thresholdFlags[f.Name]; ok {
			simpleUtil.CheckErr(criteria.Set(f.Name, *v))
		}
	})
	return criteria
}

func newEngine() degAnalysis.Engine {
	switch *engine {
	case "native":
		return degAnalysis.NewNativeEngine(*thread)
	case "rscript":
		var e = degAnalysis.NewRscriptEngine(*rscript, *script)
		e.KeepTemp = *keepTemp
		return e
	}
	slog.Error("unknown engine", "engine", *engine)
	os.Exit(1)
	return nil
}

func main() {
	flag.Parse()
	if *input == "" && *stats == "" {
		flag.PrintDefaults()
		slog.Error("-i or -stats required!")
		os.Exit(1)
	}
	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	var now = time.Now()

	if *output == "" {
		var base = *input
		if base == "" {
			base = *stats
		}
		*output = inputExt.ReplaceAllString(filepath.Base(base), "") + ".DEG"
	}

	var (
		criteria = loadCriteria()
		pipeline = degAnalysis.NewPipeline(*input, newEngine(), degAnalysis.NewBarcodeLabeler(strings.Split(*codes, ",")...))
	)
	pipeline.Criteria = criteria

	if *stats != "" {
		pipeline.Input = *stats
		pipeline.Results = simpleUtil.HandleError(degAnalysis.LoadDEGTable(*stats))
		slog.Info("LoadDEGTable", "path", *stats, "genes", len(pipeline.Results))
	} else {
		var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if *timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, *timeout)
			defer cancel()
		}

		simpleUtil.CheckErr(pipeline.Preprocess())
		simpleUtil.CheckErr(pipeline.RunDEG(ctx))
		degAnalysis.WriteDEGTable(*output+".stats.tsv", pipeline.Results)
		simpleUtil.CheckErr(degAnalysis.WriteDEGCSV(*output+".stats.csv", pipeline.Results))
	}

	var filtered = pipeline.FilterResults(criteria)
	degAnalysis.WriteDEGTable(*output+".filtered.tsv", filtered.Table)
	degAnalysis.WriteGeneList(*output+".genes.txt", filtered.Genes)

	var summary = degAnalysis.Summarize(pipeline.Results, filtered, criteria)
	summary.WriteSummary(*output + ".summary.txt")

	if *xlsx {
		pipeline.WriteXlsx(*output + ".xlsx")
	}
	if *plot {
		simpleUtil.CheckErr(degAnalysis.PlotVolcano(*output+".volcano.png", pipeline.Results, criteria))
		degAnalysis.PlotVolcanoHTML(*output+".volcano.html", pipeline.Results, criteria)
	}

	var sender = wechatwork.NewNotificationSender(*webhook)
	if err := sender.SendMarkdown(summary.Markdown(pipeline.Input)); err != nil {
		slog.Warn("notification failed", "err", err)
	}

	slog.Info("Done", "passed", summary.Passed, "time", time.Since(now))
}
