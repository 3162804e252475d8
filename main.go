package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/insightdelivered/discount-receipt-extractor/internal/api"
	"github.com/insightdelivered/discount-receipt-extractor/internal/batch"
	"github.com/insightdelivered/discount-receipt-extractor/internal/config"
	"github.com/insightdelivered/discount-receipt-extractor/internal/extractor"
	"github.com/insightdelivered/discount-receipt-extractor/internal/logger"
	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
	"github.com/insightdelivered/discount-receipt-extractor/internal/parser"
	"github.com/insightdelivered/discount-receipt-extractor/internal/store"
	"github.com/insightdelivered/discount-receipt-extractor/internal/writer"
)

const version = "1.0.0"

// exitInterrupted is the conventional status for a run stopped by SIGINT.
const exitInterrupted = 130

func main() {
	os.Exit(realMain())
}

func realMain() int {
	defaults := config.Default()

	// CLI flags
	configFlag := flag.String("config", "", "YAML configuration file")
	outputFlag := flag.String("output", "", "Report path: the workbook file for xlsx, a folder for csv (defaults to the input folder)")
	formatFlag := flag.String("format", defaults.Output.Format, "Report format: xlsx or csv")
	headerFlag := flag.Bool("header", defaults.Output.Header, "Include receipt metadata rows in CSV output")
	ocrFlag := flag.Bool("ocr", defaults.OCR.Enabled, "Fall back to Tesseract OCR for image-only PDFs")
	dbFlag := flag.String("db", "", "SQLite file recording run history (disabled when empty)")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of processing files")
	historyFlag := flag.String("history", "", `Show run history from -db instead of processing files: "runs" lists recent runs, a run ID lists its documents`)
	addrFlag := flag.String("addr", defaults.Server.Addr, "Listen address for -serve")
	logLevelFlag := flag.String("log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Discount Receipt Extractor
by Insight Delivered

Reads bank "desconto de títulos" receipt PDFs and extracts the operation
data, the financial values, the titles table and the deduction
total − (net + fee + IOF) into a spreadsheet report.

Usage:
  discount-receipt-extractor [flags] <folder | file.pdf ...>

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Every PDF in a folder, report written to <folder>/%s
  discount-receipt-extractor ./comprovantes

  # CSV per document, with metadata header rows
  discount-receipt-extractor -format=csv -output=./csv a.pdf b.pdf

  # Scanned receipts
  discount-receipt-extractor -ocr ./digitalizados

  # HTTP API
  discount-receipt-extractor -serve -addr=:9000

  # Past runs recorded in a history database
  discount-receipt-extractor -db=historico.db -history=runs

Environment:
  DRE_* variables (also read from .env) override the config file;
  flags override both.
`, writer.DefaultWorkbookName)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("discount-receipt-extractor v%s\n", version)
		return 0
	}

	if *helpFlag || (flag.NArg() == 0 && !*serveFlag && *historyFlag == "") {
		flag.Usage()
		return 0
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Path = *outputFlag
		case "format":
			cfg.Output.Format = *formatFlag
		case "header":
			cfg.Output.Header = *headerFlag
		case "ocr":
			cfg.OCR.Enabled = *ocrFlag
		case "db":
			cfg.Store.Path = *dbFlag
		case "addr":
			cfg.Server.Addr = *addrFlag
		case "log-level":
			cfg.Log.Level = *logLevelFlag
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening history database: %v\n", err)
			return 1
		}
		defer st.Close()
	}

	if *historyFlag != "" {
		if st == nil {
			fmt.Fprintln(os.Stderr, "Error: -history needs a database (-db or DRE_DB_PATH).")
			return 1
		}
		return showHistory(ctx, os.Stdout, st, *historyFlag)
	}

	if cfg.OCR.Enabled && !extractor.IsOCRAvailable() {
		fmt.Fprintln(os.Stderr, "Warning: OCR requested but pdftoppm is not installed; scanned PDFs will fail.")
	}
	source := &extractor.Source{
		OCR:            cfg.OCR.Enabled,
		TessdataPrefix: cfg.OCR.TessdataPrefix,
		Language:       cfg.OCR.Language,
		Logger:         slog.Default(),
	}

	if *serveFlag {
		return serve(ctx, cfg, source, st)
	}
	var history batch.Recorder
	if st != nil {
		history = st
	}
	return run(ctx, cfg, source, history, flag.Args())
}

func run(ctx context.Context, cfg *config.Config, source batch.PageSource, history batch.Recorder, args []string) int {
	paths, inputDir, err := collectInputs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "No PDF files found.")
		return 1
	}

	runner := &batch.Runner{
		Pages:  source,
		Parser: parser.New(),
		Store:  history,
		Input:  inputDir,
		OnStart: func(path string) {
			fmt.Printf("Processing: %s\n", filepath.Base(path))
		},
		OnDocument: printResult,
	}

	results, runErr := runner.Run(ctx, paths)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}

	if len(results) > 0 {
		if err := writeReport(cfg, inputDir, results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			return 1
		}
	}
	printSummary(results)

	switch {
	case runErr != nil:
		fmt.Fprintln(os.Stderr, "Interrupted.")
		return exitInterrupted
	case batch.Failed(results) == len(results):
		return 1
	}
	return 0
}

// collectInputs expands folders into their PDF files. The input folder is
// the first folder argument or, failing that, the folder of the first file.
func collectInputs(args []string) ([]string, string, error) {
	var (
		paths    []string
		inputDir string
		firstDir string
	)
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, "", fmt.Errorf("input not found: %s", arg)
		}
		if fi.IsDir() {
			found, err := batch.Discover(arg)
			if err != nil {
				return nil, "", err
			}
			paths = append(paths, found...)
			if inputDir == "" {
				inputDir = arg
			}
			continue
		}
		if ext := strings.ToLower(filepath.Ext(arg)); ext != ".pdf" {
			return nil, "", fmt.Errorf("expected .pdf file, got %q", ext)
		}
		paths = append(paths, arg)
		if firstDir == "" {
			firstDir = filepath.Dir(arg)
		}
	}
	if inputDir == "" {
		inputDir = firstDir
	}
	return paths, inputDir, nil
}

func writeReport(cfg *config.Config, inputDir string, results []models.DocumentResult) error {
	if cfg.Output.Format == "csv" {
		outDir := cfg.Output.Path
		if outDir == "" {
			outDir = inputDir
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		w := &writer.CSVWriter{IncludeHeader: cfg.Output.Header}
		for _, res := range results {
			if res.Receipt == nil {
				continue
			}
			outPath := filepath.Join(outDir, strings.TrimSuffix(res.Name, filepath.Ext(res.Name))+".csv")
			if err := w.WriteToFile(outPath, res.Receipt); err != nil {
				return fmt.Errorf("CSV write failed: %w", err)
			}
			fmt.Printf("Output: %s\n", outPath)
		}
		return nil
	}

	outPath := cfg.Output.Path
	if outPath == "" {
		outPath = filepath.Join(inputDir, writer.DefaultWorkbookName)
	}
	if err := (&writer.XLSXWriter{}).WriteToFile(outPath, results); err != nil {
		return err
	}
	fmt.Printf("Report: %s\n", outPath)
	return nil
}

func printResult(res models.DocumentResult) {
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "  Error processing %s: %v\n", res.Name, res.Err)
	}
	r := res.Receipt
	if r == nil {
		return
	}

	fmt.Printf("  Extracted text from %d page(s)\n", res.Pages)
	fmt.Printf("  Found %d title(s)\n", len(r.Titles))
	if name := r.Essential.Cedente(); name != "" {
		fmt.Printf("  Cliente/Cedente: %s\n", name)
	}
	if r.Deduction != nil {
		fmt.Printf("  Resultado da dedução: %s\n", writer.FormatBRL(r.Deduction.Result))
	}
	for _, w := range r.Warnings {
		fmt.Printf("  Warning: %s\n", w)
	}
}

func printSummary(results []models.DocumentResult) {
	failed := batch.Failed(results)
	fmt.Printf("\nProcessed %d document(s), %d failed.\n", len(results), failed)
	for _, res := range results {
		if !res.OK() {
			fmt.Printf("  %s: %s\n", res.Name, res.Reason())
		}
	}
}

func serve(ctx context.Context, cfg *config.Config, source batch.PageSource, st *store.Store) int {
	api.Version = version
	h := &api.Handler{
		Source:    source,
		Parser:    parser.New(),
		StaticDir: cfg.Server.StaticDir,
	}
	if st != nil {
		h.Store = st
		h.History = st
	}
	app := api.NewApp(h, cfg.Server.MaxUploadMB<<20)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	slog.Info("listening", "addr", cfg.Server.Addr, "version", version)
	if err := app.Listen(cfg.Server.Addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		return 1
	}
	return 0
}

// showHistory prints the recent runs when which is "runs", otherwise the
// documents of the run with that ID.
func showHistory(ctx context.Context, out io.Writer, h api.History, which string) int {
	if which == "runs" {
		runs, err := h.ListRuns(ctx, store.DefaultRunLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return 0
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  %d document(s), %d failed  %s\n",
				r.ID, time.UnixMilli(r.StartedAt).Format("2006-01-02 15:04:05"), r.Total, r.Failed, r.Source)
		}
		return 0
	}

	run, err := h.GetRun(ctx, which)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if run == nil {
		fmt.Fprintf(os.Stderr, "Run %q not found.\n", which)
		return 1
	}
	docs, err := h.ListDocuments(ctx, run.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Run %s (%s): %d document(s), %d failed\n", run.ID, run.Source, run.Total, run.Failed)
	for _, d := range docs {
		line := fmt.Sprintf("  %s  %s  %d title(s)", d.Name, d.Status, d.Titles)
		if d.Deduction != "" {
			line += "  resultado " + d.Deduction
		}
		if d.Error != "" {
			line += "  " + d.Error
		}
		fmt.Fprintln(out, line)
	}
	return 0
}
