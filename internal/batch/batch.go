// Package batch drives the extraction over a set of PDF files, one document
// at a time.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/insightdelivered/discount-receipt-extractor/internal/logger"
	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

// PageSource returns the per-page text of a document.
type PageSource interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// Parser turns page text into a receipt.
type Parser interface {
	Parse(pages []string) (*models.Receipt, error)
}

// Recorder persists run history. *store.Store implements it.
type Recorder interface {
	BeginRun(ctx context.Context, source string) (string, error)
	RecordDocument(ctx context.Context, runID string, res models.DocumentResult) error
	FinishRun(ctx context.Context, runID string, total, failed int) error
}

// Runner processes documents sequentially. A failure, including a panic,
// in one document never stops the others.
type Runner struct {
	Pages  PageSource
	Parser Parser

	// Store is optional.
	Store Recorder
	// Input names the run in the store, typically the input folder.
	Input string
	// OnStart and OnDocument, when set, are called before and after each
	// document.
	OnStart    func(path string)
	OnDocument func(models.DocumentResult)
}

// Run processes paths in order and returns one result per processed path.
// Cancelling ctx stops the run between documents; the results gathered so
// far are returned together with ctx.Err().
func (r *Runner) Run(ctx context.Context, paths []string) ([]models.DocumentResult, error) {
	runID := uuid.NewString()
	if r.Store != nil {
		id, err := r.Store.BeginRun(ctx, r.Input)
		if err != nil {
			return nil, err
		}
		runID = id
	}
	ctx = logger.WithRunID(ctx, runID)
	log := logger.WithContext(ctx)
	log.Info("run started", "documents", len(paths), "input", r.Input)

	results := make([]models.DocumentResult, 0, len(paths))
	var runErr error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if r.OnStart != nil {
			r.OnStart(path)
		}
		docCtx := logger.WithDocument(ctx, filepath.Base(path))
		res := r.process(docCtx, path)
		results = append(results, res)

		docLog := logger.WithContext(docCtx)
		if res.OK() {
			docLog.Info("document processed", "pages", res.Pages, "titles", titleCount(res))
		} else {
			docLog.Error("document failed", "error", res.Err)
		}
		if r.Store != nil {
			// Store failures are logged, never fatal.
			if err := r.Store.RecordDocument(context.WithoutCancel(ctx), runID, res); err != nil {
				docLog.Warn("could not record document", "error", err)
			}
		}
		if r.OnDocument != nil {
			r.OnDocument(res)
		}
	}

	failed := Failed(results)
	if r.Store != nil {
		if err := r.Store.FinishRun(context.WithoutCancel(ctx), runID, len(results), failed); err != nil {
			log.Warn("could not finish run", "error", err)
		}
	}
	log.Info("run finished", "processed", len(results), "failed", failed)
	return results, runErr
}

func (r *Runner) process(ctx context.Context, path string) (res models.DocumentResult) {
	res = models.DocumentResult{Path: path, Name: filepath.Base(path)}
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("processing %s panicked: %v", res.Name, p)
		}
	}()

	pages, err := r.Pages.Pages(ctx, path)
	if err != nil {
		res.Err = fmt.Errorf("extract %s: %w", res.Name, err)
		return res
	}
	res.Pages = len(pages)

	receipt, err := r.Parser.Parse(pages)
	if receipt != nil {
		receipt.Name = res.Name
	}
	res.Receipt = receipt
	if err != nil {
		res.Err = fmt.Errorf("parse %s: %w", res.Name, err)
	}
	return res
}

func titleCount(res models.DocumentResult) int {
	if res.Receipt == nil {
		return 0
	}
	return len(res.Receipt.Titles)
}

// Failed counts the results that carry an error.
func Failed(results []models.DocumentResult) int {
	n := 0
	for _, res := range results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// Discover lists the PDF files directly inside dir, sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %q: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
