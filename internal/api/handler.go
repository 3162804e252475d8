package api

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/insightdelivered/discount-receipt-extractor/internal/batch"
	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
	"github.com/insightdelivered/discount-receipt-extractor/internal/store"
	"github.com/insightdelivered/discount-receipt-extractor/internal/writer"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

// PageBreak separates pages in the extractedText form field.
const PageBreak = "\n---PAGE_BREAK---\n"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var errNotPDF = errors.New("only PDF files are supported")

// ExtractResponse is the JSON response from the /api/extract endpoint.
type ExtractResponse struct {
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	Documents []DocumentResponse `json:"documents"`
	Count     int                `json:"count"`
	Failed    int                `json:"failed"`
	Version   string             `json:"version,omitempty"`
}

// DocumentResponse is the outcome of one uploaded document.
type DocumentResponse struct {
	Name      string          `json:"name"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	Pages     int             `json:"pages"`
	Receipt   *models.Receipt `json:"receipt,omitempty"`
	Resultado string          `json:"resultado,omitempty"`
	CSV       string          `json:"csv,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Source batch.PageSource
	Parser batch.Parser
	// Store is optional; uploads are recorded as runs when set.
	Store batch.Recorder
	// History, when set, serves the recorded runs under /api/runs.
	History   History
	StaticDir string
}

// History reads back recorded runs. *store.Store implements it.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
	ListDocuments(ctx context.Context, runID string) ([]store.Document, error)
}

// RunResponse is one run with its documents.
type RunResponse struct {
	Run       *store.Run        `json:"run"`
	Documents []HistoryDocument `json:"documents"`
}

// HistoryDocument is a stored document with its receipt decoded.
type HistoryDocument struct {
	store.Document
	Receipt json.RawMessage `json:"receipt,omitempty"`
}

// NewApp builds the fiber application serving h. bodyLimit caps uploads in
// bytes.
func NewApp(h *Handler, bodyLimit int) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "discount-receipt-extractor",
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", HandleHealth)
	app.Post("/api/extract", h.HandleExtract)
	if h.History != nil {
		app.Get("/api/runs", h.HandleListRuns)
		app.Get("/api/runs/:id", h.HandleGetRun)
	}

	if h.StaticDir != "" {
		app.Static("/", h.StaticDir)
		// SPA: unknown non-API paths get index.html.
		app.Get("/*", func(c *fiber.Ctx) error {
			if strings.HasPrefix(c.Path(), "/api/") {
				return fiber.ErrNotFound
			}
			return c.SendFile(filepath.Join(h.StaticDir, "index.html"))
		})
	}
}

// HandleHealth reports liveness.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
		"engine":  "fiber",
	})
}

// HandleListRuns lists the most recent runs. The "limit" query parameter
// caps the result.
func (h *Handler) HandleListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", store.DefaultRunLimit)
	runs, err := h.History.ListRuns(c.UserContext(), limit)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(fiber.Map{"runs": runs})
}

// HandleGetRun returns one run and the documents it processed.
func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	ctx := c.UserContext()
	run, err := h.History.GetRun(ctx, c.Params("id"))
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}
	if run == nil {
		return writeError(c, fiber.StatusNotFound, "Run not found.")
	}

	docs, err := h.History.ListDocuments(ctx, run.ID)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}
	resp := RunResponse{Run: run, Documents: make([]HistoryDocument, 0, len(docs))}
	for _, d := range docs {
		doc := HistoryDocument{Document: d}
		if d.ReceiptJSON != "" {
			doc.Receipt = json.RawMessage(d.ReceiptJSON)
		}
		resp.Documents = append(resp.Documents, doc)
	}
	return c.JSON(resp)
}

// HandleExtract processes uploaded receipts. PDFs come in the multipart
// field "file" (repeatable); alternatively, text already extracted on the
// client comes in "extractedText" with pages separated by PageBreak. The
// "format" query parameter selects a JSON (default) or XLSX response.
func (h *Handler) HandleExtract(c *fiber.Ctx) error {
	format := strings.ToLower(c.Query("format", "json"))
	if format != "json" && format != "xlsx" {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Unknown format %q. Use json or xlsx.", format))
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["file"]
	}
	pastedPages := SplitPages(c.FormValue("extractedText"))

	if len(files) == 0 && len(pastedPages) == 0 {
		return writeError(c, fiber.StatusBadRequest, "No file uploaded. Use form field 'file' or 'extractedText'.")
	}

	tmpDir, err := os.MkdirTemp("", "receipt-upload-*")
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "Failed to create temp dir.")
	}
	defer os.RemoveAll(tmpDir)

	src := &uploadSource{
		text:     make(map[string][]string),
		rejected: make(map[string]error),
		fallback: h.Source,
	}
	var paths []string

	if len(pastedPages) > 0 {
		name := "extractedText"
		if len(files) == 1 {
			name = filepath.Base(files[0].Filename)
		}
		path := filepath.Join(tmpDir, "text", name)
		src.text[path] = pastedPages
		paths = append(paths, path)
	} else {
		for i, fh := range files {
			path, err := saveUpload(c, fh, filepath.Join(tmpDir, fmt.Sprint(i)))
			if err != nil {
				return writeError(c, fiber.StatusInternalServerError, "Failed to save uploaded file.")
			}
			if !strings.EqualFold(filepath.Ext(path), ".pdf") {
				src.rejected[path] = errNotPDF
			}
			paths = append(paths, path)
		}
	}

	runner := &batch.Runner{Pages: src, Parser: h.Parser, Store: h.Store, Input: "api"}
	results, err := runner.Run(c.UserContext(), paths)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}

	if format == "xlsx" {
		var buf bytes.Buffer
		if err := (&writer.XLSXWriter{}).Write(&buf, results); err != nil {
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("Workbook generation failed: %v", err))
		}
		c.Set(fiber.HeaderContentType, xlsxContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", writer.DefaultWorkbookName))
		return c.Send(buf.Bytes())
	}

	includeHeader := c.FormValue("header") != "false"
	resp := ExtractResponse{
		Documents: make([]DocumentResponse, 0, len(results)),
		Count:     len(results),
		Failed:    batch.Failed(results),
		Version:   Version,
	}
	for _, res := range results {
		resp.Documents = append(resp.Documents, documentResponse(res, &writer.CSVWriter{IncludeHeader: includeHeader}))
	}
	resp.Success = resp.Failed < resp.Count

	status := fiber.StatusOK
	if !resp.Success {
		status = fiber.StatusUnprocessableEntity
		resp.Error = "No document could be processed."
	}
	return c.Status(status).JSON(resp)
}

// receiptWriter renders one receipt; *writer.CSVWriter implements it.
type receiptWriter interface {
	Write(out io.Writer, receipt *models.Receipt) error
}

func documentResponse(res models.DocumentResult, csvw receiptWriter) DocumentResponse {
	doc := DocumentResponse{
		Name:    res.Name,
		Success: res.OK(),
		Error:   res.Reason(),
		Pages:   res.Pages,
		Receipt: res.Receipt,
	}
	if res.Receipt == nil {
		return doc
	}
	if d := res.Receipt.Deduction; d != nil {
		doc.Resultado = writer.FormatBRL(d.Result)
	}
	var csvBuf bytes.Buffer
	if err := csvw.Write(&csvBuf, res.Receipt); err != nil {
		msg := fmt.Sprintf("CSV rendering failed: %v", err)
		if doc.Error != "" {
			msg = doc.Error + "; " + msg
		}
		doc.Error = msg
		return doc
	}
	doc.CSV = csvBuf.String()
	return doc
}

// SplitPages splits client-extracted text on PageBreak, dropping blank
// pages.
func SplitPages(text string) []string {
	var pages []string
	for _, page := range strings.Split(text, PageBreak) {
		if page = strings.TrimSpace(page); page != "" {
			pages = append(pages, page)
		}
	}
	return pages
}

func saveUpload(c *fiber.Ctx, fh *multipart.FileHeader, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(fh.Filename))
	if err := c.SaveFile(fh, path); err != nil {
		return "", err
	}
	return path, nil
}

// uploadSource serves pasted text and rejections before falling back to
// PDF extraction.
type uploadSource struct {
	text     map[string][]string
	rejected map[string]error
	fallback batch.PageSource
}

func (u *uploadSource) Pages(ctx context.Context, path string) ([]string, error) {
	if pages, ok := u.text[path]; ok {
		return pages, nil
	}
	if err, ok := u.rejected[path]; ok {
		return nil, err
	}
	return u.fallback.Pages(ctx, path)
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	return writeError(c, status, err.Error())
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ExtractResponse{
		Success:   false,
		Error:     msg,
		Documents: []DocumentResponse{},
	})
}
