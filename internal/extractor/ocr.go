package extractor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

const (
	defaultOCRLanguage = "por"
	ocrDPI             = "300"
)

// IsOCRAvailable reports whether the page rasterizer needed for OCR is
// installed. Tesseract itself is linked through gosseract.
func IsOCRAvailable() bool {
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}

// extractWithOCR rasterizes each page with pdftoppm and recognizes it with
// Tesseract. Pages that fail recognition are skipped.
func (s *Source) extractWithOCR(filePath string) ([]string, error) {
	if !IsOCRAvailable() {
		return nil, fmt.Errorf("pdftoppm not available (install poppler-utils)")
	}
	if _, err := os.Stat(filePath); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "ocr-pages-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	imageFiles, err := rasterize(filePath, tmpDir)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if s.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(s.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("tessdata prefix: %w", err)
		}
	}
	lang := s.Language
	if lang == "" {
		lang = defaultOCRLanguage
	}
	if err := client.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("OCR language %q: %w", lang, err)
	}
	// Receipts are a single column of variable-size text.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_COLUMN); err != nil {
		return nil, fmt.Errorf("OCR page mode: %w", err)
	}

	logger := s.logger().With("file", filePath)
	var pages []string
	for _, img := range imageFiles {
		if err := client.SetImage(img); err != nil {
			logger.Warn("OCR image rejected", "image", filepath.Base(img), "error", err)
			continue
		}
		text, err := client.Text()
		if err != nil {
			logger.Warn("OCR failed", "image", filepath.Base(img), "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("OCR produced no text from %d page images", len(imageFiles))
	}
	return pages, nil
}

// rasterize renders every page of filePath as a PNG under dir and returns
// the image paths in page order.
func rasterize(filePath, dir string) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	cmd := exec.Command("pdftoppm", "-r", ocrDPI, "-png", filePath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(out))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp dir: %w", err)
	}

	var imageFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			imageFiles = append(imageFiles, filepath.Join(dir, e.Name()))
		}
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(imageFiles)

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images")
	}
	return imageFiles, nil
}
