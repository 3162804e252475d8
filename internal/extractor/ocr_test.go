package extractor

import (
	"os/exec"
	"testing"
)

func TestIsOCRAvailable(t *testing.T) {
	result := IsOCRAvailable()
	t.Logf("IsOCRAvailable() = %v", result)

	_, err := exec.LookPath("pdftoppm")
	if expected := err == nil; result != expected {
		t.Errorf("IsOCRAvailable() = %v, but direct check says %v", result, expected)
	}
}

func TestExtractWithOCR_MissingTools(t *testing.T) {
	if IsOCRAvailable() {
		t.Skip("pdftoppm is installed; cannot test missing-tool error path")
	}

	s := &Source{OCR: true}
	if _, err := s.extractWithOCR("/nonexistent/file.pdf"); err == nil {
		t.Error("expected error when OCR tools are not installed")
	}
}

func TestExtractWithOCR_NonexistentFile(t *testing.T) {
	if !IsOCRAvailable() {
		t.Skip("OCR tools not installed; skipping")
	}

	s := &Source{OCR: true}
	if _, err := s.extractWithOCR("/tmp/nonexistent-file-12345.pdf"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestPageCount_NonexistentFile(t *testing.T) {
	count, err := PageCount("/tmp/nonexistent-file-12345.pdf")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
	if count != 0 {
		t.Errorf("expected 0 pages for nonexistent file, got %d", count)
	}
}
