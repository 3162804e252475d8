package parser

import (
	"fmt"
	"strings"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

// Parser defines the interface for receipt parsers.
type Parser interface {
	// Parse takes raw text from PDF pages and returns the extracted receipt.
	Parse(pages []string) (*models.Receipt, error)
	// TemplateName returns the human-readable template name.
	TemplateName() string
}

// New returns the parser for the title discount receipt template.
func New() Parser {
	return &DiscountReceiptParser{}
}

// DiscountReceiptParser handles bank "desconto de títulos" receipts.
//
// The essential block sits between "Data da Operação Canal" and
// "RELAÇÃO DO(S) TÍTULO(S) PARA DESCONTO"; the titles table follows it.
type DiscountReceiptParser struct{}

func (p *DiscountReceiptParser) TemplateName() string {
	return "Desconto de Títulos"
}

// Parse runs the whole extraction over the pages of one document.
//
// Lookups that fail are recorded as warnings and leave their fields empty.
// The only error is a *ParseError from the deduction, returned together
// with the receipt extracted so far.
func (p *DiscountReceiptParser) Parse(pages []string) (*models.Receipt, error) {
	text := Normalize(pages)
	receipt := &models.Receipt{}

	if !LooksLikeReceipt(text) {
		receipt.Warnings = append(receipt.Warnings, "document does not look like a title discount receipt")
	}

	block, ok := EssentialBlock(text)
	receipt.EssentialFound = ok
	if !ok {
		receipt.Warnings = append(receipt.Warnings, "essential information block not found")
	}
	receipt.Essential = ParseEssentialInfo(block)
	for _, label := range receipt.Essential.Missing {
		receipt.Warnings = append(receipt.Warnings, fmt.Sprintf("field %q not found", label))
	}

	raw, ok := FinancialBlock(block)
	receipt.FinancialFound = ok
	if !ok {
		receipt.Warnings = append(receipt.Warnings, "financial values block not found")
	}
	receipt.Financial = TokenizeFinancialValues(raw)

	receipt.Titles = ExtractTitles(text)

	deduction, err := CalculateDeduction(receipt.Financial)
	if err != nil {
		return receipt, err
	}
	receipt.Deduction = &deduction
	return receipt, nil
}

// Parse runs the discount receipt parser over pages.
func Parse(pages []string) (*models.Receipt, error) {
	return New().Parse(pages)
}

// receiptMarkers identify the template. Any one is enough.
var receiptMarkers = []string{
	"data da operação canal",
	"para desconto",
	"valor total do(s) título(s)",
}

// LooksLikeReceipt reports whether text carries any of the template's
// anchor phrases.
func LooksLikeReceipt(text string) bool {
	return containsAny(strings.ToLower(text), receiptMarkers)
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
