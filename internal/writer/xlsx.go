package writer

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

const (
	// DefaultWorkbookName is the report file written inside the input folder.
	DefaultWorkbookName = "Resultado-Extracao.xlsx"

	summarySheet     = "Resumo"
	maxSheetNameLen  = 31
	fallbackDocSheet = "Documento"
)

var summaryHeaders = []string{"Documento", "Status", "Títulos", "Resultado", "Erro"}

// XLSXWriter writes a workbook with a summary sheet and one sheet per
// parsed document.
type XLSXWriter struct{}

// WriteToFile writes the workbook to path.
func (w *XLSXWriter) WriteToFile(path string, results []models.DocumentResult) error {
	f, err := w.build(results)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %q: %w", path, err)
	}
	return nil
}

// Write writes the workbook to out.
func (w *XLSXWriter) Write(out io.Writer, results []models.DocumentResult) error {
	f, err := w.build(results)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *XLSXWriter) build(results []models.DocumentResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	s := &sheetWriter{f: f, sheet: summarySheet, bold: bold}
	s.header(1, summaryHeaders...)

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for i, res := range results {
		s.row(i+2,
			res.Name,
			documentStatus(res),
			titleCount(res),
			deductionText(res),
			res.Reason(),
		)

		if res.Receipt == nil {
			continue
		}
		name := uniqueSheetName(SheetName(res.Name), used)
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
		writeReceiptSheet(&sheetWriter{f: f, sheet: name, bold: bold}, res.Receipt)
	}
	s.widths(map[string]float64{"A": 40, "B": 10, "C": 10, "D": 18, "E": 60})

	if s.err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to fill workbook: %w", s.err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

// writeReceiptSheet lays out one document: the titles table, the essential
// information and the deduction breakdown, top to bottom.
func writeReceiptSheet(s *sheetWriter, r *models.Receipt) {
	v := r.Financial

	s.header(1, "Tabela de Títulos")
	s.header(2, models.TitleHeaders...)
	for i, t := range r.Titles {
		s.row(i+3, toAny(t.Fields())...)
	}

	info := len(r.Titles) + 5
	s.header(info, "Informações Essenciais Extraídas")
	s.row(info+1, "Data da Operação", r.Essential.DataOperacao)
	s.row(info+2, "CPF/CNPJ", r.Essential.CPFCNPJ)
	s.row(info+3, "Cliente/Cedente", r.Essential.Cedente())
	s.row(info+4, "Valor Total do(s) Título(s)", v.Get(models.IdxTotal))
	s.row(info+5, "Valor Líquido", v.Get(models.IdxNet))
	s.row(info+6, "Taxa", v.Get(models.IdxRate))
	s.row(info+7, "Custo Efetivo Total (CET)", cetText(v))
	s.row(info+8, "Valor da Tarifa", v.Get(models.IdxFee))
	s.row(info+9, "Valor IOF", v.Get(models.IdxTax))

	res := info + 11
	s.header(res, "Resultado da Dedução")
	s.row(res+1, "Valor Total do(s) Título(s)", v.Get(models.IdxTotal))
	s.row(res+2, "Deduzindo Valor Líquido", v.Get(models.IdxNet))
	s.row(res+3, "Deduzindo Valor da Tarifa", v.Get(models.IdxFee))
	s.row(res+4, "Deduzindo Valor IOF", v.Get(models.IdxTax))
	result := ""
	if r.Deduction != nil {
		result = FormatBRL(r.Deduction.Result)
	}
	s.row(res+5, "Resultado", result)

	s.widths(map[string]float64{"A": 32, "B": 36, "C": 20, "D": 14, "E": 12, "F": 6, "G": 8, "H": 14, "I": 12})
}

// sheetWriter keeps the first error so layout code reads top to bottom.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	bold  int
	err   error
}

func (s *sheetWriter) row(r int, values ...any) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetSheetRow(s.sheet, cell, &values)
}

func (s *sheetWriter) header(r int, values ...string) {
	s.row(r, toAny(values)...)
	if s.err != nil {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, r)
	last, _ := excelize.CoordinatesToCellName(len(values), r)
	s.err = s.f.SetCellStyle(s.sheet, first, last, s.bold)
}

func (s *sheetWriter) widths(cols map[string]float64) {
	for col, width := range cols {
		if s.err != nil {
			return
		}
		s.err = s.f.SetColWidth(s.sheet, col, col, width)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func documentStatus(res models.DocumentResult) string {
	switch {
	case res.OK():
		return "OK"
	case res.Receipt != nil:
		return "Parcial"
	default:
		return "Erro"
	}
}

func titleCount(res models.DocumentResult) int {
	if res.Receipt == nil {
		return 0
	}
	return len(res.Receipt.Titles)
}

func deductionText(res models.DocumentResult) string {
	if res.Receipt == nil || res.Receipt.Deduction == nil {
		return ""
	}
	return FormatBRL(res.Receipt.Deduction.Result)
}

// cetText renders the monthly and yearly CET as "monthly / yearly".
func cetText(v models.FinancialValues) string {
	monthly, okM := v.At(models.IdxCETMonthly)
	yearly, okY := v.At(models.IdxCETYearly)
	if !okM && !okY {
		return ""
	}
	return monthly + " / " + yearly
}

// FormatBRL renders d as Brazilian currency, e.g. "R$ 1.234,56" or
// "-R$ 0,01".
func FormatBRL(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return sign + "R$ " + b.String() + "," + frac
}

// SheetName turns a document name into a valid worksheet name: characters
// Excel rejects are replaced and the result is cut to 31 characters.
func SheetName(doc string) string {
	doc = strings.TrimSuffix(doc, ".pdf")
	doc = strings.TrimSuffix(doc, ".PDF")
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, doc)
	name = strings.Trim(strings.TrimSpace(name), "'")
	name = truncateRunes(name, maxSheetNameLen)
	if name == "" {
		return fallbackDocSheet
	}
	return name
}

// uniqueSheetName suffixes name with " (n)" until it is not in used, which
// is compared case-insensitively as Excel does.
func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(name, maxSheetNameLen-utf8.RuneCountInString(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
