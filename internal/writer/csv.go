package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

// CSVWriter writes the titles table of a receipt in CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the receipt to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, receipt *models.Receipt) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}

	if err := w.Write(f, receipt); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes the receipt in CSV format to the given writer. With
// IncludeHeader set, the essential fields and the deduction come first as
// "# label,value" rows.
func (w *CSVWriter) Write(out io.Writer, receipt *models.Receipt) error {
	writer := csv.NewWriter(out)

	if w.IncludeHeader {
		for _, m := range metadataRows(receipt) {
			if m[1] == "" {
				continue
			}
			if err := writer.Write([]string{"# " + m[0], m[1]}); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	if err := writer.Write(models.TitleHeaders); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, t := range receipt.Titles {
		if err := writer.Write(t.Fields()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func metadataRows(r *models.Receipt) [][2]string {
	v := r.Financial
	rows := [][2]string{
		{"Documento", r.Name},
		{"Data da Operação", r.Essential.DataOperacao},
		{"Agência/Conta Crédito", r.Essential.AgenciaContaCredito},
		{"CPF/CNPJ", r.Essential.CPFCNPJ},
		{"Cliente/Cedente", r.Essential.Cedente()},
		{"Valor Total do(s) Título(s)", v.Get(models.IdxTotal)},
		{"Vencimento Final", v.FinalDueDate()},
		{"Valor Líquido", v.Get(models.IdxNet)},
		{"Taxa", v.Get(models.IdxRate)},
		{"Custo Efetivo Total (CET)", cetText(v)},
		{"Valor da Tarifa", v.Get(models.IdxFee)},
		{"Valor IOF", v.Get(models.IdxTax)},
	}
	if r.Deduction != nil {
		rows = append(rows, [2]string{"Resultado", FormatBRL(r.Deduction.Result)})
	}
	return rows
}
