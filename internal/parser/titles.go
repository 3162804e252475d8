package parser

import (
	"regexp"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

// titleRowPattern matches one row of the "RELAÇÃO DO(S) TÍTULO(S) PARA
// DESCONTO" table:
//
//	SEQ SACADO CPF/CNPJ NUMERO EMISSAO TIPO ACEITE VALOR VENCIMENTO
//	1 JOAO DA SILVA 123.456/0001-99 AB-123 01/01/2023 DM Sim 500,00 01/06/2023
//
// Payer names may hold any Unicode letter, so the word classes are spelled
// out instead of using \w (ASCII only in RE2).
var titleRowPattern = regexp.MustCompile(
	`(\d+)\s+([\p{L}\p{N}_\s]+)\s+([\d./-]+)\s+([\p{L}\p{N}_-]+)\s+([\d/]+)` +
		`\s+(DM|NP|CH)\s+(Sim|Não)\s+([\d.,]+)\s+([\d/]+)`,
)

// ExtractTitles returns one TitleRow per non-overlapping match of the row
// pattern, in document order. Text that only partially fits a row is
// ignored.
func ExtractTitles(text string) []models.TitleRow {
	matches := titleRowPattern.FindAllStringSubmatch(text, -1)
	rows := make([]models.TitleRow, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, models.TitleRow{
			Seq:        m[1],
			Sacado:     m[2],
			CPFCNPJ:    m[3],
			Numero:     m[4],
			Emissao:    m[5],
			Tipo:       m[6],
			Aceite:     m[7],
			Valor:      m[8],
			Vencimento: m[9],
		})
	}
	return rows
}
