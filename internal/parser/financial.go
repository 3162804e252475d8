package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

var (
	// financialBlockPattern starts after the label line of the financial
	// table and runs to the end of the essential block.
	financialBlockPattern = regexp.MustCompile(
		`(?s)Valor Total do\(s\) Título\(s\) R\$ Qtde Título\(s\) Vencimento Final\s*(.*)`,
	)

	// financialLabelNoise is the second label line, interleaved with the
	// values by the text extraction.
	financialLabelNoise = regexp.MustCompile(
		`(?s)Valor Líquido - R\$ Taxa Custo Efetivo Total \(CET\) Valor da Tarifa - R\$ Valor IOF - R\$`,
	)

	// financialTokenPattern matches one value of the vector: digits and
	// separators, optionally followed by a percent sign or a rate period.
	// A slash is not a separator, so the final due date yields three tokens.
	financialTokenPattern = regexp.MustCompile(`[\d.,]+(?:%|\(a\.m\.\)|\(a\.a\.\))?`)
)

// FinancialBlock isolates the financial values inside the essential block
// and strips the label line that sits between them. The bool is false when
// the block's label line is absent.
func FinancialBlock(essential string) (string, bool) {
	m := financialBlockPattern.FindStringSubmatch(essential)
	if m == nil {
		return "", false
	}
	raw := strings.TrimSpace(m[1])
	return strings.TrimSpace(financialLabelNoise.ReplaceAllLiteralString(raw, "")), true
}

// TokenizeFinancialValues collects every numeric or percentage token of the
// financial block, in order. The meaning of each token is its position (see
// the models.Idx* constants); no check is made that the expected positions
// exist.
func TokenizeFinancialValues(raw string) models.FinancialValues {
	tokens := financialTokenPattern.FindAllString(raw, -1)
	if tokens == nil {
		return models.FinancialValues{}
	}
	return models.FinancialValues(tokens)
}
