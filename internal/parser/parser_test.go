package parser

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

func TestDiscountReceiptParser_Parse(t *testing.T) {
	p := New()
	assert.Equal(t, "Desconto de Títulos", p.TemplateName())

	receipt, err := p.Parse(receiptPages)
	require.NoError(t, err)

	assert.True(t, receipt.EssentialFound)
	assert.True(t, receipt.FinancialFound)

	info := receipt.Essential
	assert.Equal(t, "15/03/2024 14:32:10", info.DataOperacao)
	assert.Equal(t, "0123 / 000012345678-9", info.AgenciaContaCredito)
	assert.Equal(t, "12.345.678/0001-90", info.CPFCNPJ)
	assert.Equal(t, "1.500,00", info.ValorTotal)
	assert.Equal(t, "ACME COMERCIO LTDA", info.Cedente())

	assert.Equal(t, models.FinancialValues(receiptFinancial), receipt.Financial)
	assert.Len(t, receipt.Titles, 2)

	require.NotNil(t, receipt.Deduction)
	assert.True(t, decimal.RequireFromString("57.15").Equal(receipt.Deduction.Result))
	assert.True(t, decimal.RequireFromString("1500").Equal(receipt.Deduction.Total))
	assert.True(t, decimal.RequireFromString("1420.50").Equal(receipt.Deduction.Net))
	assert.True(t, decimal.RequireFromString("15").Equal(receipt.Deduction.Fee))
	assert.True(t, decimal.RequireFromString("7.35").Equal(receipt.Deduction.Tax))
}

func TestParse_LabelledColumnsOnly(t *testing.T) {
	// Three values under "Valor Total / Qtde / Vencimento Final" and five
	// under the second label line, exactly as the template prints them.
	page := `Data da Operação Canal
15/03/2024 14:32:10 Internet Banking
Valor Total do(s) Título(s) R$ Qtde Título(s) Vencimento Final
2.000,00 3 31/12/2024
Valor Líquido - R$ Taxa Custo Efetivo Total (CET) Valor da Tarifa - R$ Valor IOF - R$
1.900,00 2,00% (a.m.) 2,25% (a.m.) 30,60% (a.a.) 12,50 4,80
RELAÇÃO DO(S) TÍTULO(S) PARA DESCONTO`

	receipt, err := Parse([]string{page})
	require.NoError(t, err)

	values := receipt.Financial
	require.Len(t, values, models.MinFinancialValues)
	assert.Equal(t, "2.000,00", values.Get(models.IdxTotal))
	assert.Equal(t, "3", values.Get(models.IdxQuantity))
	assert.Equal(t, "31/12/2024", values.FinalDueDate())
	assert.Equal(t, "1.900,00", values.Get(models.IdxNet))
	assert.Equal(t, "2,00%", values.Get(models.IdxRate))
	assert.Equal(t, "2,25%", values.Get(models.IdxCETMonthly))
	assert.Equal(t, "30,60%", values.Get(models.IdxCETYearly))
	assert.Equal(t, "12,50", values.Get(models.IdxFee))
	assert.Equal(t, "4,80", values.Get(models.IdxTax))

	require.NotNil(t, receipt.Deduction)
	assert.True(t, decimal.RequireFromString("82.70").Equal(receipt.Deduction.Result))
}

func TestParse_Idempotent(t *testing.T) {
	first, err := Parse(receiptPages)
	require.NoError(t, err)
	second, err := Parse(receiptPages)
	require.NoError(t, err)

	assert.Equal(t, first.Essential, second.Essential)
	assert.Equal(t, first.Financial, second.Financial)
	assert.Equal(t, first.Titles, second.Titles)
	assert.Equal(t, first.Deduction.Result.String(), second.Deduction.Result.String())
}

func TestParse_MissingEssentialBlock(t *testing.T) {
	pages := []string{"1 JOAO DA SILVA 123.456/0001-99 AB-123 01/01/2023 DM Sim 500,00 01/06/2023"}

	receipt, err := Parse(pages)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVectorTooShort)
	require.NotNil(t, receipt)
	assert.False(t, receipt.EssentialFound)
	assert.False(t, receipt.FinancialFound)
	assert.Empty(t, receipt.Financial)
	assert.Nil(t, receipt.Deduction)
	assert.Len(t, receipt.Titles, 1)
	assert.Contains(t, receipt.Warnings, "essential information block not found")
	assert.Contains(t, receipt.Warnings, "financial values block not found")
	assert.Contains(t, receipt.Warnings, "document does not look like a title discount receipt")
}

func TestParse_ShortFinancialBlock(t *testing.T) {
	page := strings.Replace(receiptPages[0], " 15,00 7,35", "", 1)

	receipt, err := Parse([]string{page})

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 15, pe.Len)
	assert.True(t, receipt.FinancialFound)
	assert.Len(t, receipt.Titles, 2)
	assert.Equal(t, "15/03/2024 14:32:10", receipt.Essential.DataOperacao)
}

func TestLooksLikeReceipt(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"fixture", Normalize(receiptPages), true},
		{"upper case anchor", "RELAÇÃO DO(S) TÍTULO(S) PARA DESCONTO", true},
		{"unrelated statement", "Metro Bank\nAccount Statement", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LooksLikeReceipt(tt.text))
		})
	}
}
