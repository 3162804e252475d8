package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// EssentialInfo holds the fields parsed from the essential block of a
// discount receipt. Every field is independently optional: an empty string
// means the pattern did not match.
type EssentialInfo struct {
	DataOperacao        string `json:"dataOperacao"`
	AgenciaContaCredito string `json:"agenciaContaCredito"`
	CPFCNPJ             string `json:"cpfCnpj"`
	ClienteCedente      string `json:"clienteCedente"`
	ValorTotal          string `json:"valorTotal"`
	ValorLiquido        string `json:"valorLiquido"`
	Taxa                string `json:"taxa"`
	CustoEfetivoTotal   string `json:"custoEfetivoTotal"`
	ValorTarifa         string `json:"valorTarifa"`
	ValorIOF            string `json:"valorIof"`

	// CedenteLinha is the client name as laid out on the header line of the
	// block (words after the tax-id). Empty when the line is too short.
	CedenteLinha string `json:"cedenteLinha,omitempty"`

	// Missing lists labels of required fields that did not match.
	Missing []string `json:"missing,omitempty"`
}

// Cedente returns the client name read from the header line, falling back
// to the labelled field.
func (e EssentialInfo) Cedente() string {
	if e.CedenteLinha != "" {
		return e.CedenteLinha
	}
	return e.ClienteCedente
}

// Positions inside FinancialValues. The receipt template always emits the
// financial block in the same order, so fields are addressed by index:
//
//	0  Valor Total do(s) Título(s)
//	1  Qtde Título(s)
//	2  Vencimento Final (day; month and year follow at 3 and 4)
//	5  Valor Líquido
//	6  Taxa
//	9  CET (a.m.)
//	12 CET (a.a.)
//	15 Valor da Tarifa
//	16 Valor IOF
const (
	IdxTotal        = 0
	IdxQuantity     = 1
	IdxFinalDueDate = 2
	IdxDueMonth     = 3
	IdxDueYear      = 4
	IdxNet          = 5
	IdxRate         = 6
	IdxCETMonthly   = 9
	IdxCETYearly    = 12
	IdxFee          = 15
	IdxTax          = 16

	// MinFinancialValues is the shortest vector the deduction can use.
	MinFinancialValues = IdxTax + 1
)

// FinancialValues is the positional vector of numeric and percentage tokens
// read from the financial block, in document order.
type FinancialValues []string

// At returns the token at position i and whether it exists.
func (v FinancialValues) At(i int) (string, bool) {
	if i < 0 || i >= len(v) {
		return "", false
	}
	return v[i], true
}

// Get returns the token at position i or "" when the vector is too short.
func (v FinancialValues) Get(i int) string {
	s, _ := v.At(i)
	return s
}

// FinalDueDate rejoins the day, month and year tokens of the final due
// date. It returns "" when any of them is missing.
func (v FinancialValues) FinalDueDate() string {
	parts := make([]string, 0, 3)
	for _, i := range []int{IdxFinalDueDate, IdxDueMonth, IdxDueYear} {
		s, ok := v.At(i)
		if !ok {
			return ""
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "/")
}

// TitleRow is one discounted instrument from the "RELAÇÃO DO(S) TÍTULO(S)"
// table.
type TitleRow struct {
	Seq        string `json:"seq"`
	Sacado     string `json:"sacado"`
	CPFCNPJ    string `json:"cpfCnpj"`
	Numero     string `json:"numero"`
	Emissao    string `json:"emissao"`
	Tipo       string `json:"tipo"`   // DM, NP or CH
	Aceite     string `json:"aceite"` // Sim or Não
	Valor      string `json:"valor"`
	Vencimento string `json:"vencimento"`
}

// TitleHeaders are the column names of the titles table, in Fields order.
var TitleHeaders = []string{
	"Seq.", "Sacado", "CPF/CNPJ", "S. Número", "Emissão",
	"Tipo", "Aceite", "Valor Título", "Vencimento",
}

// Fields returns the nine row values in table order.
func (t TitleRow) Fields() []string {
	return []string{
		t.Seq, t.Sacado, t.CPFCNPJ, t.Numero, t.Emissao,
		t.Tipo, t.Aceite, t.Valor, t.Vencimento,
	}
}

// Deduction is total − (net + fee + tax) together with its inputs.
type Deduction struct {
	Total  decimal.Decimal `json:"total"`
	Net    decimal.Decimal `json:"net"`
	Fee    decimal.Decimal `json:"fee"`
	Tax    decimal.Decimal `json:"tax"`
	Result decimal.Decimal `json:"result"`
}

// Receipt is everything extracted from one document.
type Receipt struct {
	Name           string          `json:"name"`
	EssentialFound bool            `json:"essentialFound"`
	Essential      EssentialInfo   `json:"essential"`
	FinancialFound bool            `json:"financialFound"`
	Financial      FinancialValues `json:"financial"`
	Titles         []TitleRow      `json:"titles"`
	Deduction      *Deduction      `json:"deduction,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// DocumentResult is the outcome of processing one input document in a
// batch. Receipt may be set even when Err is not nil (partial extraction).
type DocumentResult struct {
	Path    string   `json:"path"`
	Name    string   `json:"name"`
	Pages   int      `json:"pages"`
	Receipt *Receipt `json:"receipt,omitempty"`
	Err     error    `json:"-"`
}

// OK reports whether the document was processed without a fatal error.
func (r DocumentResult) OK() bool {
	return r.Err == nil
}

// Reason returns the failure reason or "".
func (r DocumentResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
