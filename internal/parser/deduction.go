package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

var (
	// ErrVectorTooShort is returned when the financial vector does not reach
	// the positions the deduction reads.
	ErrVectorTooShort = errors.New("financial values vector too short")
	// ErrMalformedNumber is returned when a required position does not hold
	// a pt-BR decimal number.
	ErrMalformedNumber = errors.New("malformed decimal number")
)

// ParseError reports why the deduction could not be computed for a
// document. Index is -1 for length failures.
type ParseError struct {
	Field string
	Index int
	Token string
	Len   int
	Err   error
}

func (e *ParseError) Error() string {
	if errors.Is(e.Err, ErrVectorTooShort) {
		return fmt.Sprintf("deduction: %v: got %d values, need at least %d", e.Err, e.Len, models.MinFinancialValues)
	}
	return fmt.Sprintf("deduction: %s (position %d): %v: %q", e.Field, e.Index, e.Err, e.Token)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// brlNumberPattern accepts "1.234,56", "1234,56", "850" and "0,5": optional
// thousands dots in groups of three and an optional comma fraction.
var brlNumberPattern = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{3})+|\d+)(?:,\d+)?$`)

// ParseDecimalBR converts a number written with the pt-BR convention (dot
// for thousands, comma for decimals) to an exact decimal.
func ParseDecimalBR(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if !brlNumberPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	return decimal.NewFromString(s)
}

// deductionInputs are the vector positions read by CalculateDeduction.
var deductionInputs = []struct {
	Field string
	Index int
}{
	{"Valor Total", models.IdxTotal},
	{"Valor Líquido", models.IdxNet},
	{"Valor da Tarifa", models.IdxFee},
	{"Valor IOF", models.IdxTax},
}

// CalculateDeduction computes total − (net + fee + tax) from the financial
// vector. It fails with a *ParseError when the vector holds fewer than
// models.MinFinancialValues entries or a required token is not a number.
func CalculateDeduction(values models.FinancialValues) (models.Deduction, error) {
	if len(values) < models.MinFinancialValues {
		return models.Deduction{}, &ParseError{Index: -1, Len: len(values), Err: ErrVectorTooShort}
	}

	parsed := make([]decimal.Decimal, len(deductionInputs))
	for i, in := range deductionInputs {
		token, _ := values.At(in.Index)
		d, err := ParseDecimalBR(token)
		if err != nil {
			return models.Deduction{}, &ParseError{
				Field: in.Field,
				Index: in.Index,
				Token: token,
				Len:   len(values),
				Err:   ErrMalformedNumber,
			}
		}
		parsed[i] = d
	}

	total, net, fee, tax := parsed[0], parsed[1], parsed[2], parsed[3]
	return models.Deduction{
		Total:  total,
		Net:    net,
		Fee:    fee,
		Tax:    tax,
		Result: total.Sub(net.Add(fee).Add(tax)),
	}, nil
}
