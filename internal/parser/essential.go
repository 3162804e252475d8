package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

// essentialBlockPattern bounds the region holding the operation metadata and
// the financial-values block.
var essentialBlockPattern = regexp.MustCompile(
	`(?s)Data da Operação Canal\s*(.*?)\s*RELAÇÃO DO\(S\) TÍTULO\(S\) PARA DESCONTO`,
)

// EssentialBlock returns the trimmed text between "Data da Operação Canal"
// and "RELAÇÃO DO(S) TÍTULO(S) PARA DESCONTO". The bool is false when either
// anchor is missing.
func EssentialBlock(text string) (string, bool) {
	m := essentialBlockPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// fieldRule extracts one EssentialInfo field. Patterns are tried in order
// and the first one that matches wins. Group selects the submatch to keep
// (0 for the whole match).
type fieldRule struct {
	Label    string
	Patterns []*regexp.Regexp
	Group    int
	Required bool
	Set      func(*models.EssentialInfo, string)
}

// nameChars is the alphabet of a client name: Unicode letters and digits,
// blanks and the punctuation found in company names ("S.A.", "&").
const nameChars = `\p{L}\p{N}_ \t.&'`

var essentialRules = []fieldRule{
	{
		Label:    "Data da Operação",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}`)},
		Required: true,
		Set:      func(e *models.EssentialInfo, v string) { e.DataOperacao = v },
	},
	{
		Label:    "Agência/Conta Crédito",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`\d{4} / \d{12}-\d`)},
		Required: true,
		Set:      func(e *models.EssentialInfo, v string) { e.AgenciaContaCredito = v },
	},
	{
		Label: "CPF/CNPJ",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\d{3}\.\d{3}\.\d{3}-\d{2}`),
			regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`),
		},
		Required: true,
		Set:      func(e *models.EssentialInfo, v string) { e.CPFCNPJ = v },
	},
	{
		Label: "Cliente/Cedente",
		Patterns: []*regexp.Regexp{regexp.MustCompile(
			`Cliente/Cedente\s+([` + nameChars + `]+?)\s*(?:\bValor\b|[^` + nameChars + `]|$)`,
		)},
		Group:    1,
		Required: true,
		Set:      func(e *models.EssentialInfo, v string) { e.ClienteCedente = strings.TrimSpace(v) },
	},
	{
		Label:    "Valor Total",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`Valor Total.*?\s+([\d.,]+)`)},
		Group:    1,
		Required: true,
		Set:      func(e *models.EssentialInfo, v string) { e.ValorTotal = v },
	},
	{
		Label:    "Valor Líquido",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`Valor Líquido - R\$\s+([\d.,]+)`)},
		Group:    1,
		Set:      func(e *models.EssentialInfo, v string) { e.ValorLiquido = v },
	},
	{
		Label:    "Taxa",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`Taxa\s+([\d.,%]+)`)},
		Group:    1,
		Set:      func(e *models.EssentialInfo, v string) { e.Taxa = v },
	},
	{
		Label:    "CET",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`CET\s+([\d.,%]+)`)},
		Group:    1,
		Set:      func(e *models.EssentialInfo, v string) { e.CustoEfetivoTotal = v },
	},
	{
		Label:    "Valor da Tarifa",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`Valor da Tarifa - R\$\s+([\d.,]+)`)},
		Group:    1,
		Set:      func(e *models.EssentialInfo, v string) { e.ValorTarifa = v },
	},
	{
		Label:    "Valor IOF",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`Valor IOF - R\$\s+([\d.,]+)`)},
		Group:    1,
		Set:      func(e *models.EssentialInfo, v string) { e.ValorIOF = v },
	},
}

// match returns the selected submatch of the first pattern that matches.
func (r fieldRule) match(block string) (string, bool) {
	for _, re := range r.Patterns {
		m := re.FindStringSubmatch(block)
		if m == nil || r.Group >= len(m) {
			continue
		}
		return m[r.Group], true
	}
	return "", false
}

// ParseEssentialInfo applies every field rule to the essential block. It
// never fails: a field whose pattern does not match is left empty, and
// required fields that are missing are listed in Missing.
func ParseEssentialInfo(block string) models.EssentialInfo {
	var info models.EssentialInfo
	for _, rule := range essentialRules {
		v, ok := rule.match(block)
		if ok {
			rule.Set(&info, v)
		}
		if rule.Required && strings.TrimSpace(v) == "" {
			info.Missing = append(info.Missing, rule.Label)
		}
	}
	info.CedenteLinha = cedenteFromHeaderLine(block)
	return info
}

// cedenteHeaderLine is the (zero-based) non-empty line of the essential
// block that carries agency, account, tax-id and client name, and
// cedenteFirstWord the word index where the name starts on it.
const (
	cedenteHeaderLine = 2
	cedenteFirstWord  = 4
)

// cedenteFromHeaderLine reads the client name the way it is laid out on the
// header line: every word after the first four, joined by single spaces.
func cedenteFromHeaderLine(block string) string {
	var lines []string
	for _, line := range strings.FieldsFunc(block, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) <= cedenteHeaderLine {
		return ""
	}
	words := strings.Fields(lines[cedenteHeaderLine])
	if len(words) <= cedenteFirstWord {
		return ""
	}
	return strings.Join(words[cedenteFirstWord:], " ")
}
