package parser

import "regexp"

// noiseRule is a boilerplate span removed from every page before the pages
// are concatenated. Each pattern is greedy and crosses line boundaries.
type noiseRule struct {
	Label   string
	Pattern *regexp.Regexp
}

// noiseRules are applied in order. Adding a new boilerplate block for a
// template variant only needs a new entry here.
var noiseRules = []noiseRule{
	{
		Label:   "atendimento",
		Pattern: regexp.MustCompile(`(?s)Atendimento personalizado.*Demais localidades`),
	},
	{
		Label:   "suporte/ouvidoria",
		Pattern: regexp.MustCompile(`(?s)CENTRAL DE SUPORTE.*OUVIDORIA`),
	},
	{
		Label:   "entrega/cet",
		Pattern: regexp.MustCompile(`(?s)Entregamos nesta data.*Custo Efetivo Total abaixo indicados\.`),
	},
}

// RemoveNoise strips the known boilerplate spans from one page of text.
// A rule that does not match leaves its block in place.
func RemoveNoise(page string) string {
	for _, rule := range noiseRules {
		page = rule.Pattern.ReplaceAllLiteralString(page, "")
	}
	return page
}
