package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveNoise(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "customer service block",
			input:    "antes Atendimento personalizado\n4004 0000\nDemais localidades depois",
			expected: "antes  depois",
		},
		{
			name:     "support and ombudsman block",
			input:    "A\nCENTRAL DE SUPORTE 0800\nSAC\nOUVIDORIA\nB",
			expected: "A\n\nB",
		},
		{
			name:     "delivery disclaimer",
			input:    "Entregamos nesta data os títulos\ncom Custo Efetivo Total abaixo indicados.\nValor",
			expected: "\nValor",
		},
		{
			name:     "greedy span runs to the last end phrase",
			input:    "x CENTRAL DE SUPORTE a OUVIDORIA b OUVIDORIA y",
			expected: "x  y",
		},
		{
			name:     "start phrase without end phrase is kept",
			input:    "Atendimento personalizado sem fim",
			expected: "Atendimento personalizado sem fim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RemoveNoise(tt.input))
		})
	}
}

func TestRemoveNoise_IdentityWithoutAnchors(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		receiptPages[0],
		"Demais localidades OUVIDORIA abaixo indicados.",
		strings.Repeat("1.000,00 DM Sim\n", 50),
	}
	for _, in := range inputs {
		assert.Equal(t, in, RemoveNoise(in))
	}
}

func TestNormalize(t *testing.T) {
	t.Run("pages are joined in order", func(t *testing.T) {
		got := Normalize([]string{"page one", "page two"})
		assert.Equal(t, "page one\npage two\n", got)
	})

	t.Run("noise is removed per page", func(t *testing.T) {
		got := Normalize([]string{"A CENTRAL DE SUPORTE", "OUVIDORIA B"})
		// The span does not cross the page boundary.
		assert.Equal(t, "A CENTRAL DE SUPORTE\nOUVIDORIA B\n", got)
	})

	t.Run("decomposed accents are composed", func(t *testing.T) {
		got := Normalize([]string{"Data da Operac\u0327a\u0303o Canal"})
		assert.Equal(t, "Data da Operação Canal\n", got)
	})

	t.Run("no pages", func(t *testing.T) {
		assert.Equal(t, "", Normalize(nil))
	})
}
