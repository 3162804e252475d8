package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
	"github.com/insightdelivered/discount-receipt-extractor/internal/parser"
	"github.com/insightdelivered/discount-receipt-extractor/internal/store"
)

const receiptPage = `BANCO EXEMPLO S.A.
BORDERÔ DE DESCONTO DE TÍTULOS
Data da Operação Canal
15/03/2024 14:32:10 Internet Banking
Agência / Conta Crédito CPF/CNPJ Cliente/Cedente
0123 / 000012345678-9 12.345.678/0001-90 ACME COMERCIO LTDA
Valor Total do(s) Título(s) R$ Qtde Título(s) Vencimento Final
1.500,00 2 30/06/2024
Valor Líquido - R$ Taxa Custo Efetivo Total (CET) Valor da Tarifa - R$ Valor IOF - R$
1.420,50 1,89% (a.m.) 2,10% (a.m.) 28,32% (a.a.) 15,00 7,35
RELAÇÃO DO(S) TÍTULO(S) PARA DESCONTO
1 JOAO DA SILVA 123.456.789-01 NF-1001 01/03/2024 DM Sim 500,00 30/05/2024`

// fakeSource serves canned pages keyed by file name.
type fakeSource struct {
	pages map[string][]string
	errs  map[string]error
	calls []string
}

func (f *fakeSource) Pages(_ context.Context, path string) ([]string, error) {
	name := filepath.Base(path)
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.pages[name], nil
}

type panicParser struct{ on string }

func (p panicParser) Parse(pages []string) (*models.Receipt, error) {
	if len(pages) > 0 && pages[0] == p.on {
		panic("boom")
	}
	return parser.Parse(pages)
}

func TestRunner_Run(t *testing.T) {
	src := &fakeSource{
		pages: map[string][]string{
			"a.pdf":     {receiptPage},
			"short.pdf": {"Valor Total do(s) Título(s) R$ Qtde Título(s) Vencimento Final 1,00"},
			"panic.pdf": {"PANIC"},
		},
		errs: map[string]error{"broken.pdf": errors.New("no readable text")},
	}

	var started, seen []string
	r := &Runner{
		Pages:      src,
		Parser:     panicParser{on: "PANIC"},
		OnStart:    func(path string) { started = append(started, path) },
		OnDocument: func(res models.DocumentResult) { seen = append(seen, res.Name) },
	}

	paths := []string{"/in/a.pdf", "/in/broken.pdf", "/in/panic.pdf", "/in/short.pdf"}
	results, err := r.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, paths, started)
	assert.Equal(t, []string{"a.pdf", "broken.pdf", "panic.pdf", "short.pdf"}, seen)
	assert.Equal(t, 3, Failed(results))

	ok := results[0]
	assert.True(t, ok.OK())
	assert.Equal(t, 1, ok.Pages)
	require.NotNil(t, ok.Receipt)
	assert.Equal(t, "a.pdf", ok.Receipt.Name)
	assert.Equal(t, "57.15", ok.Receipt.Deduction.Result.String())

	assert.Nil(t, results[1].Receipt)
	assert.Contains(t, results[1].Reason(), "no readable text")

	assert.Contains(t, results[2].Reason(), "panicked")

	short := results[3]
	require.NotNil(t, short.Receipt, "partial receipt is kept")
	assert.ErrorIs(t, short.Err, parser.ErrVectorTooShort)
}

func TestRunner_RecordsHistory(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	src := &fakeSource{
		pages: map[string][]string{"a.pdf": {receiptPage}},
		errs:  map[string]error{"b.pdf": errors.New("corrupt")},
	}
	r := &Runner{Pages: src, Parser: parser.New(), Store: st, Input: "/in"}

	results, err := r.Run(context.Background(), []string{"/in/a.pdf", "/in/b.pdf"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	var runID string
	require.NoError(t, st.DB.QueryRow(`SELECT id FROM runs`).Scan(&runID))

	run, err := st.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, "/in", run.Source)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 1, run.Failed)

	docs, err := st.ListDocuments(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, store.StatusOK, docs[0].Status)
	assert.Equal(t, store.StatusError, docs[1].Status)
}

func TestRunner_CancelStopsBetweenDocuments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := &fakeSource{pages: map[string][]string{"a.pdf": {receiptPage}, "b.pdf": {receiptPage}}}
	r := &Runner{
		Pages:      src,
		Parser:     parser.New(),
		OnDocument: func(models.DocumentResult) { cancel() },
	}

	results, err := r.Run(ctx, []string{"/in/a.pdf", "/in/b.pdf"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{"a.pdf"}, src.calls)
}

func TestRunner_Empty(t *testing.T) {
	r := &Runner{Pages: &fakeSource{}, Parser: parser.New()}

	results, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt", "c.pdf.bak"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o700))

	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf")}, paths)

	_, err = Discover(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
