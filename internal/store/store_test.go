package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/discount-receipt-extractor/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApplySchema(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{"runs", "documents"} {
		var name string
		err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	// Re-applying is a no-op.
	assert.NoError(t, ApplySchema(s.DB))
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx, "/data/comprovantes")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "/data/comprovantes", run.Source)
	assert.Zero(t, run.FinishedAt)

	ok := models.DocumentResult{
		Path:  "/data/comprovantes/a.pdf",
		Name:  "a.pdf",
		Pages: 2,
		Receipt: &models.Receipt{
			Name:   "a.pdf",
			Titles: []models.TitleRow{{Seq: "1"}, {Seq: "2"}},
			Deduction: &models.Deduction{
				Result: decimal.RequireFromString("57.15"),
			},
		},
	}
	partial := models.DocumentResult{
		Path:    "/data/comprovantes/b.pdf",
		Name:    "b.pdf",
		Receipt: &models.Receipt{Name: "b.pdf"},
		Err:     errors.New("financial vector too short"),
	}
	failed := models.DocumentResult{
		Path: "/data/comprovantes/c.pdf",
		Name: "c.pdf",
		Err:  errors.New("PDF text extraction failed"),
	}
	for _, res := range []models.DocumentResult{ok, partial, failed} {
		require.NoError(t, s.RecordDocument(ctx, runID, res))
	}
	require.NoError(t, s.FinishRun(ctx, runID, 3, 2))

	run, err = s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.NotZero(t, run.FinishedAt)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 2, run.Failed)

	docs, err := s.ListDocuments(ctx, runID)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "a.pdf", docs[0].Name)
	assert.Equal(t, StatusOK, docs[0].Status)
	assert.Equal(t, 2, docs[0].Pages)
	assert.Equal(t, 2, docs[0].Titles)
	assert.Equal(t, "57.15", docs[0].Deduction)

	var stored models.Receipt
	require.NoError(t, json.Unmarshal([]byte(docs[0].ReceiptJSON), &stored))
	assert.Len(t, stored.Titles, 2)

	assert.Equal(t, StatusPartial, docs[1].Status)
	assert.Equal(t, "financial vector too short", docs[1].Error)

	assert.Equal(t, StatusError, docs[2].Status)
	assert.Empty(t, docs[2].ReceiptJSON)
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, source := range []string{"janeiro", "fevereiro", "marco"} {
		id, err := s.BeginRun(ctx, source)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest run first")
	assert.Equal(t, ids[1], runs[1].ID)

	runs, err = s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestFinishRun_Unknown(t *testing.T) {
	s := openTestStore(t)

	err := s.FinishRun(context.Background(), "missing", 0, 0)
	assert.Error(t, err)
}

func TestGetRun_Unknown(t *testing.T) {
	s := openTestStore(t)

	run, err := s.GetRun(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, run)
}

func TestRecordDocument_UnknownRun(t *testing.T) {
	s := openTestStore(t)

	err := s.RecordDocument(context.Background(), "missing", models.DocumentResult{Name: "x.pdf"})
	assert.Error(t, err, "foreign key must reject documents without a run")
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	runID, err := s.BeginRun(context.Background(), "dir")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.NotNil(t, run)
}
