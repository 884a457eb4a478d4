package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/checklistrenamer/internal/models"
	"github.com/Lllllllleong/checklistrenamer/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult(runID string, started time.Time) *services.BatchResult {
	records := []models.ProcessingRecord{
		{ID: "a", SourceName: "a.pdf", State: models.StateSucceeded, Serial: "1A234567B", DestinationName: "1A234567B.pdf"},
		{ID: "b", SourceName: "b.pdf", State: models.StateFailed, Failure: models.Failure{Kind: models.KindNotFound}},
	}
	return &services.BatchResult{
		RunID:      runID,
		StartedAt:  started,
		Records:    records,
		Summary:    services.Summarize(records),
		Hashes:     map[string]string{"a": "deadbeef"},
		ArchiveURI: "/out/checklists_renomeados_2026-10-15.zip",
		ReportURI:  "/out/relatorio_processamento_2026-10-15.csv",
	}
}

func TestRecordRunAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	older := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	require.NoError(t, store.RecordRun(ctx, sampleResult("run-1", older)))
	require.NoError(t, store.RecordRun(ctx, sampleResult("run-2", newer)))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.True(t, runs[0].StartedAt.Equal(newer))
	assert.Equal(t, 2, runs[0].Total)
	assert.Equal(t, 1, runs[0].Succeeded)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, "/out/relatorio_processamento_2026-10-15.csv", runs[0].ReportURI)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDocumentsKeepInputOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.RecordRun(ctx, sampleResult("run-1", time.Now())))

	docs, err := store.Documents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Document{
		Position:        0,
		DocumentID:      "a",
		SourceName:      "a.pdf",
		State:           "SUCCEEDED",
		Serial:          "1A234567B",
		DestinationName: "1A234567B.pdf",
		SHA256:          "deadbeef",
	}, docs[0])
	assert.Equal(t, "NotFound", docs[1].FailureKind)
	assert.Empty(t, docs[1].Serial)
}

func TestRecordRunTwiceFails(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.RecordRun(ctx, sampleResult("run-1", time.Now())))
	assert.Error(t, store.RecordRun(ctx, sampleResult("run-1", time.Now())))

	docs, err := store.Documents(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestPreviousSerialUse(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRun(ctx, sampleResult("run-1", base)))
	require.NoError(t, store.RecordRun(ctx, sampleResult("run-2", base.Add(time.Hour))))

	ids, err := store.PreviousSerialUse(ctx, "1A234567B")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-2", "run-1"}, ids)

	ids, err = store.PreviousSerialUse(ctx, "1Z999999Z")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
