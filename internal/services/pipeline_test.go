package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/checklistrenamer/internal/extraction"
	"github.com/Lllllllleong/checklistrenamer/internal/models"
	"github.com/Lllllllleong/checklistrenamer/internal/pdftext"
)

// fixtureText treats document bytes as page text separated by form feeds.
// A few marker documents simulate collaborator failures.
var fixtureText = pdftext.TextFunc(func(ctx context.Context, data []byte) ([]string, error) {
	switch string(data) {
	case "CORRUPT":
		return nil, models.NewDocumentError(models.KindCorruptDocument, errors.New("xref table not found"))
	case "LOCKED":
		return nil, models.NewDocumentError(models.KindPasswordProtected, errors.New("encrypted"))
	case "PANIC":
		panic("parser exploded")
	case "SLOW":
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return strings.Split(string(data), "\f"), nil
})

type countingFinder struct {
	inner SerialFinder
	calls atomic.Int32
}

func (c *countingFinder) Extract(pages []string) extraction.Result {
	c.calls.Add(1)
	return c.inner.Extract(pages)
}

func handle(id, name, content string) models.DocumentHandle {
	return models.DocumentHandle{ID: id, SourceName: name, Source: models.MemorySource(content), Size: int64(len(content))}
}

func newTestPipeline(workers int) *Pipeline {
	return NewPipeline(fixtureText, extraction.New(nil), PipelineConfig{Workers: workers}, nil)
}

func TestRunScenarioFoundSerial(t *testing.T) {
	records, err := newTestPipeline(1).Run(context.Background(), []models.DocumentHandle{
		handle("doc-1", "checklist.pdf", "... 1A234567B ..."),
	}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "doc-1", r.ID)
	assert.Equal(t, models.StateSucceeded, r.State)
	assert.Equal(t, "1A234567B", r.Serial)
	assert.Equal(t, "1A234567B.pdf", r.DestinationName)
	assert.True(t, r.Failure.IsZero())
	assert.Equal(t, extraction.StrategyGenericPattern, r.Strategy)
	assert.Equal(t, 1, r.Page)
}

func TestRunScenarioCorruptDocument(t *testing.T) {
	records, err := newTestPipeline(1).Run(context.Background(), []models.DocumentHandle{
		handle("doc-1", "quebrado.pdf", "CORRUPT"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, records[0].State)
	assert.Equal(t, models.KindCorruptDocument, records[0].Failure.Kind)
	assert.Empty(t, records[0].Serial)
}

func TestRunBatchKeepsIngestionFailures(t *testing.T) {
	damaged := models.NewDocumentError(models.KindCorruptDocument, errors.New("zip: checksum error"))
	batch, err := newTestPipeline(2).RunBatch(context.Background(), []models.DocumentHandle{
		handle("good", "good.pdf", "1A234567B"),
		{ID: "bad", Path: "lote/bad.pdf", Source: models.FailedSource{Err: damaged}, Size: 14},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StateSucceeded, batch.Records[0].State)
	assert.Equal(t, models.StateFailed, batch.Records[1].State)
	assert.Equal(t, models.KindCorruptDocument, batch.Records[1].Failure.Kind)
	assert.Equal(t, "bad.pdf", batch.Records[1].SourceName)

	assert.Contains(t, batch.Hashes, "good")
	assert.NotContains(t, batch.Hashes, "bad")
	_, err = batch.Resolver()(context.Background(), "bad")
	assert.Error(t, err)
	data, err := batch.Resolver()(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "1A234567B", string(data))
}

func TestRunScenarioInvalidInputNeverReachesEngine(t *testing.T) {
	finder := &countingFinder{inner: extraction.New(nil)}
	p := NewPipeline(fixtureText, finder, PipelineConfig{Workers: 2}, nil)

	var states []models.State
	records, err := p.Run(context.Background(), []models.DocumentHandle{
		{ID: "doc-1", SourceName: "", Source: models.MemorySource(nil), Size: 0},
	}, func(s Snapshot) { states = append(states, s.Records[0].State) })
	require.NoError(t, err)

	assert.Equal(t, models.StateFailed, records[0].State)
	assert.Equal(t, models.KindInvalidInput, records[0].Failure.Kind)
	assert.Equal(t, int32(0), finder.calls.Load())
	assert.Equal(t, []models.State{models.StatePending, models.StateInProgress, models.StateFailed}, states)
}

func TestRunClassifiesEveryOutcome(t *testing.T) {
	handles := []models.DocumentHandle{
		handle("a", "a.pdf", "capa\fNúmero de Série: 1A234567B"),
		handle("b", "b.pdf", "sem número"),
		handle("c", "c.pdf", "LOCKED"),
		handle("d", "d.pdf", "CORRUPT"),
		handle("e", "e.pdf", "PANIC"),
		handle("f", "f.pdf", " \f "),
		{ID: "g", SourceName: "g.pdf", Source: failingSource{}, Size: 10},
		{ID: "h", Path: "./lote/h.pdf", Source: models.MemorySource("1H000000H"), Size: 9},
	}
	records, err := newTestPipeline(3).Run(context.Background(), handles, nil)
	require.NoError(t, err)
	require.Len(t, records, len(handles))

	want := []struct {
		state models.State
		kind  models.ErrorKind
	}{
		{models.StateSucceeded, ""},
		{models.StateFailed, models.KindNotFound},
		{models.StateFailed, models.KindPasswordProtected},
		{models.StateFailed, models.KindCorruptDocument},
		{models.StateFailed, models.KindIOFailure},
		{models.StateFailed, models.KindNotFound},
		{models.StateFailed, models.KindIOFailure},
		{models.StateSucceeded, ""},
	}
	for i, w := range want {
		assert.Equal(t, handles[i].ID, records[i].ID)
		assert.Equal(t, w.state, records[i].State, records[i].ID)
		assert.Equal(t, w.kind, records[i].Failure.Kind, records[i].ID)
	}
	assert.Equal(t, 2, records[0].Page)
	assert.Equal(t, extraction.StrategyLabeledField, records[0].Strategy)
	assert.NotEmpty(t, records[5].Failure.Detail)
	assert.Equal(t, "h.pdf", records[7].SourceName)
}

type failingSource struct{}

func (failingSource) Bytes(context.Context) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func TestRunPreservesOrderUnderConcurrency(t *testing.T) {
	const n = 40
	handles := make([]models.DocumentHandle, n)
	for i := range handles {
		serial := fmt.Sprintf("1A%06dB", i)
		handles[i] = handle(fmt.Sprintf("doc-%02d", i), fmt.Sprintf("f%02d.pdf", i), "texto "+serial)
	}

	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	records, err := newTestPipeline(8).Run(context.Background(), handles, func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Len(t, records, n)
	for i, r := range records {
		assert.Equal(t, handles[i].ID, r.ID)
		assert.Equal(t, fmt.Sprintf("1A%06dB", i), r.Serial)
	}

	require.Len(t, snaps, 1+2*n)
	rank := map[models.State]int{models.StatePending: 0, models.StateInProgress: 1, models.StateSucceeded: 2, models.StateFailed: 2}
	prev := snaps[0]
	assert.Equal(t, 0, prev.Completed)
	for _, s := range snaps[1:] {
		assert.Equal(t, prev.Seq+1, s.Seq)
		assert.GreaterOrEqual(t, s.Completed, prev.Completed)
		for i, r := range s.Records {
			assert.GreaterOrEqual(t, rank[r.State], rank[prev.Records[i].State])
			if !r.State.Terminal() {
				assert.Empty(t, r.Serial)
				assert.Empty(t, r.DestinationName)
				assert.True(t, r.Failure.IsZero())
			}
			if r.State == models.StateSucceeded {
				assert.True(t, models.ValidSerial(r.Serial))
			}
		}
		prev = s
	}
	assert.Equal(t, n, prev.Completed)
}

func TestSnapshotsAreIndependentCopies(t *testing.T) {
	var first Snapshot
	_, err := newTestPipeline(1).Run(context.Background(), []models.DocumentHandle{
		handle("a", "a.pdf", "1A234567B"),
	}, func(s Snapshot) {
		if s.Seq == 0 {
			first = s
		}
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, first.Records[0].State)
}

func TestRunPerDocumentTimeout(t *testing.T) {
	p := NewPipeline(fixtureText, extraction.New(nil), PipelineConfig{Workers: 2, DocumentTimeout: 20 * time.Millisecond}, nil)
	records, err := p.Run(context.Background(), []models.DocumentHandle{
		handle("slow", "slow.pdf", "SLOW"),
		handle("ok", "ok.pdf", "1A234567B"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, records[0].State)
	assert.Equal(t, models.KindIOFailure, records[0].Failure.Kind)
	assert.Contains(t, records[0].Failure.Detail, "timeout")
	assert.Equal(t, models.StateSucceeded, records[1].State)
}

func TestRunCancellationReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handles := []models.DocumentHandle{
		handle("a", "a.pdf", "1A234567B"),
		handle("b", "b.pdf", "1B234567C"),
		handle("c", "c.pdf", "1C234567D"),
	}
	records, err := newTestPipeline(1).Run(ctx, handles, func(s Snapshot) {
		if s.Completed == 1 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, records, 3)
	assert.Equal(t, models.StateSucceeded, records[0].State)
	assert.Equal(t, "1A234567B", records[0].Serial)
	for _, r := range records[1:] {
		assert.False(t, r.State.Terminal(), r.ID)
	}
}

func TestRunRejectsEmptyBatch(t *testing.T) {
	_, err := newTestPipeline(1).Run(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]models.ProcessingRecord{
		{State: models.StateSucceeded},
		{State: models.StateFailed},
		{State: models.StateFailed},
		{State: models.StateInProgress},
	})
	assert.Equal(t, Summary{Total: 4, Succeeded: 1, Failed: 2, Pending: 1}, s)
}

func TestTrackerRejectsIllegalTransitionOnItsLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	var snapshots int
	tr := newTracker([]models.DocumentHandle{handle("doc-1", "a.pdf", "x")}, func(Snapshot) { snapshots++ }, logger)

	committed := tr.apply(0, func(r *models.ProcessingRecord) { r.State = models.StateSucceeded })

	assert.False(t, committed)
	assert.Equal(t, 1, snapshots)
	assert.Equal(t, models.StatePending, tr.batch().Records[0].State)
	assert.Contains(t, logs.String(), "Rejected illegal state transition.")
	assert.Contains(t, logs.String(), "documentId=doc-1")
}
