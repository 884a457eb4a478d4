package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/checklistrenamer/internal/extraction"
	"github.com/Lllllllleong/checklistrenamer/internal/models"
)

// ErrNoDocuments is returned when a run is started without any document.
var ErrNoDocuments = errors.New("no documents to process")

// TextExtractor yields the ordered page text of a document's raw bytes.
type TextExtractor interface {
	Pages(ctx context.Context, data []byte) ([]string, error)
}

// SerialFinder classifies page text.
type SerialFinder interface {
	Extract(pages []string) extraction.Result
}

// Snapshot is an immutable, ordered copy of every record taken right after a transition.
type Snapshot struct {
	Seq       int
	Records   []models.ProcessingRecord
	Completed int
	Total     int
}

// ProgressFunc observes snapshots. It is called from a single serialization
// point, in causal order, and must not block for long.
type ProgressFunc func(Snapshot)

// PipelineConfig holds the pipeline's concurrency settings.
type PipelineConfig struct {
	Workers         int
	DocumentTimeout time.Duration
}

// Pipeline drives documents through text extraction and the serial cascade.
type Pipeline struct {
	text   TextExtractor
	finder SerialFinder
	config PipelineConfig
	logger *slog.Logger
}

func NewPipeline(text TextExtractor, finder SerialFinder, config PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Pipeline{text: text, finder: finder, config: config, logger: logger}
}

// Batch is the outcome of a pipeline run. Each document is read once; the
// hash and the archived content come from that same read.
type Batch struct {
	Records []models.ProcessingRecord
	// Hashes maps record id to the sha256 of the bytes that were classified.
	// Unreadable documents are absent.
	Hashes map[string]string

	content map[string][]byte
}

// Resolver serves the bytes each succeeded record was classified from.
func (b *Batch) Resolver() ByteResolver {
	return func(ctx context.Context, id string) ([]byte, error) {
		data, ok := b.content[id]
		if !ok {
			return nil, fmt.Errorf("no captured content for document %s", id)
		}
		return data, nil
	}
}

// Run processes handles and returns one record per handle, in input order.
// Per-document failures end up on the records; the returned error is only set
// for an empty batch or when ctx is cancelled, in which case the partial
// record list is still returned.
func (p *Pipeline) Run(ctx context.Context, handles []models.DocumentHandle, progress ProgressFunc) ([]models.ProcessingRecord, error) {
	batch, err := p.RunBatch(ctx, handles, progress)
	if batch == nil {
		return nil, err
	}
	return batch.Records, err
}

// RunBatch is Run that also keeps the hashes and the content of succeeded documents.
func (p *Pipeline) RunBatch(ctx context.Context, handles []models.DocumentHandle, progress ProgressFunc) (*Batch, error) {
	if len(handles) == 0 {
		return nil, ErrNoDocuments
	}
	tr := newTracker(handles, progress, p.logger)
	p.logger.Info("Starting batch.", "documentCount", len(handles), "workers", p.config.Workers)

	var g errgroup.Group
	g.SetLimit(p.config.Workers)
	for i, h := range handles {
		if ctx.Err() != nil {
			break
		}
		if err := validateHandle(h); err != nil {
			p.logger.Warn("Rejecting invalid document.", "documentId", h.ID, "error", err)
			tr.start(i)
			tr.fail(i, models.Failure{Kind: models.KindInvalidInput, Detail: err.Error()})
			continue
		}
		g.Go(func() error {
			p.process(ctx, tr, i, h)
			return nil
		})
	}
	_ = g.Wait()

	batch := tr.batch()
	summary := Summarize(batch.Records)
	if err := ctx.Err(); err != nil {
		p.logger.Warn("Batch cancelled, returning partial result.", "completed", summary.Succeeded+summary.Failed, "total", summary.Total, "error", err)
		return batch, err
	}
	p.logger.Info("Batch complete.", "succeeded", summary.Succeeded, "failed", summary.Failed)
	return batch, nil
}

func validateHandle(h models.DocumentHandle) error {
	var problems []string
	if h.DisplayName() == "" {
		problems = append(problems, "missing name")
	}
	if h.Size <= 0 {
		problems = append(problems, "empty content")
	}
	if h.Source == nil {
		problems = append(problems, "no byte source")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, ", "))
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, tr *tracker, i int, h models.DocumentHandle) {
	logCtx := p.logger.With("documentId", h.ID, "sourceName", h.DisplayName())
	tr.start(i)

	docCtx := ctx
	if p.config.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		docCtx, cancel = context.WithTimeout(ctx, p.config.DocumentTimeout)
		defer cancel()
	}

	res, data, blank, err := p.extract(docCtx, h)
	if data != nil {
		tr.digest(i, data)
	}
	if err != nil {
		if ctx.Err() != nil {
			logCtx.Warn("Abandoning document after cancellation.", "error", err)
			return
		}
		failure := models.FailureFrom(err)
		logCtx.Error("Document failed.", "kind", failure.Kind, "error", err)
		tr.fail(i, failure)
		return
	}

	if res.Outcome != extraction.Found || !models.ValidSerial(res.Serial) {
		failure := models.Failure{Kind: models.KindNotFound}
		if blank {
			failure.Detail = "nenhum texto extraível, o documento pode ser digitalizado"
		}
		logCtx.Info("Serial not found.", "blankText", blank)
		tr.fail(i, failure)
		return
	}
	logCtx.Info("Serial found.", "serial", res.Serial, "strategy", res.Strategy, "page", res.Page)
	tr.succeed(i, res, data)
}

// extract reads the document once and runs the cascade. data is the content
// that was read, nil when reading failed. blank reports that no page had any text.
func (p *Pipeline) extract(ctx context.Context, h models.DocumentHandle) (res extraction.Result, data []byte, blank bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.NewDocumentError(models.KindIOFailure, fmt.Errorf("unexpected panic: %v", r))
		}
	}()

	data, err = h.Source.Bytes(ctx)
	if err != nil {
		return res, nil, false, asDocumentError(models.KindIOFailure, err)
	}
	if len(data) == 0 {
		data = nil
	}
	pages, err := p.text.Pages(ctx, data)
	if err != nil {
		return res, data, false, asDocumentError(models.KindCorruptDocument, err)
	}
	if err := ctx.Err(); err != nil {
		return res, data, false, models.NewDocumentError(models.KindIOFailure, fmt.Errorf("timeout: %w", err))
	}

	blank = true
	for _, page := range pages {
		if strings.TrimSpace(page) != "" {
			blank = false
			break
		}
	}
	return p.finder.Extract(pages), data, blank, nil
}

// asDocumentError keeps an existing classification and otherwise applies fallback.
// Deadlines always count as I/O failures.
func asDocumentError(fallback models.ErrorKind, err error) error {
	var de *models.DocumentError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewDocumentError(models.KindIOFailure, fmt.Errorf("timeout: %w", err))
	}
	if errors.Is(err, context.Canceled) {
		return models.NewDocumentError(models.KindIOFailure, err)
	}
	return models.NewDocumentError(fallback, err)
}

// tracker owns the record list. Every transition and the snapshot that
// follows it happen under one lock.
type tracker struct {
	mu        sync.Mutex
	records   []models.ProcessingRecord
	hashes    []string
	content   [][]byte
	completed int
	seq       int
	progress  ProgressFunc
	logger    *slog.Logger
}

func newTracker(handles []models.DocumentHandle, progress ProgressFunc, logger *slog.Logger) *tracker {
	records := make([]models.ProcessingRecord, len(handles))
	for i, h := range handles {
		records[i] = models.ProcessingRecord{
			ID:         h.ID,
			SourceName: h.DisplayName(),
			State:      models.StatePending,
		}
	}
	t := &tracker{
		records:  records,
		hashes:   make([]string, len(handles)),
		content:  make([][]byte, len(handles)),
		progress: progress,
		logger:   logger,
	}
	t.mu.Lock()
	t.emitLocked()
	t.mu.Unlock()
	return t
}

func (t *tracker) start(i int) {
	t.apply(i, func(r *models.ProcessingRecord) { r.State = models.StateInProgress })
}

func (t *tracker) digest(i int, data []byte) {
	sum := sha256.Sum256(data)
	t.mu.Lock()
	t.hashes[i] = hex.EncodeToString(sum[:])
	t.mu.Unlock()
}

func (t *tracker) succeed(i int, res extraction.Result, data []byte) {
	if t.apply(i, func(r *models.ProcessingRecord) {
		r.State = models.StateSucceeded
		r.Serial = res.Serial
		r.DestinationName = models.DestinationName(res.Serial)
		r.Strategy = res.Strategy
		r.Page = res.Page
	}) {
		t.mu.Lock()
		t.content[i] = data
		t.mu.Unlock()
	}
}

func (t *tracker) fail(i int, failure models.Failure) {
	t.apply(i, func(r *models.ProcessingRecord) {
		r.State = models.StateFailed
		r.Failure = failure
	})
}

// apply mutates a copy of record i and commits it only if the state machine
// allows the move. It reports whether the move was committed.
func (t *tracker) apply(i int, mutate func(*models.ProcessingRecord)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.records[i]
	mutate(&next)
	if !t.records[i].State.CanTransition(next.State) {
		t.logger.Error("Rejected illegal state transition.", "documentId", next.ID, "from", t.records[i].State, "to", next.State)
		return false
	}
	t.records[i] = next
	if next.State.Terminal() {
		t.completed++
	}
	t.emitLocked()
	return true
}

func (t *tracker) emitLocked() {
	if t.progress == nil {
		return
	}
	snap := Snapshot{
		Seq:       t.seq,
		Records:   slices.Clone(t.records),
		Completed: t.completed,
		Total:     len(t.records),
	}
	t.seq++
	t.progress(snap)
}

func (t *tracker) batch() *Batch {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := &Batch{
		Records: slices.Clone(t.records),
		Hashes:  make(map[string]string),
		content: make(map[string][]byte),
	}
	for i, r := range t.records {
		if t.hashes[i] != "" {
			b.Hashes[r.ID] = t.hashes[i]
		}
		if r.State == models.StateSucceeded && t.content[i] != nil {
			b.content[r.ID] = t.content[i]
		}
	}
	return b
}

// Summary counts records by outcome.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Pending   int
}

func Summarize(records []models.ProcessingRecord) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		switch r.State {
		case models.StateSucceeded:
			s.Succeeded++
		case models.StateFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}
