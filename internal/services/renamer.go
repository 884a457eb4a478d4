package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/checklistrenamer/internal/config"
	"github.com/Lllllllleong/checklistrenamer/internal/extraction"
	"github.com/Lllllllleong/checklistrenamer/internal/models"
	"github.com/Lllllllleong/checklistrenamer/internal/pdftext"
)

const (
	ReportFormatCSV  = "csv"
	ReportFormatXLSX = "xlsx"
)

// Publisher stores a produced artifact under name.
type Publisher interface {
	Publish(ctx context.Context, name string, data []byte) (string, error)
}

// RecordSink persists the outcome of a run.
type RecordSink interface {
	RecordRun(ctx context.Context, result *BatchResult) error
}

type RenamerConfig struct {
	Pipeline     PipelineConfig
	ReportFormat string
	Progress     ProgressFunc
}

// BatchResult is everything a run produced.
type BatchResult struct {
	RunID     string
	StartedAt time.Time
	Records   []models.ProcessingRecord
	Summary   Summary
	// Hashes maps document id to the sha256 of its bytes. Unreadable documents are absent.
	Hashes map[string]string

	// Archive is nil when no document succeeded.
	Archive      *Archive
	ArchiveName  string
	ArchiveBytes []byte

	Report      Report
	ReportName  string
	ReportBytes []byte

	// Set by Deliver.
	ArchiveURI string
	ReportURI  string
}

// Renamer runs a batch end to end: extraction, archive and audit report.
type Renamer struct {
	pipeline *Pipeline
	archiver *ArchiveBuilder
	reports  ReportGenerator
	config   RenamerConfig
	logger   *slog.Logger
}

func NewRenamer(text TextExtractor, finder SerialFinder, config RenamerConfig, logger *slog.Logger) *Renamer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ReportFormat == "" {
		config.ReportFormat = ReportFormatCSV
	}
	return &Renamer{
		pipeline: NewPipeline(text, finder, config.Pipeline, logger),
		archiver: NewArchiveBuilder(logger),
		config:   config,
		logger:   logger,
	}
}

// NewRenamerFromConfig wires the PDF text extractor and the serial engine
// according to cfg.
func NewRenamerFromConfig(cfg *config.Config, progress ProgressFunc, logger *slog.Logger) *Renamer {
	text := pdftext.New(pdftext.Config{MaxPages: cfg.Processing.MaxPages}, logger)
	return NewRenamer(text, extraction.New(cfg.Processing.Labels), RenamerConfig{
		Pipeline: PipelineConfig{
			Workers:         cfg.Processing.Workers,
			DocumentTimeout: cfg.DocumentTimeout(),
		},
		ReportFormat: cfg.Output.ReportFormat,
		Progress:     progress,
	}, logger)
}

// Process runs the batch under a fresh run id. now stamps the output names
// and archive entries. On cancellation the partial result is returned
// together with the context error.
func (r *Renamer) Process(ctx context.Context, handles []models.DocumentHandle, now time.Time) (*BatchResult, error) {
	return r.ProcessRun(ctx, uuid.NewString(), handles, now)
}

// ProcessRun is Process with a caller-chosen run id.
func (r *Renamer) ProcessRun(ctx context.Context, runID string, handles []models.DocumentHandle, now time.Time) (*BatchResult, error) {
	result := &BatchResult{RunID: runID, StartedAt: now}
	logCtx := r.logger.With("runId", result.RunID)
	logCtx.Info("Starting batch run.", "documents", len(handles))

	batch, runErr := r.pipeline.RunBatch(ctx, handles, r.config.Progress)
	if errors.Is(runErr, ErrNoDocuments) {
		return nil, runErr
	}
	records := batch.Records
	result.Records = records
	result.Hashes = batch.Hashes
	result.Summary = Summarize(records)

	report, err := r.buildReport(records, now)
	if err != nil {
		return nil, err
	}
	result.Report = report.report
	result.ReportName = report.name
	result.ReportBytes = report.data

	if runErr != nil {
		logCtx.Warn("Batch run interrupted.", "error", runErr, "completed", result.Summary.Succeeded+result.Summary.Failed)
		return result, runErr
	}

	archive, err := r.archiver.Build(ctx, records, batch.Resolver())
	switch {
	case errors.Is(err, ErrNothingToArchive):
		logCtx.Warn("No document succeeded, skipping archive.")
	case err != nil:
		return result, fmt.Errorf("failed to build archive: %w", err)
	default:
		var buf bytes.Buffer
		if err := archive.WriteZip(&buf, now); err != nil {
			return result, err
		}
		result.Archive = archive
		result.ArchiveName = ArchiveFileName(now)
		result.ArchiveBytes = buf.Bytes()
	}

	logCtx.Info("Batch run complete.",
		"succeeded", result.Summary.Succeeded,
		"failed", result.Summary.Failed,
		"archiveEntries", archiveEntryCount(result.Archive),
	)
	return result, nil
}

type renderedReport struct {
	report Report
	name   string
	data   []byte
}

func (r *Renamer) buildReport(records []models.ProcessingRecord, now time.Time) (renderedReport, error) {
	report := r.reports.Generate(records)
	out := renderedReport{report: report, name: ReportFileName(now, r.config.ReportFormat)}
	switch r.config.ReportFormat {
	case ReportFormatXLSX:
		data, err := report.XLSX()
		if err != nil {
			return out, fmt.Errorf("failed to render report: %w", err)
		}
		out.data = data
	case ReportFormatCSV:
		out.data = report.CSV()
	default:
		return out, fmt.Errorf("unsupported report format %q", r.config.ReportFormat)
	}
	return out, nil
}

// Deliver publishes the archive and report, then records the run.
// A nil sink skips recording.
func (r *Renamer) Deliver(ctx context.Context, result *BatchResult, pub Publisher, sink RecordSink) error {
	logCtx := r.logger.With("runId", result.RunID)
	if result.Archive != nil {
		uri, err := pub.Publish(ctx, result.ArchiveName, result.ArchiveBytes)
		if err != nil {
			return fmt.Errorf("failed to publish archive: %w", err)
		}
		result.ArchiveURI = uri
		logCtx.Info("Archive published.", "uri", uri)
	}
	uri, err := pub.Publish(ctx, result.ReportName, result.ReportBytes)
	if err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	result.ReportURI = uri
	logCtx.Info("Report published.", "uri", uri)

	if sink == nil {
		return nil
	}
	if err := sink.RecordRun(ctx, result); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func archiveEntryCount(a *Archive) int {
	if a == nil {
		return 0
	}
	return len(a.Entries)
}
