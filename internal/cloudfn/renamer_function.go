// Package cloudfn hosts the GCS-triggered batch renamer.
package cloudfn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/google/uuid"

	"github.com/Lllllllleong/checklistrenamer/internal/config"
	"github.com/Lllllllleong/checklistrenamer/internal/gcp"
	"github.com/Lllllllleong/checklistrenamer/internal/ingest"
	"github.com/Lllllllleong/checklistrenamer/internal/models"
	"github.com/Lllllllleong/checklistrenamer/internal/services"
)

// OutputPrefix is where run artifacts are written inside the output bucket.
const OutputPrefix = "runs"

type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

type RenamerFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	runs             gcp.RunStore
	renamer          *services.Renamer
	config           *config.Config
}

func NewRenamerFunction(ctx context.Context) (*RenamerFunction, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	f := &RenamerFunction{
		firestoreClient: firestoreClient,
		storageClient:   storageClient,
		runs:            gcp.RunStore{Client: firestoreClient, Collection: cfg.GCP.Collection},
		renamer:         services.NewRenamerFromConfig(cfg, nil, slog.Default()),
		config:          cfg,
	}
	if cfg.WorkflowEnabled() {
		f.executionsClient, err = executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}
	slog.Info("Checklist renamer initialized.", "outputBucket", cfg.GCP.OutputBucket, "workflowId", cfg.GCP.WorkflowID)
	return f, nil
}

// ShouldProcess reports whether an uploaded object is batch input. Artifacts the
// function wrote itself are ignored so a shared bucket does not loop.
func ShouldProcess(e GCSEvent, outputBucket string) bool {
	if e.Name == "" || strings.HasSuffix(e.Name, "/") {
		return false
	}
	if e.Bucket == outputBucket && strings.HasPrefix(e.Name, OutputPrefix+"/") {
		return false
	}
	ext := strings.ToLower(path.Ext(e.Name))
	return ext == ".pdf" || ext == ".zip"
}

// Handoff is the workflow argument for a published run.
func Handoff(result *services.BatchResult, sourceURI string) models.BatchHandoff {
	return models.BatchHandoff{
		RunID:      result.RunID,
		SourceURI:  sourceURI,
		ArchiveURI: result.ArchiveURI,
		ReportURI:  result.ReportURI,
		Total:      result.Summary.Total,
		Succeeded:  result.Summary.Succeeded,
		Failed:     result.Summary.Failed,
	}
}

func (f *RenamerFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !ShouldProcess(e, f.config.GCP.OutputBucket) {
		logCtx.Info("Ignoring object that is not batch input.")
		return nil
	}
	logCtx.Info("Processing new GCS object.")

	data, err := gcp.ReadObject(ctx, f.storageClient, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download source object", "error", err)
		return err
	}

	sum := sha256.Sum256(data)
	sourceHash := hex.EncodeToString(sum[:])
	logCtx = logCtx.With("sourceHash", sourceHash)

	existingRunID, isDuplicate, err := f.runs.FindBySourceHash(ctx, sourceHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if isDuplicate {
		logCtx.Info("Duplicate upload detected. Skipping.", "existingRunId", existingRunID)
		return nil
	}

	sourceURI := gcp.ObjectURI(e.Bucket, e.Name)
	runID := uuid.NewString()
	if _, err := f.runs.Create(ctx, models.BatchRun{
		RunID:      runID,
		SourceURI:  sourceURI,
		SourceHash: sourceHash,
		Status:     models.RunStatusProcessing,
		CreatedAt:  time.Now(),
	}); err != nil {
		logCtx.Error("Failed to create run document", "error", err)
		return err
	}
	logCtx = logCtx.With("runId", runID)
	logCtx.Info("Created run document in Firestore.")

	collector := ingest.NewCollector(logCtx)
	if err := collector.AddBytes(e.Name, data); err != nil {
		return f.handleError(ctx, logCtx, runID, "failed to read upload", err)
	}
	handles, err := collector.Handles()
	if err != nil {
		// An upload without PDFs is recorded as failed but not retried.
		_ = f.handleError(ctx, logCtx, runID, "upload contains no documents", err)
		return nil
	}

	_, err = f.runBatch(ctx, logCtx, runID, sourceURI, handles)
	return err
}

// ProcessFolder runs every PDF under req.Prefix as one batch. Documents are
// read from GCS by the pipeline workers as they are processed.
func (f *RenamerFunction) ProcessFolder(ctx context.Context, req models.FolderRequest) (*models.BatchHandoff, error) {
	if req.Bucket == "" {
		return nil, fmt.Errorf("bucket must be provided")
	}
	logCtx := slog.With("gcsBucket", req.Bucket, "gcsPrefix", req.Prefix)
	logCtx.Info("Processing GCS folder.")

	objects, err := gcp.ListObjects(ctx, f.storageClient, req.Bucket, req.Prefix)
	if err != nil {
		logCtx.Error("Failed to list folder", "error", err)
		return nil, err
	}
	handles := FolderHandles(f.storageClient, req.Bucket, objects)
	if len(handles) == 0 {
		logCtx.Warn("Folder contains no PDF documents.", "objects", len(objects))
		return nil, ingest.ErrNoPDFs
	}

	sourceURI := gcp.ObjectURI(req.Bucket, req.Prefix)
	runID := uuid.NewString()
	if _, err := f.runs.Create(ctx, models.BatchRun{
		RunID:     runID,
		SourceURI: sourceURI,
		Status:    models.RunStatusProcessing,
		CreatedAt: time.Now(),
	}); err != nil {
		logCtx.Error("Failed to create run document", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("runId", runID)

	result, err := f.runBatch(ctx, logCtx, runID, sourceURI, handles)
	if err != nil {
		return nil, err
	}
	handoff := Handoff(result, sourceURI)
	return &handoff, nil
}

// FolderHandles turns the PDF objects of a listing into lazily read handles.
func FolderHandles(client *storage.Client, bucket string, objects []gcp.ObjectInfo) []models.DocumentHandle {
	var handles []models.DocumentHandle
	for _, o := range objects {
		if !ingest.IsPDFName(o.Name) {
			continue
		}
		handles = append(handles, models.DocumentHandle{
			ID:     uuid.NewString(),
			Path:   o.Name,
			Source: gcp.ObjectSource{Client: client, Bucket: bucket, Object: o.Name},
			Size:   o.Size,
		})
	}
	return handles
}

func (f *RenamerFunction) runBatch(ctx context.Context, logCtx *slog.Logger, runID, sourceURI string, handles []models.DocumentHandle) (*services.BatchResult, error) {
	result, err := f.renamer.ProcessRun(ctx, runID, handles, time.Now())
	if err != nil {
		return nil, f.handleError(ctx, logCtx, runID, "batch run failed", err)
	}

	publisher := gcp.BucketPublisher{
		Client: f.storageClient,
		Bucket: f.config.GCP.OutputBucket,
		Prefix: path.Join(OutputPrefix, runID),
	}
	if err := f.renamer.Deliver(ctx, result, publisher, f.runs); err != nil {
		return nil, f.handleError(ctx, logCtx, runID, "failed to publish run", err)
	}

	if f.executionsClient != nil {
		if err := f.triggerWorkflow(ctx, logCtx, result, sourceURI); err != nil {
			return nil, err
		}
	}

	logCtx.Info("Batch published.", "succeeded", result.Summary.Succeeded, "failed", result.Summary.Failed)
	return result, nil
}

func (f *RenamerFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, result *services.BatchResult, sourceURI string) error {
	logCtx.Info("Triggering workflow.")
	target := gcp.WorkflowTarget{
		ProjectID:  f.config.GCP.ProjectID,
		Location:   f.config.GCP.WorkflowLocation,
		WorkflowID: f.config.GCP.WorkflowID,
	}
	execution, err := gcp.TriggerWorkflow(ctx, f.executionsClient, target, Handoff(result, sourceURI))
	if err != nil {
		return f.handleError(ctx, logCtx, result.RunID, "failed to hand off to workflow", err)
	}
	logCtx.Info("Hand-off to workflow complete.", "execution", execution)
	return nil
}

func (f *RenamerFunction) handleError(ctx context.Context, logCtx *slog.Logger, runID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.runs.UpdateStatus(ctx, runID, models.RunStatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}
