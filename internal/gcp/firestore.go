package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/checklistrenamer/internal/models"
	"github.com/Lllllllleong/checklistrenamer/internal/services"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// documentsCollection holds the per-document audit entries of a run.
const documentsCollection = "documents"

// RunStore persists batch runs. One master document per run, keyed by run id,
// with the audit entries in a subcollection.
type RunStore struct {
	Client     *firestore.Client
	Collection string
}

// FindBySourceHash returns the id of a run that already processed, or is
// processing, an upload with this hash. Failed runs do not count so a
// redelivered event can retry the batch.
func (s RunStore) FindBySourceHash(ctx context.Context, sourceHash string) (string, bool, error) {
	docs, err := s.Client.Collection(s.Collection).Where("sourceHash", "==", sourceHash).Documents(ctx).GetAll()
	if err != nil {
		return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	runs := make([]models.BatchRun, 0, len(docs))
	for _, doc := range docs {
		var run models.BatchRun
		if err := doc.DataTo(&run); err != nil {
			return "", false, fmt.Errorf("failed to decode run %s: %w", doc.Ref.ID, err)
		}
		if run.RunID == "" {
			run.RunID = doc.Ref.ID
		}
		runs = append(runs, run)
	}
	id, ok := blockingRun(runs)
	return id, ok, nil
}

// blockingRun picks the first run that makes a new upload with the same hash a duplicate.
func blockingRun(runs []models.BatchRun) (string, bool) {
	for _, run := range runs {
		if run.Status != models.RunStatusFailed {
			return run.RunID, true
		}
	}
	return "", false
}

// Create writes the master document for a new run.
func (s RunStore) Create(ctx context.Context, run models.BatchRun) (*firestore.DocumentRef, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	docRef := s.Client.Collection(s.Collection).Doc(run.RunID)
	if _, err := docRef.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run document: %w", err)
	}
	return docRef, nil
}

// UpdateStatus sets the run status and, when given, the error details.
func (s RunStore) UpdateStatus(ctx context.Context, runID, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := s.Client.Collection(s.Collection).Doc(runID).Update(ctx, updates)
	return err
}

// RecordRun stores the audit entries and marks the run completed.
func (s RunStore) RecordRun(ctx context.Context, result *services.BatchResult) error {
	runRef := s.Client.Collection(s.Collection).Doc(result.RunID)
	for i, r := range result.Records {
		audit := models.DocumentAudit{Position: i, Record: r, SHA256: result.Hashes[r.ID]}
		if _, err := runRef.Collection(documentsCollection).Doc(r.ID).Set(ctx, audit); err != nil {
			return fmt.Errorf("failed to write audit entry %s: %w", r.ID, err)
		}
	}

	skipped := 0
	if result.Archive != nil {
		skipped = len(result.Archive.Skipped)
	}
	updates := []firestore.Update{
		{Path: "status", Value: models.RunStatusCompleted},
		{Path: "total", Value: result.Summary.Total},
		{Path: "succeeded", Value: result.Summary.Succeeded},
		{Path: "failed", Value: result.Summary.Failed},
		{Path: "skipped", Value: skipped},
		{Path: "archiveUri", Value: result.ArchiveURI},
		{Path: "reportUri", Value: result.ReportURI},
	}
	if _, err := runRef.Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update run document: %w", err)
	}
	return nil
}
