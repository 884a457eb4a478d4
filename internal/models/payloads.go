package models

import "time"

// Run statuses stored on BatchRun.
const (
	RunStatusProcessing = "PROCESSING"
	RunStatusCompleted  = "COMPLETED"
	RunStatusFailed     = "FAILED"
)

// These structs define the JSON payloads exchanged with the downstream workflow
// and returned by the batch function.

// BatchHandoff is the argument passed to the downstream workflow once a batch is published.
type BatchHandoff struct {
	RunID      string `json:"runId"`
	SourceURI  string `json:"sourceUri"`
	ArchiveURI string `json:"archiveUri,omitempty"`
	ReportURI  string `json:"reportUri"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
}

// BatchRun is the master audit document for one batch, stored in Firestore.
type BatchRun struct {
	RunID        string    `firestore:"runId"`
	SourceURI    string    `firestore:"sourceUri,omitempty"`
	SourceHash   string    `firestore:"sourceHash,omitempty"`
	Status       string    `firestore:"status"`
	ArchiveURI   string    `firestore:"archiveUri,omitempty"`
	ReportURI    string    `firestore:"reportUri,omitempty"`
	Total        int       `firestore:"total"`
	Succeeded    int       `firestore:"succeeded"`
	Failed       int       `firestore:"failed"`
	Skipped      int       `firestore:"skipped"`
	ErrorDetails string    `firestore:"errorDetails,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt,omitempty"`
}

// DocumentAudit is the per-document audit entry stored under a BatchRun.
type DocumentAudit struct {
	Position int              `firestore:"position"`
	Record   ProcessingRecord `firestore:"record"`
	SHA256   string           `firestore:"sha256,omitempty"`
}

// FolderRequest asks for every PDF under a bucket prefix to be processed as one batch.
type FolderRequest struct {
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}
