package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/checklistrenamer/internal/cloudfn"
	"github.com/Lllllllleong/checklistrenamer/internal/ingest"
	"github.com/Lllllllleong/checklistrenamer/internal/models"
)

var (
	renamerInstance *cloudfn.RenamerFunction
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("RenameChecklists", renameChecklists)
	functions.HTTP("RenameFolder", renameFolder)
}

// main is required by the Go Functions Framework.
func main() {}

func ensureInstance() error {
	once.Do(func() {
		renamerInstance, initErr = cloudfn.NewRenamerFunction(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
	}
	return initErr
}

// renameChecklists handles a GCS object finalize event.
func renameChecklists(ctx context.Context, e cloudevents.Event) error {
	if err := ensureInstance(); err != nil {
		return err
	}

	var gcsEvent cloudfn.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Process logs its own failures with run context.
	return renamerInstance.Process(ctx, gcsEvent)
}

// renameFolder processes every PDF under a bucket prefix and returns the hand-off payload.
func renameFolder(w http.ResponseWriter, r *http.Request) {
	if err := ensureInstance(); err != nil {
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if req.Bucket == "" {
		http.Error(w, "Bad Request: bucket is required", http.StatusBadRequest)
		return
	}

	res, err := renamerInstance.ProcessFolder(r.Context(), req)
	if errors.Is(err, ingest.ErrNoPDFs) {
		http.Error(w, "Unprocessable Entity: no PDF documents under prefix", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "runId", res.RunID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
