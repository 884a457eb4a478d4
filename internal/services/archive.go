package services

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Lllllllleong/checklistrenamer/internal/models"
)

// ErrNothingToArchive is returned when no succeeded record is handed to the builder.
var ErrNothingToArchive = errors.New("no succeeded records to archive")

// ByteResolver returns the original bytes of the document with the given id.
type ByteResolver func(ctx context.Context, id string) ([]byte, error)

// ArchiveEntry is one file inside the archive.
type ArchiveEntry struct {
	Name     string
	RecordID string
	Data     []byte
}

// SkippedRecord is a succeeded record that could not be archived.
type SkippedRecord struct {
	RecordID string
	Kind     models.ErrorKind
	Detail   string
}

// Collision records a destination name that was already taken and the name assigned instead.
type Collision struct {
	RecordID  string
	Requested string
	Assigned  string
}

// Archive maps destination names to original document bytes.
type Archive struct {
	Entries    []ArchiveEntry
	Skipped    []SkippedRecord
	Collisions []Collision
}

// ArchiveBuilder packages succeeded records under their destination names.
//
// Duplicate destinations: the first record, in input order, keeps its name;
// each later record asking for the same name gets the first free
// "<serial>_N.pdf" with N starting at 2, and is listed in Collisions.
// Entries are never overwritten.
type ArchiveBuilder struct {
	logger *slog.Logger
}

func NewArchiveBuilder(logger *slog.Logger) *ArchiveBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveBuilder{logger: logger}
}

// Build resolves the bytes of every succeeded record and assigns unique entry names.
func (b *ArchiveBuilder) Build(ctx context.Context, records []models.ProcessingRecord, resolve ByteResolver) (*Archive, error) {
	archive := &Archive{}
	used := make(map[string]bool)
	considered := 0

	for _, r := range records {
		if r.State != models.StateSucceeded {
			continue
		}
		considered++
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("archive build cancelled: %w", err)
		}
		logCtx := b.logger.With("documentId", r.ID, "sourceName", r.SourceName)

		if !models.ValidSerial(r.Serial) || r.DestinationName == "" {
			archive.Skipped = append(archive.Skipped, SkippedRecord{RecordID: r.ID, Kind: models.KindSkipped, Detail: "record has no valid serial"})
			logCtx.Warn("Skipping record without a valid serial.")
			continue
		}
		data, err := resolve(ctx, r.ID)
		if err != nil {
			archive.Skipped = append(archive.Skipped, SkippedRecord{RecordID: r.ID, Kind: models.KindSkipped, Detail: err.Error()})
			logCtx.Warn("Skipping record, original bytes unavailable.", "error", err)
			continue
		}

		name := uniqueName(r.DestinationName, used)
		used[name] = true
		if name != r.DestinationName {
			archive.Collisions = append(archive.Collisions, Collision{RecordID: r.ID, Requested: r.DestinationName, Assigned: name})
			logCtx.Warn("Destination name already taken, using suffixed name.", "requested", r.DestinationName, "assigned", name)
		}
		archive.Entries = append(archive.Entries, ArchiveEntry{Name: name, RecordID: r.ID, Data: data})
	}

	if considered == 0 {
		return nil, ErrNothingToArchive
	}
	b.logger.Info("Archive built.", "entries", len(archive.Entries), "skipped", len(archive.Skipped), "collisions", len(archive.Collisions))
	return archive, nil
}

func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if !used[candidate] {
			return candidate
		}
	}
}

// Entry returns the entry stored under name.
func (a *Archive) Entry(name string) (ArchiveEntry, bool) {
	for _, e := range a.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return ArchiveEntry{}, false
}

// WriteZip writes the entries, in order, as a zip container. modified is
// stamped on every entry so identical input gives identical output.
func (a *Archive) WriteZip(w io.Writer, modified time.Time) error {
	zw := zip.NewWriter(w)
	for _, e := range a.Entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("failed to create zip entry %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("failed to write zip entry %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip: %w", err)
	}
	return nil
}

// ArchiveFileName is the download name of the archive produced on day t.
func ArchiveFileName(t time.Time) string {
	return "checklists_renomeados_" + t.Format("2006-01-02") + ".zip"
}
