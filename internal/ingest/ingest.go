// Package ingest turns local files, directories and zip uploads into
// DocumentHandles for a batch run.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Lllllllleong/checklistrenamer/internal/models"
)

// ErrNoPDFs is returned when the inputs contain no PDF document at all.
var ErrNoPDFs = errors.New("no pdf documents found")

// MaxZipEntrySize caps a single decompressed zip entry.
const MaxZipEntrySize = 256 << 20

// Collector accumulates handles in discovery order.
type Collector struct {
	logger  *slog.Logger
	handles []models.DocumentHandle
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger}
}

// Handles returns the collected handles, or ErrNoPDFs when there are none.
func (c *Collector) Handles() ([]models.DocumentHandle, error) {
	if len(c.handles) == 0 {
		return nil, ErrNoPDFs
	}
	return c.handles, nil
}

// AddPath adds a PDF file, every PDF under a directory, or every PDF inside a zip file.
func (c *Collector) AddPath(ctx context.Context, p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if info.IsDir() {
		return c.addDir(ctx, p)
	}
	return c.addFile(p, info.Size())
}

func (c *Collector) addDir(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		return c.addFile(p, info.Size())
	})
}

func (c *Collector) addFile(p string, size int64) error {
	switch {
	case IsPDFName(p):
		c.handles = append(c.handles, models.DocumentHandle{
			ID:         uuid.NewString(),
			SourceName: filepath.Base(p),
			Path:       p,
			Source:     models.FileSource(p),
			Size:       size,
		})
	case strings.EqualFold(filepath.Ext(p), ".zip"):
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		return c.AddZip(data)
	default:
		c.logger.Info("Ignoring non-PDF file.", "path", p)
	}
	return nil
}

// AddBytes adds a single uploaded document. Zip uploads are expanded.
func (c *Collector) AddBytes(name string, data []byte) error {
	if strings.EqualFold(path.Ext(name), ".zip") {
		return c.AddZip(data)
	}
	if !IsPDFName(name) {
		c.logger.Info("Ignoring non-PDF upload.", "name", name)
		return nil
	}
	c.handles = append(c.handles, models.DocumentHandle{
		ID:         uuid.NewString(),
		SourceName: path.Base(name),
		Source:     models.MemorySource(data),
		Size:       int64(len(data)),
	})
	return nil
}

// AddZip adds every PDF entry of a zip container, in container order.
// Entries keep their in-archive path; the display name is derived from it.
// An entry that cannot be read still gets a handle whose source fails, so it
// is reported as a failed document instead of aborting the batch.
func (c *Collector) AddZip(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || skipZipEntry(f.Name) {
			continue
		}
		if !IsPDFName(f.Name) {
			c.logger.Info("Ignoring non-PDF zip entry.", "entry", f.Name)
			continue
		}
		content, err := readZipEntry(f)
		if err != nil {
			c.logger.Warn("Unreadable zip entry.", "entry", f.Name, "error", err)
			c.handles = append(c.handles, models.DocumentHandle{
				ID:     uuid.NewString(),
				Path:   f.Name,
				Source: models.FailedSource{Err: err},
				Size:   max(int64(f.UncompressedSize64), 1),
			})
			continue
		}
		c.handles = append(c.handles, models.DocumentHandle{
			ID:     uuid.NewString(),
			Path:   f.Name,
			Source: models.MemorySource(content),
			Size:   int64(len(content)),
		})
	}
	return nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > MaxZipEntrySize {
		return nil, models.NewDocumentError(models.KindIOFailure,
			fmt.Errorf("zip entry %s exceeds %d bytes", f.Name, MaxZipEntrySize))
	}
	rc, err := f.Open()
	if err != nil {
		return nil, zipEntryError(fmt.Errorf("failed to open zip entry %s: %w", f.Name, err))
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxZipEntrySize+1))
	if err != nil {
		return nil, zipEntryError(fmt.Errorf("failed to read zip entry %s: %w", f.Name, err))
	}
	if len(data) > MaxZipEntrySize {
		return nil, models.NewDocumentError(models.KindIOFailure,
			fmt.Errorf("zip entry %s exceeds %d bytes", f.Name, MaxZipEntrySize))
	}
	return data, nil
}

// zipEntryError classifies damaged entry data as a corrupt document.
func zipEntryError(err error) error {
	switch {
	case errors.Is(err, zip.ErrChecksum), errors.Is(err, zip.ErrFormat), errors.Is(err, zip.ErrAlgorithm),
		errors.Is(err, io.ErrUnexpectedEOF):
		return models.NewDocumentError(models.KindCorruptDocument, err)
	default:
		return models.NewDocumentError(models.KindIOFailure, err)
	}
}

// IsPDFName reports whether name has a .pdf extension, in any case.
func IsPDFName(name string) bool {
	return strings.EqualFold(path.Ext(strings.ReplaceAll(name, "\\", "/")), ".pdf")
}

func skipZipEntry(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return isHidden(path.Base(name))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
