// Package pdftext turns raw PDF bytes into ordered per-page text and
// classifies documents it cannot read.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"

	"github.com/Lllllllleong/checklistrenamer/internal/models"
)

// Config controls extraction limits.
type Config struct {
	// MaxPages caps how many pages are read; 0 reads every page.
	MaxPages int
}

// Extractor validates a PDF with pdfcpu and reads its page text with ledongthuc/pdf.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPages < 0 {
		cfg.MaxPages = 0
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// TextFunc adapts a plain function to the extractor contract.
type TextFunc func(ctx context.Context, data []byte) ([]string, error)

func (f TextFunc) Pages(ctx context.Context, data []byte) ([]string, error) {
	return f(ctx, data)
}

// Pages returns the NFKC-normalized text of each page, in page order.
// Failures are returned as *models.DocumentError carrying the failure kind.
func (e *Extractor) Pages(ctx context.Context, data []byte) (pages []string, err error) {
	if len(data) == 0 {
		return nil, models.NewDocumentError(models.KindInvalidInput, errors.New("empty document"))
	}
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = models.NewDocumentError(models.KindCorruptDocument, fmt.Errorf("pdf parser panic: %v", r))
		}
	}()

	pageCount, err := validate(data)
	if err != nil {
		return nil, classify(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, models.NewDocumentError(models.KindIOFailure, err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, classify(err)
	}
	n := reader.NumPage()
	if n == 0 {
		n = pageCount
	}
	if e.cfg.MaxPages > 0 && n > e.cfg.MaxPages {
		e.logger.Debug("Page limit reached, truncating document.", "pageCount", n, "maxPages", e.cfg.MaxPages)
		n = e.cfg.MaxPages
	}

	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, models.NewDocumentError(models.KindIOFailure, err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("Failed to extract text from page.", "page", i, "error", err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, norm.NFKC.String(text))
	}
	return pages, nil
}

// validate runs pdfcpu's relaxed structural validation and returns the page count.
func validate(data []byte) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), cfg)
}

// classify maps parser errors onto document failure kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var de *models.DocumentError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NewDocumentError(models.KindIOFailure, err)
	}
	if errors.Is(err, pdf.ErrInvalidPassword) || isPasswordError(err) {
		return models.NewDocumentError(models.KindPasswordProtected, err)
	}
	return models.NewDocumentError(models.KindCorruptDocument, err)
}

func isPasswordError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}
