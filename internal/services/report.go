package services

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Lllllllleong/checklistrenamer/internal/models"
)

const (
	StatusProcessed = "Processado"
	StatusError     = "Erro"

	reportSheet = "Relatorio"
)

// ReportHeader is the fixed column set of the audit report.
var ReportHeader = []string{"Nome Original", "Status", "Número de Série", "Novo Nome", "Motivo do Erro"}

// interruptedReason is reported for records a cancelled run never finished.
const interruptedReason = "Processamento interrompido"

// ReportRow is one audit line.
type ReportRow struct {
	OriginalName    string
	Status          string
	Serial          string
	DestinationName string
	Reason          string
}

func (r ReportRow) fields() []string {
	return []string{r.OriginalName, r.Status, r.Serial, r.DestinationName, r.Reason}
}

// Report is the tabular audit export of a run.
type Report struct {
	Header []string
	Rows   []ReportRow
}

// ReportGenerator turns terminal records into a Report.
type ReportGenerator struct{}

// Generate builds one row per record in input order.
func (ReportGenerator) Generate(records []models.ProcessingRecord) Report {
	rows := make([]ReportRow, 0, len(records))
	for _, r := range records {
		row := ReportRow{OriginalName: r.SourceName}
		switch r.State {
		case models.StateSucceeded:
			row.Status = StatusProcessed
			row.Serial = r.Serial
			row.DestinationName = r.DestinationName
		case models.StateFailed:
			row.Status = StatusError
			row.Reason = r.Failure.Reason()
		default:
			row.Status = StatusError
			row.Reason = interruptedReason
		}
		rows = append(rows, row)
	}
	return Report{Header: append([]string(nil), ReportHeader...), Rows: rows}
}

// WriteCSV writes the header and rows with every field quoted and "\n" line endings.
// Fields are written verbatim. A bare "\r" inside a field reads back as "\n"
// with encoding/csv; record names never contain one (see DocumentHandle.DisplayName).
func (r Report) WriteCSV(w io.Writer) error {
	var sb strings.Builder
	writeCSVLine(&sb, r.Header)
	for _, row := range r.Rows {
		writeCSVLine(&sb, row.fields())
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write csv report: %w", err)
	}
	return nil
}

// CSV returns the report as CSV bytes.
func (r Report) CSV() []byte {
	var buf bytes.Buffer
	_ = r.WriteCSV(&buf)
	return buf.Bytes()
}

func writeCSVLine(sb *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
		sb.WriteByte('"')
	}
	sb.WriteByte('\n')
}

// XLSX renders the report as a single-sheet workbook.
func (r Report) XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, fmt.Errorf("failed to name report sheet: %w", err)
	}

	write := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellStr(reportSheet, cell, v)
	}
	for i, h := range r.Header {
		if err := write(i+1, 1, h); err != nil {
			return nil, fmt.Errorf("failed to write report header: %w", err)
		}
	}
	for n, row := range r.Rows {
		for i, v := range row.fields() {
			if err := write(i+1, n+2, v); err != nil {
				return nil, fmt.Errorf("failed to write report row %d: %w", n+1, err)
			}
		}
	}

	_ = f.SetColWidth(reportSheet, "A", "A", 40) // original name
	_ = f.SetColWidth(reportSheet, "B", "B", 12)
	_ = f.SetColWidth(reportSheet, "C", "D", 18)
	_ = f.SetColWidth(reportSheet, "E", "E", 60) // reason

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx report: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportFileName is the download name of the report produced on day t.
// ext is "csv" or "xlsx".
func ReportFileName(t time.Time, ext string) string {
	return "relatorio_processamento_" + t.Format("2006-01-02") + "." + ext
}
