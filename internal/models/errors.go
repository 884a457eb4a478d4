package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies per-document and archive-stage failures.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "InvalidInput"
	KindNotFound          ErrorKind = "NotFound"
	KindCorruptDocument   ErrorKind = "CorruptDocument"
	KindPasswordProtected ErrorKind = "PasswordProtected"
	KindIOFailure         ErrorKind = "IOFailure"

	// Archive-stage kinds. They are reported by the archive builder and never stored on a record.
	KindSkipped              ErrorKind = "Skipped"
	KindDuplicateDestination ErrorKind = "DuplicateDestination"
)

var reasonLabels = map[ErrorKind]string{
	KindInvalidInput:         "Arquivo inválido ou corrompido",
	KindNotFound:             "Número de série não encontrado no padrão 1X000000X",
	KindCorruptDocument:      "Arquivo PDF corrompido ou ilegível",
	KindPasswordProtected:    "PDF protegido por senha",
	KindIOFailure:            "Falha ao ler o arquivo",
	KindSkipped:              "Arquivo não incluído no pacote",
	KindDuplicateDestination: "Nome de destino duplicado",
}

// Label returns the localized, user-facing description of k.
func (k ErrorKind) Label() string {
	if l, ok := reasonLabels[k]; ok {
		return l
	}
	return string(k)
}

// Reason renders the failure for the audit report.
func (f Failure) Reason() string {
	if f.IsZero() {
		return ""
	}
	if f.Detail == "" {
		return f.Kind.Label()
	}
	return f.Kind.Label() + ": " + f.Detail
}

// DocumentError is a document-level failure raised by a collaborator
// (text extraction, byte access) together with its classification.
type DocumentError struct {
	Kind ErrorKind
	Err  error
}

func (e *DocumentError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// NewDocumentError wraps err with kind.
func NewDocumentError(kind ErrorKind, err error) *DocumentError {
	return &DocumentError{Kind: kind, Err: err}
}

// KindOf classifies err. Unclassified errors, deadlines and cancellations count as I/O failures.
func KindOf(err error) ErrorKind {
	var de *DocumentError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindIOFailure
}

// FailureFrom converts err into a record failure.
func FailureFrom(err error) Failure {
	f := Failure{Kind: KindOf(err)}
	var de *DocumentError
	if errors.As(err, &de) {
		if de.Err != nil {
			f.Detail = de.Err.Error()
		}
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		f.Detail = "timeout: " + err.Error()
		return f
	}
	f.Detail = err.Error()
	return f
}
