package models

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
)

// ByteSource gives read-only access to a document's raw content.
// Implementations must be safe for concurrent use.
type ByteSource interface {
	Bytes(ctx context.Context) ([]byte, error)
}

// DocumentHandle is the identity and byte source of one input document.
// Handles are created by ingestion and never mutated afterwards.
type DocumentHandle struct {
	ID         string
	SourceName string
	// Path is an optional path-like alternate name, used when SourceName is empty.
	Path   string
	Source ByteSource
	Size   int64
}

// DisplayName is SourceName, or the last element of Path when SourceName is
// empty. Line breaks become spaces so the name stays on one report line.
func (h DocumentHandle) DisplayName() string {
	if name := strings.TrimSpace(h.SourceName); name != "" {
		return lineBreaks.Replace(name)
	}
	p := strings.TrimPrefix(strings.TrimSpace(h.Path), "./")
	if p == "" {
		return ""
	}
	return lineBreaks.Replace(path.Base(strings.ReplaceAll(p, "\\", "/")))
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// MemorySource serves content already held in memory.
type MemorySource []byte

// Bytes returns the content. Callers must not modify the returned slice.
func (m MemorySource) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// FailedSource is a document whose content could not be obtained at ingestion.
// Every read returns Err.
type FailedSource struct {
	Err error
}

func (f FailedSource) Bytes(context.Context) ([]byte, error) {
	return nil, f.Err
}

// FileSource reads a local file on every call.
type FileSource string

func (f FileSource) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", string(f), err)
	}
	return data, nil
}
