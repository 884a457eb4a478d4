package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ObjectURI formats a gs:// URI.
func ObjectURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// IsPreconditionFailed reports whether err is a GCS 412, which an
// If(DoesNotExist) write returns when the object is already there.
func IsPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object is not an error, so re-delivered events stay idempotent.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName string, content []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if IsPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if IsPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// UploadWithRetry writes content with exponential backoff between attempts.
func UploadWithRetry(ctx context.Context, bucket *storage.BucketHandle, objectName string, content []byte) error {
	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, time.Second*50)
			defer cancel()
			return SaveToGCSAtomically(writeCtx, bucket, objectName, content)
		}()
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", objectName, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", objectName, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}

// ReadObject downloads a whole object.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string) ([]byte, error) {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", ObjectURI(bucket, object), err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ObjectURI(bucket, object), err)
	}
	return data, nil
}

// ObjectSource reads a GCS object on demand. It satisfies models.ByteSource.
type ObjectSource struct {
	Client *storage.Client
	Bucket string
	Object string
}

func (o ObjectSource) Bytes(ctx context.Context) ([]byte, error) {
	return ReadObject(ctx, o.Client, o.Bucket, o.Object)
}

// ObjectInfo is the subset of object attributes ingestion needs.
type ObjectInfo struct {
	Name string
	Size int64
}

// ListObjects returns the objects under prefix, in listing order.
func ListObjects(ctx context.Context, client *storage.Client, bucket, prefix string) ([]ObjectInfo, error) {
	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var objects []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", ObjectURI(bucket, prefix), err)
		}
		if attrs.Name == "" || attrs.Name[len(attrs.Name)-1] == '/' {
			continue
		}
		objects = append(objects, ObjectInfo{Name: attrs.Name, Size: attrs.Size})
	}
	return objects, nil
}

// BucketPublisher stores run artifacts under <prefix>/<name> in a bucket.
type BucketPublisher struct {
	Client *storage.Client
	Bucket string
	Prefix string
}

// Publish uploads data and returns its gs:// URI.
func (p BucketPublisher) Publish(ctx context.Context, name string, data []byte) (string, error) {
	object := path.Join(p.Prefix, name)
	if err := UploadWithRetry(ctx, p.Client.Bucket(p.Bucket), object, data); err != nil {
		return "", err
	}
	return ObjectURI(p.Bucket, object), nil
}
