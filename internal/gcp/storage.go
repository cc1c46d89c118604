package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// BucketStore writes document revisions into a GCS bucket. Objects are
// written once and never overwritten; finding the object already there means
// a previous attempt of the same request made it through, so the write is
// reported as complete. That keeps retried requests idempotent.
type BucketStore struct {
	client *storage.Client
	bucket string
}

func NewBucketStore(client *storage.Client, bucket string) *BucketStore {
	return &BucketStore{client: client, bucket: bucket}
}

// ObjectURL returns the public URL of an object in the store's bucket.
func (b *BucketStore) ObjectURL(object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucket, object)
}

// Save writes data to object and returns the object's URL, retrying
// transient failures with exponential backoff.
func (b *BucketStore) Save(ctx context.Context, object string, data []byte, contentType string) (string, error) {
	const maxRetries = 4
	backoff := 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, time.Second*50)
			defer cancel()

			writer := b.client.Bucket(b.bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
			writer.ContentType = contentType

			if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
				_ = writer.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := writer.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()

		if err == nil {
			return b.ObjectURL(object), nil
		}
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, treating write as complete.", "gcsObject", object)
			return b.ObjectURL(object), nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", object,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", object, "error", ctx.Err())
			return "", ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", object, "error", lastErr)
	return "", fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}

// ReadObject pulls gs://bucket/object fully into memory.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string) ([]byte, error) {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}
