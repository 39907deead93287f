// Package blobstore implements the ObjectStore boundary over a gocloud blob
// bucket. Artifacts are addressed as jobs/{jobID}/{name}; the same job always
// writes to the same keys, so a re-executed pipeline overwrites rather than
// duplicates.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Options configures a Store.
type Options struct {
	Bucket *blob.Bucket
	Logger *slog.Logger

	// FallbackToLocator makes SignedURL return the bare locator when the
	// bucket driver cannot sign URLs (memblob, unsigned fileblob). Intended
	// for development and tests only.
	FallbackToLocator bool
}

// Store persists job artifacts in a blob bucket.
type Store struct {
	bucket   *blob.Bucket
	logger   *slog.Logger
	fallback bool
}

// New constructs a Store.
func New(opts Options) (*Store, error) {
	if opts.Bucket == nil {
		return nil, errors.New("blob bucket is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		bucket:   opts.Bucket,
		logger:   logger.With("component", "blobstore"),
		fallback: opts.FallbackToLocator,
	}, nil
}

// Key returns the deterministic bucket key for a job artifact.
func Key(jobID uuid.UUID, name string) string {
	return fmt.Sprintf("jobs/%s/%s", jobID, name)
}

// Write stores one artifact and returns its locator (the bucket key).
func (s *Store) Write(ctx context.Context, jobID uuid.UUID, name, contentType string, data []byte) (string, error) {
	key := Key(jobID, name)
	err := s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("write blob %s: %w", key, err)
	}
	s.logger.DebugContext(ctx, "artifact written", "key", key, "bytes", len(data))
	return key, nil
}

// SignedURL returns a time-bounded read-only link for a locator.
func (s *Store) SignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	u, err := s.bucket.SignedURL(ctx, locator, &blob.SignedURLOptions{Expiry: ttl})
	if err != nil {
		if s.fallback && gcerrors.Code(err) == gcerrors.Unimplemented {
			return locator, nil
		}
		return "", fmt.Errorf("sign url for %s: %w", locator, err)
	}
	return u, nil
}
