// Package salvbucket uploads a finished rendering artifact (a recovered
// archive fragment's raw bytes, a rendered PNG, or a JSON report) to any
// gocloud.dev-supported destination — local disk, S3, GCS, Azure — reusing
// one writer/reader abstraction regardless of backend.
package salvbucket

import (
	"context"
	"fmt"
	"io"
	"os"

	"gocloud.dev/blob"

	"github.com/protomaps/drawing-salvage/internal/progressx"
)

// UploadOptions controls the streaming writer's chunking behavior.
type UploadOptions struct {
	BufferSizeMB   int
	MaxConcurrency int
}

func (o UploadOptions) orDefaults() UploadOptions {
	if o.BufferSizeMB <= 0 {
		o.BufferSizeMB = 8
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 5
	}
	return o
}

// Upload streams the contents of localPath to key within the bucket
// addressed by bucketURL (any gocloud.dev/blob URL scheme), reporting
// progress via the package's progress facade.
func Upload(ctx context.Context, localPath, bucketURL, key string, opts UploadOptions) error {
	opts = opts.orDefaults()

	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("salvbucket: opening bucket %s: %w", bucketURL, err)
	}
	defer b.Close()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("salvbucket: opening %s: %w", localPath, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("salvbucket: stat %s: %w", localPath, err)
	}
	bar := progressx.NewBytesProgress(stat.Size(), "uploading "+key)
	defer bar.Close()

	w, err := b.NewWriter(ctx, key, &blob.WriterOptions{
		BufferSize:     opts.BufferSizeMB * 1000 * 1000,
		MaxConcurrency: opts.MaxConcurrency,
	})
	if err != nil {
		return fmt.Errorf("salvbucket: obtaining writer for %s: %w", key, err)
	}

	buffer := make([]byte, 16*1024*1024)
	for {
		n, readErr := f.Read(buffer)
		if n > 0 {
			if _, err := w.Write(buffer[:n]); err != nil {
				w.Close()
				return fmt.Errorf("salvbucket: writing to %s: %w", key, err)
			}
			bar.Add(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			w.Close()
			return fmt.Errorf("salvbucket: reading %s: %w", localPath, readErr)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("salvbucket: closing writer for %s: %w", key, err)
	}
	return nil
}
