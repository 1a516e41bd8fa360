package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// Sink receives step logs. Objects are named by StepObject.
type Sink interface {
	Upload(ctx context.Context, object string, r io.Reader) error
}

// StepObject names the log object for a step within a run.
func StepObject(runID, stepID string) string {
	return fmt.Sprintf("%s/%s.log", runID, stepID)
}

// BucketSink uploads logs to a Cloud Storage bucket.
type BucketSink struct {
	client *storage.Client
	bucket string
}

// NewBucketSink creates a sink writing to gs://<bucket>.
func NewBucketSink(ctx context.Context, bucket, credentialsFile string) (*BucketSink, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage client")
	}
	return &BucketSink{client: client, bucket: bucket}, nil
}

// Upload writes the reader's contents to the named object.
func (s *BucketSink) Upload(ctx context.Context, object string, r io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/plain"
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to upload %s", object)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "failed to finalize %s", object)
	}
	return nil
}

// Close releases the underlying client.
func (s *BucketSink) Close() error {
	return s.client.Close()
}

// DirSink writes logs to a local directory. Used for dry runs and tests.
type DirSink struct {
	dir string
}

// NewDirSink creates a sink rooted at dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) Upload(ctx context.Context, object string, r io.Reader) error {
	path := filepath.Join(s.dir, filepath.FromSlash(object))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create log directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create log file")
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return errors.Wrapf(err, "failed to write %s", object)
	}
	return nil
}
