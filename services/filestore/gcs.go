package filestore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
)

const uploadTimeout = 2 * time.Minute

// GCSStore saves files to a Google Cloud Storage bucket.
// Credentials are resolved the default way (GOOGLE_APPLICATION_CREDENTIALS, metadata server).
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

var _ core.FileStore = (*GCSStore)(nil)

func NewGCSStore(bucket, baseURL string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "creating gcs client")
	}
	if baseURL == "" || strings.HasPrefix(baseURL, "http://localhost") {
		baseURL = fmt.Sprintf("https://storage.googleapis.com/%s", bucket)
	}
	return &GCSStore{client: client, bucket: bucket, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *GCSStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	contentType, full, err := sniff(name, r)
	if err != nil {
		return "", err
	}

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err = io.Copy(w, full); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "writing object")
	}
	if err = w.Close(); err != nil {
		return "", errors.Wrap(err, "closing object writer")
	}
	return s.baseURL + "/" + name, nil
}

func (s *GCSStore) Delete(ctx context.Context, name string) error {
	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

func (s *GCSStore) Close() error { return s.client.Close() }
