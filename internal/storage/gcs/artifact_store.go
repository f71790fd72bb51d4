// -----------------------------------------------------------------------
// Object-storage artifact store - one object per artifact, named by its
// logical path inside the configured bucket.
// -----------------------------------------------------------------------

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
)

// ArtifactStore implements interfaces.ArtifactStore on a GCS bucket.
type ArtifactStore struct {
	client *storage.Client
	bucket string
	logger arbor.ILogger
}

// NewArtifactStore creates a GCS artifact store.
func NewArtifactStore(ctx context.Context, bucket string, logger arbor.ILogger) (*ArtifactStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	logger.Debug().Str("bucket", bucket).Msg("Object storage artifact store initialized")
	return &ArtifactStore{client: client, bucket: bucket, logger: logger}, nil
}

// Close releases the underlying client.
func (s *ArtifactStore) Close() error {
	return s.client.Close()
}

func (s *ArtifactStore) object(logicalPath string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(logicalPath)
}

func (s *ArtifactStore) Save(ctx context.Context, data []byte, contentType, namespace, filename string) (string, error) {
	logicalPath := namespace + "/" + filename

	w := s.object(logicalPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write artifact %s: %w", logicalPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize artifact %s: %w", logicalPath, err)
	}

	s.logger.Debug().
		Str("path", logicalPath).
		Int("size", len(data)).
		Msg("Artifact saved")
	return logicalPath, nil
}

func (s *ArtifactStore) Get(ctx context.Context, logicalPath string) ([]byte, error) {
	r, err := s.object(logicalPath).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %s: %w", logicalPath, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", logicalPath, err)
	}
	return data, nil
}

func (s *ArtifactStore) Delete(ctx context.Context, logicalPath string) (bool, error) {
	err := s.object(logicalPath).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete artifact %s: %w", logicalPath, err)
	}
	return true, nil
}

func (s *ArtifactStore) Exists(ctx context.Context, logicalPath string) (bool, error) {
	_, err := s.object(logicalPath).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat artifact %s: %w", logicalPath, err)
	}
	return true, nil
}
