// -----------------------------------------------------------------------
// Local artifact store - blobs live in a directory tree under the
// configured root, metadata (mime type, size) in a badgerhold index
// alongside it. Logical paths are <namespace>/<filename> and stable.
// -----------------------------------------------------------------------

package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// ArtifactMeta is the indexed metadata for one stored artifact.
type ArtifactMeta struct {
	LogicalPath string `badgerhold:"key"`
	ContentType string
	Size        int64
	SavedAt     time.Time
}

// ArtifactStore implements interfaces.ArtifactStore on the local filesystem.
type ArtifactStore struct {
	root   string
	index  *badgerhold.Store
	logger arbor.ILogger
}

// NewArtifactStore opens the artifact directory and its metadata index.
func NewArtifactStore(root string, logger arbor.ILogger) (*ArtifactStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}

	indexDir := filepath.Join(root, ".index")
	options := badgerhold.DefaultOptions
	options.Dir = indexDir
	options.ValueDir = indexDir
	options.Logger = nil

	index, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact index: %w", err)
	}

	logger.Debug().Str("root", root).Msg("Artifact store initialized")
	return &ArtifactStore{root: root, index: index, logger: logger}, nil
}

// Close releases the metadata index.
func (s *ArtifactStore) Close() error {
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}

func (s *ArtifactStore) Save(ctx context.Context, data []byte, contentType, namespace, filename string) (string, error) {
	logicalPath, err := joinLogical(namespace, filename)
	if err != nil {
		return "", err
	}

	fullPath, err := s.resolve(logicalPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	// write-then-rename keeps each write atomic for readers: a reader sees
	// the old bytes or the new ones, never a partial file. Concurrent writes
	// to the same path share one temp file and are not synchronized.
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", logicalPath, err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize artifact %s: %w", logicalPath, err)
	}

	meta := &ArtifactMeta{
		LogicalPath: logicalPath,
		ContentType: contentType,
		Size:        int64(len(data)),
		SavedAt:     time.Now().UTC(),
	}
	if err := s.index.Upsert(logicalPath, meta); err != nil {
		s.logger.Warn().Err(err).Str("path", logicalPath).Msg("Failed to index artifact metadata")
	}

	s.logger.Debug().
		Str("path", logicalPath).
		Int("size", len(data)).
		Str("content_type", contentType).
		Msg("Artifact saved")
	return logicalPath, nil
}

func (s *ArtifactStore) Get(ctx context.Context, logicalPath string) ([]byte, error) {
	fullPath, err := s.resolve(logicalPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", logicalPath, err)
	}
	return data, nil
}

func (s *ArtifactStore) Delete(ctx context.Context, logicalPath string) (bool, error) {
	fullPath, err := s.resolve(logicalPath)
	if err != nil {
		return false, err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete artifact %s: %w", logicalPath, err)
	}
	if err := s.index.Delete(logicalPath, &ArtifactMeta{}); err != nil && err != badgerhold.ErrNotFound {
		s.logger.Warn().Err(err).Str("path", logicalPath).Msg("Failed to remove artifact metadata")
	}
	return true, nil
}

func (s *ArtifactStore) Exists(ctx context.Context, logicalPath string) (bool, error) {
	fullPath, err := s.resolve(logicalPath)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat artifact %s: %w", logicalPath, err)
	}
	return true, nil
}

// Meta returns the indexed metadata for an artifact.
func (s *ArtifactStore) Meta(logicalPath string) (*ArtifactMeta, error) {
	var meta ArtifactMeta
	if err := s.index.Get(logicalPath, &meta); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact metadata: %w", err)
	}
	return &meta, nil
}

// resolve maps a logical path onto the root, rejecting traversal.
func (s *ArtifactStore) resolve(logicalPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(logicalPath))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid artifact path: %s", logicalPath)
	}
	return filepath.Join(s.root, clean), nil
}

func joinLogical(namespace, filename string) (string, error) {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" || filename == "" || strings.Contains(filename, "/") {
		return "", fmt.Errorf("invalid artifact location %q/%q", namespace, filename)
	}
	return namespace + "/" + filename, nil
}
