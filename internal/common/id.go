package common

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// NewUploadFilename generates a random filename for a single-image upload,
// preserving the original extension. Batch artifacts use deterministic
// (job_id, index) paths instead; random names are only for uploads, where
// no input index exists.
func NewUploadFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s%s", uuid.New().String(), ext)
}
