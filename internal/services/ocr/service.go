// -----------------------------------------------------------------------
// OCR service - client for the external OCR engine. The engine is a
// collaborator; only its HTTP contract is owned here.
// -----------------------------------------------------------------------

package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
)

// RemoteEngine implements interfaces.OCREngine against an HTTP endpoint
// that accepts raw image bytes and returns {"text": "..."}.
type RemoteEngine struct {
	endpoint string
	client   *http.Client
	logger   arbor.ILogger
}

// NewRemoteEngine creates an OCR client. An empty endpoint yields an
// engine that rejects every request, which surfaces as a failed job for
// image-processing submissions.
func NewRemoteEngine(endpoint string, logger arbor.ILogger) interfaces.OCREngine {
	return &RemoteEngine{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

func (e *RemoteEngine) ExtractText(ctx context.Context, image []byte, contentType string) (string, error) {
	if e.endpoint == "" {
		return "", fmt.Errorf("ocr engine not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr engine returned status %d", resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode ocr response: %w", err)
	}

	e.logger.Debug().Int("chars", len(result.Text)).Msg("OCR extraction completed")
	return result.Text, nil
}
