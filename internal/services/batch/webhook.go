// -----------------------------------------------------------------------
// Webhook emitter - best-effort JSON POST to the caller-supplied URL on
// batch completion. A webhook failure is logged and discarded; it never
// fails the job.
// -----------------------------------------------------------------------

package batch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/models"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a signing
// secret is configured.
const SignatureHeader = "X-Wraith-Signature"

// Emitter delivers webhook notifications.
type Emitter struct {
	client *http.Client
	secret string
	logger arbor.ILogger
}

// NewEmitter creates a webhook emitter. An empty secret disables
// signatures.
func NewEmitter(secret string, timeout time.Duration, logger arbor.ILogger) *Emitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Emitter{
		client: &http.Client{Timeout: timeout},
		secret: secret,
		logger: logger,
	}
}

// Send POSTs the payload to the configured URL. Caller-supplied headers
// are merged in, with the standard Content-Type taking precedence over
// user overrides. All failures are logged and swallowed.
func (e *Emitter) Send(ctx context.Context, config *models.WebhookConfig, payload *models.WebhookPayload) {
	if config == nil || config.URL == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", payload.JobID).Msg("Failed to marshal webhook payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(body))
	if err != nil {
		e.logger.Warn().Err(err).Str("url", config.URL).Msg("Failed to build webhook request")
		return
	}

	for k, v := range config.Headers {
		if strings.EqualFold(k, "Content-Type") {
			continue // standard header wins
		}
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.secret != "" {
		req.Header.Set(SignatureHeader, e.sign(body))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("job_id", payload.JobID).
			Str("url", config.URL).
			Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		e.logger.Warn().
			Str("job_id", payload.JobID).
			Str("url", config.URL).
			Int("status", resp.StatusCode).
			Msg("Webhook rejected")
		return
	}

	e.logger.Info().
		Str("job_id", payload.JobID).
		Str("url", config.URL).
		Msg("Webhook delivered")
}

func (e *Emitter) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(e.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
