package models

// WebhookPayload is the JSON body POSTed to a caller-supplied webhook when
// a batch finishes. Sent best-effort: a webhook failure never fails the job.
type WebhookPayload struct {
	JobID   string      `json:"job_id"`
	Status  string      `json:"status"`
	Stats   BatchStats  `json:"stats"`
	Results []URLResult `json:"results"`
}
