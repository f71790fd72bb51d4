// -----------------------------------------------------------------------
// Job Model - persisted unit of work visible to clients by id
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType classifies a job for handler routing.
type JobType string

const (
	JobTypeImageProcessing JobType = "image-processing"
	JobTypeBatchCrawl      JobType = "batch-crawl"
	JobTypeSingleCrawl     JobType = "single-crawl"
	JobTypeCleanup         JobType = "cleanup"
)

// JobStatus is the job state machine. Terminal states are never exited.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusDeleted    JobStatus = "deleted"
	JobStatusCleanedUp  JobStatus = "cleaned_up"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusDeleted, JobStatusCleanedUp:
		return true
	}
	return false
}

// Job is the persisted record tracked by the job store. Created in pending,
// mutated only through JobStore.Update, never destroyed (cleanup marks
// cleaned_up but retains the audit record).
type Job struct {
	JobID   string    `json:"job_id" firestore:"job_id"`
	JobType JobType   `json:"job_type" firestore:"job_type"`
	Status  JobStatus `json:"status" firestore:"status"`

	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`

	// Metadata is the opaque input map supplied at creation (file paths,
	// titles, URL lists, webhook config). Results is populated on completion.
	Metadata map[string]interface{} `json:"metadata,omitempty" firestore:"metadata,omitempty"`
	Results  map[string]interface{} `json:"results,omitempty" firestore:"results,omitempty"`

	Error string `json:"error,omitempty" firestore:"error,omitempty"`

	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty" firestore:"processing_started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty" firestore:"completed_at,omitempty"`
	FailedAt            *time.Time `json:"failed_at,omitempty" firestore:"failed_at,omitempty"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty" firestore:"deleted_at,omitempty"`
	CleanedUpAt         *time.Time `json:"cleaned_up_at,omitempty" firestore:"cleaned_up_at,omitempty"`
}

// NewJob creates a pending job with a fresh id.
func NewJob(jobType JobType, metadata map[string]interface{}) *Job {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	now := time.Now().UTC()
	return &Job{
		JobID:     "job_" + uuid.New().String(),
		JobType:   jobType,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
		Results:   make(map[string]interface{}),
	}
}

// ApplyPatch merges a partial update into the record, field level
// last-writer-wins. Recognized keys: status, error, results, metadata.
// Timestamp fields (processing_started_at, completed_at, ...) follow the
// status they belong to. Returns false when the patch would move the job
// out of a terminal status; such patches are ignored entirely.
func (j *Job) ApplyPatch(patch map[string]interface{}, now time.Time) bool {
	if newStatus, ok := patchStatus(patch); ok {
		if j.Status.Terminal() && newStatus != j.Status {
			return false
		}
		j.Status = newStatus
		ts := now
		switch newStatus {
		case JobStatusProcessing:
			if j.ProcessingStartedAt == nil {
				j.ProcessingStartedAt = &ts
			}
		case JobStatusCompleted:
			j.CompletedAt = &ts
		case JobStatusFailed:
			j.FailedAt = &ts
		case JobStatusDeleted:
			j.DeletedAt = &ts
		case JobStatusCleanedUp:
			j.CleanedUpAt = &ts
		}
	}

	if errMsg, ok := patch["error"].(string); ok {
		j.Error = errMsg
	}
	if results, ok := patch["results"].(map[string]interface{}); ok {
		if j.Results == nil {
			j.Results = make(map[string]interface{})
		}
		for k, v := range results {
			j.Results[k] = v
		}
	}
	if metadata, ok := patch["metadata"].(map[string]interface{}); ok {
		if j.Metadata == nil {
			j.Metadata = make(map[string]interface{})
		}
		for k, v := range metadata {
			j.Metadata[k] = v
		}
	}

	// updated_at is monotonically non-decreasing
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
	return true
}

func patchStatus(patch map[string]interface{}) (JobStatus, bool) {
	switch v := patch["status"].(type) {
	case JobStatus:
		return v, true
	case string:
		return JobStatus(v), true
	}
	return "", false
}

// Clone returns a deep copy so callers can hand records across goroutines.
func (j *Job) Clone() *Job {
	clone := *j
	clone.Metadata = copyMap(j.Metadata)
	clone.Results = copyMap(j.Results)
	return &clone
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ToJSON serializes the job for key/value storage.
func (j *Job) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

// JobFromJSON deserializes a job from key/value storage.
func JobFromJSON(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// MetadataString retrieves a string value from metadata.
func (j *Job) MetadataString(key string) (string, bool) {
	val, ok := j.Metadata[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// MetadataStringSlice retrieves a string slice from metadata, tolerating
// the []interface{} shape JSON round-trips produce.
func (j *Job) MetadataStringSlice(key string) ([]string, bool) {
	val, ok := j.Metadata[key]
	if !ok {
		return nil, false
	}
	switch v := val.(type) {
	case []string:
		return v, true
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			result[i] = str
		}
		return result, true
	}
	return nil, false
}

// MetadataBool retrieves a bool value from metadata.
func (j *Job) MetadataBool(key string) (bool, bool) {
	val, ok := j.Metadata[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}
