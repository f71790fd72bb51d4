// -----------------------------------------------------------------------
// Redis-backed job store - string value at key job:<job_id> holding the
// JSON-encoded record. Listing scans the job:* namespace.
// -----------------------------------------------------------------------

package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

const jobKeyPrefix = "job:"

// JobStore implements interfaces.JobStore on a Redis connection.
type JobStore struct {
	client *goredis.Client
	logger arbor.ILogger
}

// NewJobStore creates a Redis job store.
func NewJobStore(client *goredis.Client, logger arbor.ILogger) interfaces.JobStore {
	return &JobStore{client: client, logger: logger}
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

func (s *JobStore) Create(ctx context.Context, jobType models.JobType, metadata map[string]interface{}) (*models.Job, error) {
	job := models.NewJob(jobType, metadata)

	data, err := job.ToJSON()
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, jobKey(job.JobID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.JobID).
		Str("job_type", string(jobType)).
		Msg("Job created")
	return job, nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	data, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err == goredis.Nil {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return models.JobFromJSON(data)
}

func (s *JobStore) Update(ctx context.Context, jobID string, patch map[string]interface{}) (*models.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !job.ApplyPatch(patch, time.Now().UTC()) {
		s.logger.Warn().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Update ignored - job is in a terminal status")
		return job, nil
	}

	data, err := job.ToJSON()
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, jobKey(jobID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *JobStore) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	keys, err := s.client.Keys(ctx, jobKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan job keys: %w", err)
	}

	var jobs []*models.Job
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue // deleted between scan and read
		}
		job, err := models.JobFromJSON(data)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Skipping undecodable job record")
			continue
		}
		if opts != nil && opts.Status != "" && job.Status != opts.Status {
			continue
		}
		jobs = append(jobs, job)
	}

	SortJobs(jobs)

	if opts != nil && opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// SortJobs orders by created_at descending, tie-broken by job_id so equal
// timestamps yield a stable order across backends.
func SortJobs(jobs []*models.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].JobID < jobs[j].JobID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
