// -----------------------------------------------------------------------
// In-memory fallback stores - selected only when the local Redis endpoint
// is unreachable at startup. State does not survive a restart.
// -----------------------------------------------------------------------

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
)

// JobStore implements interfaces.JobStore on a mutex-guarded map.
type JobStore struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	logger arbor.ILogger
}

// NewJobStore creates an in-memory job store.
func NewJobStore(logger arbor.ILogger) interfaces.JobStore {
	return &JobStore{
		jobs:   make(map[string]*models.Job),
		logger: logger,
	}
}

func (s *JobStore) Create(ctx context.Context, jobType models.JobType, metadata map[string]interface{}) (*models.Job, error) {
	job := models.NewJob(jobType, metadata)

	s.mu.Lock()
	s.jobs[job.JobID] = job
	s.mu.Unlock()

	s.logger.Debug().
		Str("job_id", job.JobID).
		Str("job_type", string(jobType)).
		Msg("Job created (in-memory)")
	return job.Clone(), nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return job.Clone(), nil
}

func (s *JobStore) Update(ctx context.Context, jobID string, patch map[string]interface{}) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	if !job.ApplyPatch(patch, time.Now().UTC()) {
		s.logger.Warn().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Update ignored - job is in a terminal status")
	}
	return job.Clone(), nil
}

func (s *JobStore) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	s.mu.RLock()
	var jobs []*models.Job
	for _, job := range s.jobs {
		if opts != nil && opts.Status != "" && job.Status != opts.Status {
			continue
		}
		jobs = append(jobs, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].JobID < jobs[j].JobID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if opts != nil && opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}
