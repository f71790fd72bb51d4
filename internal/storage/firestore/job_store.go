// -----------------------------------------------------------------------
// Firestore-backed job store - one document per job in the "jobs"
// collection, keyed by job_id.
// -----------------------------------------------------------------------

package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const jobsCollection = "jobs"

// JobStore implements interfaces.JobStore on Firestore.
type JobStore struct {
	client *firestore.Client
	logger arbor.ILogger
}

// NewJobStore creates a Firestore job store for the given project.
func NewJobStore(ctx context.Context, project string, logger arbor.ILogger) (*JobStore, error) {
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	logger.Debug().Str("project", project).Msg("Firestore job store initialized")
	return &JobStore{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (s *JobStore) Close() error {
	return s.client.Close()
}

func (s *JobStore) doc(jobID string) *firestore.DocumentRef {
	return s.client.Collection(jobsCollection).Doc(jobID)
}

func (s *JobStore) Create(ctx context.Context, jobType models.JobType, metadata map[string]interface{}) (*models.Job, error) {
	job := models.NewJob(jobType, metadata)

	// Create (not Set) keeps creation atomic: the full record exists or none does
	if _, err := s.doc(job.JobID).Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.JobID).
		Str("job_type", string(jobType)).
		Msg("Job created")
	return job, nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	snap, err := s.doc(jobID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}

	var job models.Job
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	return &job, nil
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

	if _, err := s.doc(jobID).Set(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *JobStore) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := s.client.Collection(jobsCollection).
		OrderBy("created_at", firestore.Desc).
		OrderBy("job_id", firestore.Asc)

	if opts != nil {
		if opts.Status != "" {
			query = query.Where("status", "==", string(opts.Status))
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var jobs []*models.Job
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs: %w", err)
		}
		var job models.Job
		if err := snap.DataTo(&job); err != nil {
			s.logger.Warn().Err(err).Str("doc", snap.Ref.ID).Msg("Skipping undecodable job document")
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}
