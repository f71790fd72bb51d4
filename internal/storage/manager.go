// -----------------------------------------------------------------------
// Storage Manager - selects backend variants once at startup.
// Cloud mode: Firestore jobs, Cloud Tasks queue, GCS artifacts.
// Local mode: Redis jobs + queue when reachable, in-memory fallback
// otherwise; filesystem artifacts either way.
// -----------------------------------------------------------------------

package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/storage/cloudtasks"
	"github.com/ternarybob/wraith/internal/storage/file"
	"github.com/ternarybob/wraith/internal/storage/firestore"
	"github.com/ternarybob/wraith/internal/storage/gcs"
	"github.com/ternarybob/wraith/internal/storage/memory"
	"github.com/ternarybob/wraith/internal/storage/redis"
)

// Manager owns the selected backend instances. Selection happens exactly
// once, in NewManager; components receive the manager as a dependency and
// never re-probe the environment.
type Manager struct {
	jobs      interfaces.JobStore
	tasks     interfaces.TaskQueue
	artifacts interfaces.ArtifactStore

	closers []io.Closer
	logger  arbor.ILogger
}

// NewManager builds the storage layer for the detected environment.
func NewManager(ctx context.Context, config *common.Config, env *common.Environment, logger arbor.ILogger) (*Manager, error) {
	m := &Manager{logger: logger}

	if env.IsCloud() {
		if err := m.initCloud(ctx, config); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err := m.initLocal(ctx, config); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initCloud(ctx context.Context, config *common.Config) error {
	jobs, err := firestore.NewJobStore(ctx, config.Cloud.Project, m.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cloud job store: %w", err)
	}
	m.jobs = jobs
	m.closers = append(m.closers, jobs)

	tasks, err := cloudtasks.NewTaskQueue(ctx, cloudtasks.Config{
		Project:        config.Cloud.Project,
		Location:       config.Cloud.Location,
		QueueName:      config.Cloud.QueueName,
		ServiceURL:     config.ServiceURL(),
		ServiceAccount: config.Cloud.ServiceAccount,
	}, m.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cloud task queue: %w", err)
	}
	m.tasks = tasks
	m.closers = append(m.closers, tasks)

	artifacts, err := gcs.NewArtifactStore(ctx, config.Cloud.Bucket, m.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cloud artifact store: %w", err)
	}
	m.artifacts = artifacts
	m.closers = append(m.closers, artifacts)

	m.logger.Info().
		Str("job_store", "firestore").
		Str("task_queue", "cloudtasks").
		Str("artifact_store", "gcs").
		Msg("Storage layer initialized (cloud)")
	return nil
}

func (m *Manager) initLocal(ctx context.Context, config *common.Config) error {
	client := goredis.NewClient(&goredis.Options{Addr: config.Redis.Addr()})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := client.Ping(pingCtx).Err()
	cancel()

	backend := "redis"
	if err != nil {
		// fall through to the in-memory variant; selection stays fixed for
		// the process lifetime even if Redis comes back later
		client.Close()
		m.logger.Warn().
			Err(err).
			Str("addr", config.Redis.Addr()).
			Msg("Redis unreachable - falling back to in-memory stores")
		m.jobs = memory.NewJobStore(m.logger)
		m.tasks = memory.NewTaskQueue(m.logger)
		backend = "memory"
	} else {
		m.jobs = redis.NewJobStore(client, m.logger)
		m.tasks = redis.NewTaskQueue(client, m.logger)
		m.closers = append(m.closers, client)
	}

	artifacts, err := file.NewArtifactStore(config.Artifacts.Root, m.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	m.artifacts = artifacts
	m.closers = append(m.closers, artifacts)

	m.logger.Info().
		Str("job_store", backend).
		Str("task_queue", backend).
		Str("artifact_store", "file").
		Msg("Storage layer initialized (local)")
	return nil
}

// JobStore returns the selected job store.
func (m *Manager) JobStore() interfaces.JobStore { return m.jobs }

// TaskQueue returns the selected task queue.
func (m *Manager) TaskQueue() interfaces.TaskQueue { return m.tasks }

// ArtifactStore returns the selected artifact store.
func (m *Manager) ArtifactStore() interfaces.ArtifactStore { return m.artifacts }

// Close releases backend connections in reverse creation order.
func (m *Manager) Close() error {
	var firstErr error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
