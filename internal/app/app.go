// -----------------------------------------------------------------------
// Application wiring - builds the storage layer, services, task handler
// registry, and HTTP handlers in dependency order. Backend selection is
// decided once here via the environment probe.
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/handlers"
	"github.com/ternarybob/wraith/internal/services/batch"
	"github.com/ternarybob/wraith/internal/services/crawler"
	jobsvc "github.com/ternarybob/wraith/internal/services/jobs"
	"github.com/ternarybob/wraith/internal/services/ocr"
	"github.com/ternarybob/wraith/internal/services/scheduler"
	tasksvc "github.com/ternarybob/wraith/internal/services/tasks"
	"github.com/ternarybob/wraith/internal/storage"
	taskhandlers "github.com/ternarybob/wraith/internal/tasks"
)

// App holds all application components and dependencies.
type App struct {
	Config      *common.Config
	Logger      arbor.ILogger
	Environment *common.Environment

	StorageManager *storage.Manager

	// Core services
	JobService  *jobsvc.Service
	TaskService *tasksvc.Service
	Crawler     *crawler.Service
	Coordinator *batch.Coordinator
	Registry    *taskhandlers.Registry

	// Local-mode delivery and scheduling
	Dispatcher *tasksvc.Dispatcher
	Scheduler  *scheduler.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	MarkdownHandler *handlers.MarkdownHandler
	JobHandler      *handlers.JobHandler
	UploadHandler   *handlers.UploadHandler
	TaskHandler     *handlers.TaskHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// New initializes the application with all dependencies.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:      cfg,
		Logger:      logger,
		Environment: common.NewEnvironment(cfg),
		ctx:         ctx,
		cancel:      cancel,
	}

	manager, err := storage.NewManager(ctx, cfg, app.Environment, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = manager

	app.JobService = jobsvc.NewService(manager.JobStore(), logger)
	app.TaskService = tasksvc.NewService(manager.TaskQueue(), cfg.Tasks.MaxRetries, logger)
	app.Crawler = crawler.NewService(cfg.Crawler, logger)

	emitter := batch.NewEmitter(cfg.Webhook.Secret, cfg.Webhook.Timeout, logger)
	app.Coordinator = batch.NewCoordinator(
		app.JobService,
		app.TaskService,
		manager.ArtifactStore(),
		app.Crawler,
		emitter,
		cfg.Batch.Workers,
		logger,
	)

	ocrEngine := ocr.NewRemoteEngine(cfg.OCR.Endpoint, logger)

	app.Registry = taskhandlers.NewRegistry(app.JobService, logger)
	app.Registry.Register(tasksvc.TypeProcessImage,
		taskhandlers.NewProcessImageHandler(manager.ArtifactStore(), ocrEngine, logger).Handle)
	app.Registry.Register(tasksvc.TypeBatchCrawl,
		taskhandlers.NewBatchCrawlHandler(app.Coordinator, logger).Handle)
	app.Registry.Register(tasksvc.TypeCleanup,
		taskhandlers.NewCleanupHandler(app.JobService, manager.ArtifactStore(), logger).Handle)

	app.APIHandler = handlers.NewAPIHandler(logger)
	app.MarkdownHandler = handlers.NewMarkdownHandler(app.Coordinator, app.Crawler, logger)
	app.JobHandler = handlers.NewJobHandler(app.JobService, logger)
	app.UploadHandler = handlers.NewUploadHandler(app.JobService, app.TaskService, manager.ArtifactStore(), logger)
	app.TaskHandler = handlers.NewTaskHandler(app.Registry, app.Environment, cfg.Tasks.AuthToken, logger)

	// local mode runs its own dispatch loop; the cloud queue delivers
	// tasks to the handler endpoints itself
	if !app.Environment.IsCloud() {
		app.Dispatcher = tasksvc.NewDispatcher(
			app.TaskService,
			cfg.ServiceURL(),
			cfg.Tasks.DispatchInterval,
			cfg.Tasks.ErrorInterval,
			cfg.Tasks.DequeueBatch,
			logger,
		)
		app.Dispatcher.Start(ctx)
	}

	app.Scheduler = scheduler.NewService(app.JobService, app.TaskService, cfg.Cleanup.Schedule, cfg.Cleanup.DaysToKeep, logger)
	if err := app.Scheduler.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to start cleanup scheduler")
	}

	logger.Info().
		Bool("cloud", app.Environment.IsCloud()).
		Msg("Application initialization complete")
	return app, nil
}

// Close shuts down background loops and storage connections.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Dispatcher != nil {
		a.Dispatcher.Stop()
	}
	a.cancel()
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage shutdown reported errors")
		}
	}
}
