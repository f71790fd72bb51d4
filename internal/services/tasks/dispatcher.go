// -----------------------------------------------------------------------
// Local task dispatcher - mirrors the cloud queue's delivery model by
// POSTing ready tasks to the loopback handler endpoints. Runs only in
// local mode; at most one dispatcher per process.
// -----------------------------------------------------------------------

package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/models"
)

// dispatcherRunning is the process-wide "already running" guard. Only the
// first Start succeeds; later callers become no-ops.
var dispatcherRunning atomic.Bool

// Dispatcher polls the local queue and delivers ready tasks over loopback
// HTTP. It does not execute handler logic itself.
type Dispatcher struct {
	tasks   *Service
	baseURL string
	client  *http.Client
	logger  arbor.ILogger

	idleInterval  time.Duration
	errorInterval time.Duration
	dequeueBatch  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a local dispatcher delivering to baseURL.
func NewDispatcher(tasks *Service, baseURL string, idleInterval, errorInterval time.Duration, dequeueBatch int, logger arbor.ILogger) *Dispatcher {
	if idleInterval <= 0 {
		idleInterval = 1 * time.Second
	}
	if errorInterval <= 0 {
		errorInterval = 5 * time.Second
	}
	if dequeueBatch <= 0 {
		dequeueBatch = 5
	}
	return &Dispatcher{
		tasks:         tasks,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: 5 * time.Minute},
		logger:        logger,
		idleInterval:  idleInterval,
		errorInterval: errorInterval,
		dequeueBatch:  dequeueBatch,
	}
}

// Start launches the dispatch loop. Returns false if a dispatcher is
// already running in this process.
func (d *Dispatcher) Start(ctx context.Context) bool {
	if !dispatcherRunning.CompareAndSwap(false, true) {
		d.logger.Debug().Msg("Dispatcher already running - start ignored")
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go d.run(loopCtx)

	d.logger.Info().
		Str("base_url", d.baseURL).
		Dur("idle_interval", d.idleInterval).
		Msg("Task dispatcher started")
	return true
}

// Stop cancels the loop and waits for it to exit.
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
	dispatcherRunning.Store(false)
	d.logger.Info().Msg("Task dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		interval := d.idleInterval
		if err := d.iterate(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error().Err(err).Msg("Dispatcher iteration failed")
			interval = d.errorInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// iterate performs one dispatch pass: enumerate task types, dequeue ready
// tasks for each, deliver sequentially.
func (d *Dispatcher) iterate(ctx context.Context) error {
	types, err := d.tasks.TaskTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate task types: %w", err)
	}

	for _, taskType := range types {
		ready, err := d.tasks.DequeueReady(ctx, taskType, d.dequeueBatch)
		if err != nil {
			return fmt.Errorf("failed to dequeue %s tasks: %w", taskType, err)
		}
		for _, task := range ready {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.dispatch(ctx, task)
		}
	}
	return nil
}

// dispatch delivers one task. 2xx removes it from the ready set; anything
// else runs the retry policy. Job state is untouched here.
func (d *Dispatcher) dispatch(ctx context.Context, task *models.Task) {
	url := fmt.Sprintf("%s/tasks/%s/%s", d.baseURL, task.TaskType, task.JobID)

	status, err := d.deliver(ctx, url, task.Payload)
	if err == nil && status >= 200 && status < 300 {
		if err := d.tasks.Remove(ctx, task.TaskType, task.TaskID); err != nil {
			d.logger.Warn().Err(err).Str("task_id", task.TaskID).Msg("Failed to remove delivered task")
		}
		return
	}

	cause := fmt.Sprintf("handler returned status %d", status)
	if err != nil {
		cause = err.Error()
	}
	if _, rerr := d.tasks.Retry(ctx, task, cause); rerr != nil {
		d.logger.Error().Err(rerr).Str("task_id", task.TaskID).Msg("Failed to apply retry policy")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, url string, payload map[string]interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("delivery failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
