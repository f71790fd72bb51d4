// -----------------------------------------------------------------------
// Cloud Tasks-backed queue - the managed queue issues authenticated HTTP
// POSTs to <service_url>/tasks/<task_type>/<job_id> and enforces
// scheduling and retry itself, so the local dispatcher operations return
// ErrLocalOnly here.
// -----------------------------------------------------------------------

package cloudtasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Config addresses the managed queue and the handler target.
type Config struct {
	Project        string
	Location       string
	QueueName      string
	ServiceURL     string // base URL for handler delivery
	ServiceAccount string // OIDC identity attached to deliveries
}

// TaskQueue implements interfaces.TaskQueue on Google Cloud Tasks.
type TaskQueue struct {
	client *cloudtasks.Client
	config Config
	logger arbor.ILogger
}

// NewTaskQueue creates a Cloud Tasks queue client.
func NewTaskQueue(ctx context.Context, config Config, logger arbor.ILogger) (*TaskQueue, error) {
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud tasks client: %w", err)
	}
	logger.Debug().
		Str("project", config.Project).
		Str("queue", config.QueueName).
		Msg("Cloud Tasks queue initialized")
	return &TaskQueue{client: client, config: config, logger: logger}, nil
}

// Close releases the underlying client.
func (q *TaskQueue) Close() error {
	return q.client.Close()
}

func (q *TaskQueue) queuePath() string {
	return fmt.Sprintf("projects/%s/locations/%s/queues/%s",
		q.config.Project, q.config.Location, q.config.QueueName)
}

func (q *TaskQueue) Enqueue(ctx context.Context, taskType string, payload map[string]interface{}, jobID string, delay time.Duration) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	url := fmt.Sprintf("%s/tasks/%s/%s", q.config.ServiceURL, taskType, jobID)
	httpReq := &taskspb.HttpRequest{
		HttpMethod: taskspb.HttpMethod_POST,
		Url:        url,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
	if q.config.ServiceAccount != "" {
		httpReq.AuthorizationHeader = &taskspb.HttpRequest_OidcToken{
			OidcToken: &taskspb.OidcToken{ServiceAccountEmail: q.config.ServiceAccount},
		}
	}

	task := &taskspb.Task{
		MessageType: &taskspb.Task_HttpRequest{HttpRequest: httpReq},
	}
	if delay > 0 {
		task.ScheduleTime = timestamppb.New(time.Now().UTC().Add(delay))
	}

	created, err := q.client.CreateTask(ctx, &taskspb.CreateTaskRequest{
		Parent: q.queuePath(),
		Task:   task,
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug().
		Str("task", created.GetName()).
		Str("task_type", taskType).
		Str("job_id", jobID).
		Dur("delay", delay).
		Msg("Task enqueued")
	return created.GetName(), nil
}

func (q *TaskQueue) DequeueReady(ctx context.Context, taskType string, max int) ([]*models.Task, error) {
	return nil, interfaces.ErrLocalOnly
}

func (q *TaskQueue) Remove(ctx context.Context, taskType, taskID string) error {
	return interfaces.ErrLocalOnly
}

func (q *TaskQueue) Reschedule(ctx context.Context, task *models.Task, executeAt time.Time) error {
	return interfaces.ErrLocalOnly
}

func (q *TaskQueue) Fail(ctx context.Context, task *models.Task, errMsg string) error {
	return interfaces.ErrLocalOnly
}

func (q *TaskQueue) TaskTypes(ctx context.Context) ([]string, error) {
	return nil, interfaces.ErrLocalOnly
}
