// -----------------------------------------------------------------------
// Task endpoints - POST /tasks/<task_type>/<job_id>, invoked by the cloud
// queue or the local dispatcher. Handler failures answer 2xx with
// {success:false} so the queue's own retry policy stays in control.
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/tasks"
)

// TaskHandler routes task deliveries to the handler registry.
type TaskHandler struct {
	registry  *tasks.Registry
	env       *common.Environment
	authToken string
	logger    arbor.ILogger
}

// NewTaskHandler creates the task endpoint handler.
func NewTaskHandler(registry *tasks.Registry, env *common.Environment, authToken string, logger arbor.ILogger) *TaskHandler {
	return &TaskHandler{
		registry:  registry,
		env:       env,
		authToken: authToken,
		logger:    logger,
	}
}

// HandleTask serves POST /tasks/{task_type}/{job_id}.
func (h *TaskHandler) HandleTask(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	taskType, jobID, ok := parseTaskPath(r.URL.Path)
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid task path")
		return
	}

	if !h.authorized(r) {
		WriteError(w, http.StatusForbidden, "Forbidden")
		return
	}

	payload := make(map[string]interface{})
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "Invalid payload: "+err.Error())
			return
		}
	}

	result, err := h.registry.Handle(r.Context(), taskType, jobID, payload)
	if err != nil {
		switch {
		case errors.Is(err, tasks.ErrUnknownJob):
			WriteError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, tasks.ErrUnknownTaskType):
			WriteError(w, http.StatusNotFound, err.Error())
		default:
			// infrastructure failure before the handler ran; let the queue retry
			WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// authorized verifies the caller. Cloud: bearer token attached by the
// queue's OIDC delivery. Local: loopback connections only.
func (h *TaskHandler) authorized(r *http.Request) bool {
	if h.env.IsCloud() {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return false
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if h.authToken != "" && token != h.authToken {
			return false
		}
		return token != ""
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// parseTaskPath splits /tasks/<task_type>/<job_id>.
func parseTaskPath(path string) (taskType, jobID string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/tasks/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
