package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - crawl submission
	mux.HandleFunc("/api/markdown", s.app.MarkdownHandler.SubmitHandler)
	mux.HandleFunc("/api/upload-async", s.app.UploadHandler.UploadAsyncHandler)

	// API routes - jobs
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	// Task handler endpoints (cloud queue / local dispatcher deliveries)
	mux.HandleFunc("/tasks/", s.app.TaskHandler.HandleTask)

	// API routes - system
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobRoutes routes /api/jobs/{id} by method.
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.GetJobHandler(w, r, jobID)
	case http.MethodDelete:
		s.app.JobHandler.DeleteJobHandler(w, r, jobID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
