package tasks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/interfaces"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ProcessImageHandler runs OCR over an uploaded image and produces a
// markdown report plus its HTML rendering.
type ProcessImageHandler struct {
	artifacts interfaces.ArtifactStore
	ocr       interfaces.OCREngine
	markdown  goldmark.Markdown
	logger    arbor.ILogger
}

// NewProcessImageHandler creates the process-image handler.
func NewProcessImageHandler(artifacts interfaces.ArtifactStore, ocr interfaces.OCREngine, logger arbor.ILogger) *ProcessImageHandler {
	return &ProcessImageHandler{
		artifacts: artifacts,
		ocr:       ocr,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:    logger,
	}
}

// Handle implements HandlerFunc for the process-image task type.
func (h *ProcessImageHandler) Handle(ctx context.Context, job *models.Job, payload map[string]interface{}) (map[string]interface{}, error) {
	started := time.Now()

	filePath, ok := job.MetadataString("file_path")
	if !ok || filePath == "" {
		return nil, fmt.Errorf("job metadata is missing file_path")
	}

	image, err := h.artifacts.Get(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input image %s: %w", filePath, err)
	}

	contentType := "image/png"
	if ct, ok := job.MetadataString("content_type"); ok && ct != "" {
		contentType = ct
	}

	text, err := h.ocr.ExtractText(ctx, image, contentType)
	if err != nil {
		return nil, fmt.Errorf("ocr extraction failed: %w", err)
	}

	title, _ := job.MetadataString("title")
	if title == "" {
		title = "Image Report"
	}

	report := buildImageReport(title, filePath, text)
	base := reportBasename(job.JobID)

	reportPath, err := h.artifacts.Save(ctx, []byte(report), "text/markdown", "reports", base+".md")
	if err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	var rendered bytes.Buffer
	if err := h.markdown.Convert([]byte(report), &rendered); err != nil {
		return nil, fmt.Errorf("failed to render report html: %w", err)
	}
	htmlPath, err := h.artifacts.Save(ctx, rendered.Bytes(), "text/html", "reports", base+".html")
	if err != nil {
		return nil, fmt.Errorf("failed to persist report html: %w", err)
	}

	return map[string]interface{}{
		"report_path":        reportPath,
		"html_path":          htmlPath,
		"text_length":        len(text),
		"processing_time_ms": time.Since(started).Milliseconds(),
	}, nil
}

func buildImageReport(title, source, text string) string {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	b.WriteString("Source: `" + source + "`\n\n")
	b.WriteString("## Extracted Text\n\n")
	if strings.TrimSpace(text) == "" {
		b.WriteString("_No text detected._\n")
	} else {
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// reportBasename derives a stable report filename from the job id so
// redelivery overwrites the same artifacts.
func reportBasename(jobID string) string {
	return strings.TrimPrefix(jobID, "job_")
}
