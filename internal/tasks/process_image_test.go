package tasks

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/wraith/internal/models"
	"github.com/ternarybob/wraith/internal/storage/file"
)

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) ExtractText(ctx context.Context, image []byte, contentType string) (string, error) {
	return f.text, f.err
}

func TestProcessImageProducesReportAndHTML(t *testing.T) {
	logger := arbor.NewLogger()
	artifacts, err := file.NewArtifactStore(t.TempDir(), logger)
	require.NoError(t, err)
	defer artifacts.Close()

	ctx := context.Background()
	inputPath, err := artifacts.Save(ctx, []byte("fake-png"), "image/png", "uploads", "in.png")
	require.NoError(t, err)

	job := models.NewJob(models.JobTypeImageProcessing, map[string]interface{}{
		"file_path": inputPath,
		"title":     "Receipt",
	})

	handler := NewProcessImageHandler(artifacts, fakeOCR{text: "TOTAL $42.00"}, logger)
	results, err := handler.Handle(ctx, job, nil)
	require.NoError(t, err)

	reportPath := results["report_path"].(string)
	htmlPath := results["html_path"].(string)

	report, err := artifacts.Get(ctx, reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "# Receipt")
	assert.Contains(t, string(report), "TOTAL $42.00")

	html, err := artifacts.Get(ctx, htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1")

	// redelivery overwrites the same artifact paths
	again, err := handler.Handle(ctx, job, nil)
	require.NoError(t, err)
	assert.Equal(t, reportPath, again["report_path"])
}

func TestProcessImageMissingInput(t *testing.T) {
	logger := arbor.NewLogger()
	artifacts, err := file.NewArtifactStore(t.TempDir(), logger)
	require.NoError(t, err)
	defer artifacts.Close()

	handler := NewProcessImageHandler(artifacts, fakeOCR{text: "x"}, logger)

	job := models.NewJob(models.JobTypeImageProcessing, nil)
	_, err = handler.Handle(context.Background(), job, nil)
	assert.Error(t, err, "missing file_path must fail the job")

	job = models.NewJob(models.JobTypeImageProcessing, map[string]interface{}{"file_path": "uploads/gone.png"})
	_, err = handler.Handle(context.Background(), job, nil)
	assert.Error(t, err, "unreadable input must fail the job")
}

func TestProcessImageOCRFailure(t *testing.T) {
	logger := arbor.NewLogger()
	artifacts, err := file.NewArtifactStore(t.TempDir(), logger)
	require.NoError(t, err)
	defer artifacts.Close()

	ctx := context.Background()
	inputPath, err := artifacts.Save(ctx, []byte("img"), "image/png", "uploads", "in.png")
	require.NoError(t, err)

	handler := NewProcessImageHandler(artifacts, fakeOCR{err: fmt.Errorf("engine offline")}, logger)
	job := models.NewJob(models.JobTypeImageProcessing, map[string]interface{}{"file_path": inputPath})

	_, err = handler.Handle(ctx, job, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine offline")
}
