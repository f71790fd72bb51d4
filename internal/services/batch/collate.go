package batch

// collate.go assembles the optional collated.md artifact: successful
// reports concatenated in input order under the supplied title, with an
// optional generated table of contents.

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/wraith/internal/models"
)

// writeCollated builds and persists the collated markdown document.
// Failed URLs are skipped; ordering follows the input list so the output
// is deterministic for a given batch.
func (c *Coordinator) writeCollated(ctx context.Context, jobID string, req *models.BatchRequest, results []models.URLResult, reports [][]byte) (string, error) {
	opts := req.CollateOptions
	if opts == nil {
		opts = &models.CollateOptions{}
	}

	title := opts.Title
	if title == "" {
		title = "Collated Report"
	}

	var b strings.Builder
	b.WriteString("# " + title + "\n\n")

	if opts.AddTOC {
		b.WriteString("## Contents\n\n")
		for i := range results {
			if results[i].Status != models.URLStatusCompleted {
				continue
			}
			b.WriteString(fmt.Sprintf("%d. [%s](#%s)\n", i+1, results[i].URL, sourceAnchor(i)))
		}
		b.WriteString("\n")
	}

	for i := range results {
		if results[i].Status != models.URLStatusCompleted || reports[i] == nil {
			continue
		}
		if opts.AddSourceHeaders || opts.AddTOC {
			b.WriteString(fmt.Sprintf("<a id=\"%s\"></a>\n\n## %s\n\n", sourceAnchor(i), results[i].URL))
		}
		b.Write(reports[i])
		b.WriteString("\n\n---\n\n")
	}

	namespace := fmt.Sprintf("batch/%s", jobID)
	path, err := c.artifacts.Save(ctx, []byte(b.String()), "text/markdown", namespace, "collated.md")
	if err != nil {
		return "", fmt.Errorf("failed to persist collated report: %w", err)
	}
	return path, nil
}

func sourceAnchor(i int) string {
	return fmt.Sprintf("source-%d", i)
}
