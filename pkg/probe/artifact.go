package probe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/loginprobe/pkg/config"
)

// ArtifactWriter handles writing run artifacts
type ArtifactWriter struct {
	outputDir string
	json      bool
	markdown  bool
}

// NewArtifactWriter creates a writer for the configured formats
func NewArtifactWriter(cfg config.ArtifactConfig) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: cfg.OutputDir,
		json:      cfg.JSON,
		markdown:  cfg.Markdown,
	}
}

// WriteAll writes all configured artifact formats into a per-run directory
// and returns that directory.
func (w *ArtifactWriter) WriteAll(summary *Summary) (string, error) {
	dir := filepath.Join(w.outputDir, summary.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if w.json {
		if err := writeSummaryJSON(filepath.Join(dir, "summary.json"), summary); err != nil {
			return dir, err
		}
	}
	if w.markdown {
		if err := writeSummaryMarkdown(filepath.Join(dir, "summary.md"), summary); err != nil {
			return dir, err
		}
	}
	return dir, nil
}

func writeSummaryJSON(path string, summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write summary JSON: %w", err)
	}
	return nil
}

func writeSummaryMarkdown(path string, summary *Summary) error {
	if err := os.WriteFile(path, []byte(RenderMarkdown(summary)), 0600); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}
	return nil
}

var statusIcons = map[Status]string{
	StatusPassed:  "✅",
	StatusFailed:  "❌",
	StatusErrored: "⚠️",
	StatusSkipped: "⏭️",
}

// RenderMarkdown renders a human-readable run summary.
func RenderMarkdown(summary *Summary) string {
	var md strings.Builder

	md.WriteString("# Login Probe Summary\n\n")
	md.WriteString(fmt.Sprintf("**Status:** %s %s\n\n", statusIcons[summary.Status], summary.Status))
	md.WriteString(fmt.Sprintf("**Target:** %s (profile `%s`)\n\n", summary.BaseURL, summary.Profile))
	md.WriteString(fmt.Sprintf("**Run:** `%s`\n\n", summary.RunID))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration.Round(time.Millisecond)))

	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("**Error:** %s\n\n", summary.Error))
	}

	md.WriteString("## Checks\n\n")
	md.WriteString("| Check | Expect | Status | Duration | Detail |\n")
	md.WriteString("|---|---|---|---|---|\n")
	for _, r := range summary.Results {
		md.WriteString(fmt.Sprintf("| %s | %s | %s %s | %s | %s |\n",
			escapeCell(r.Name), r.Expect, statusIcons[r.Status], r.Status,
			r.Duration.Round(time.Millisecond), escapeCell(r.Detail)))
	}
	md.WriteString("\n")

	var failures []Result
	for _, r := range summary.Results {
		if r.Status == StatusFailed || r.Status == StatusErrored {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		md.WriteString("## Failures\n\n")
		for _, r := range failures {
			md.WriteString(fmt.Sprintf("### %s\n\n", r.Name))
			if r.URL != "" {
				md.WriteString(fmt.Sprintf("- **URL:** %s\n", r.URL))
			}
			if r.Error != "" {
				md.WriteString(fmt.Sprintf("- **Error:** %s\n", r.Error))
			}
			if r.PageText != "" {
				md.WriteString(fmt.Sprintf("\n```\n%s\n```\n", r.PageText))
			}
			md.WriteString("\n")
		}
	}

	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Total:** %d\n", summary.Metrics.Total))
	md.WriteString(fmt.Sprintf("- **Passed:** %d\n", summary.Metrics.Passed))
	md.WriteString(fmt.Sprintf("- **Failed:** %d\n", summary.Metrics.Failed))
	md.WriteString(fmt.Sprintf("- **Errored:** %d\n", summary.Metrics.Errored))
	md.WriteString(fmt.Sprintf("- **Skipped:** %d\n", summary.Metrics.Skipped))

	return md.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
