package evaluate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DetailedArtifactName = "detailed_evaluation_results.json"
	SummaryArtifactName  = "evaluation_summary.json"
)

// WriteArtifacts persists the run as two JSON files under dir: the detailed
// per-document results and the corpus summary. The directory is created if
// needed.
func WriteArtifacts(dir string, report *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	detailed := struct {
		RunID    string           `json:"run_id"`
		Scorer   string           `json:"scorer"`
		Duration string           `json:"duration,omitempty"`
		Results  []DocumentResult `json:"results"`
	}{
		RunID:    report.RunID,
		Scorer:   report.Scorer,
		Duration: report.Duration,
		Results:  report.Results,
	}
	if err := writeJSONFile(filepath.Join(dir, DetailedArtifactName), detailed); err != nil {
		return err
	}

	summary := struct {
		RunID string `json:"run_id"`
		Summary
	}{RunID: report.RunID, Summary: report.Summary}
	return writeJSONFile(filepath.Join(dir, SummaryArtifactName), summary)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
