// Package corpus discovers and loads evaluation inputs: predicted error
// analyses recorded by the producer, and the golden answers they are judged
// against. All shape validation happens here, at the boundary — documents
// with malformed records are reported as skipped, never passed inward.
package corpus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"envjudge/internal/evaluate"
	"envjudge/internal/logging"
)

// PredictedError is the raw predicted record as written by the producer.
type PredictedError struct {
	ErrorType        string `json:"error_type"`
	ErrorDescription string `json:"error_description"`
	FixAnswer        string `json:"fix_answer"`
}

// PredictedResult is one recorded analysis output.
type PredictedResult struct {
	RepoName    string           `json:"repo_name"`
	ReadmeName  string           `json:"readme_name"`
	Errors      []PredictedError `json:"errors"`
	ShellScript string           `json:"shell_script,omitempty"`
	RawOutput   string           `json:"raw_output,omitempty"`
}

// GoldenError is one ground-truth error record.
type GoldenError struct {
	ErrorType        string `json:"error_type"`
	ErrorDescription string `json:"error_description"`
	GoldenAnswer     string `json:"golden_answer"`
}

// GoldenAnswer is the curated ground truth for one document.
type GoldenAnswer struct {
	ReadmeName string        `json:"readme_name"`
	Errors     []GoldenError `json:"errors"`
}

// goldenFileName is the ground-truth file expected in each document folder.
const goldenFileName = "README.json"

// Loader walks a results directory and a golden data root and produces
// evaluation documents.
type Loader struct {
	ResultsDir string
	GoldenDir  string
	logger     *slog.Logger
}

// NewLoader builds a Loader over the two input roots.
func NewLoader(resultsDir, goldenDir string) *Loader {
	return &Loader{
		ResultsDir: resultsDir,
		GoldenDir:  goldenDir,
		logger:     logging.New("corpus"),
	}
}

// Load discovers every predicted-result file, aligns it with its golden
// answer, and converts both into evaluation documents. Boundary rejections
// (unreadable JSON, missing fields, unknown categories, missing golden
// counterpart) come back as skipped entries; only genuinely empty inputs
// are an error.
func (l *Loader) Load() ([]evaluate.Document, []evaluate.SkippedDocument, error) {
	files, err := l.discoverResults()
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no result files found under %s", l.ResultsDir)
	}
	l.logger.Info("discovered result files", "count", len(files))

	var docs []evaluate.Document
	var skipped []evaluate.SkippedDocument
	for _, path := range files {
		doc, err := l.loadDocument(path)
		if err != nil {
			name := filepath.Base(path)
			l.logger.Warn("document skipped", "file", name, "reason", err)
			skipped = append(skipped, evaluate.SkippedDocument{Name: name, Reason: err.Error()})
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

// discoverResults finds predicted-result JSON files: one level of
// subfolders under the results dir, files whose name mentions "error".
func (l *Loader) discoverResults() ([]string, error) {
	entries, err := os.ReadDir(l.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(l.ResultsDir, e.Name())
		subEntries, err := os.ReadDir(sub)
		if err != nil {
			return nil, fmt.Errorf("read results subdir %s: %w", sub, err)
		}
		for _, f := range subEntries {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			if !strings.Contains(strings.ToLower(name), "error") {
				continue
			}
			files = append(files, filepath.Join(sub, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (l *Loader) loadDocument(path string) (evaluate.Document, error) {
	var predicted PredictedResult
	if err := readJSON(path, &predicted); err != nil {
		return evaluate.Document{}, err
	}
	if predicted.ReadmeName == "" {
		return evaluate.Document{}, fmt.Errorf("missing readme_name")
	}

	goldenPath, ok := l.findGolden(predicted.ReadmeName)
	if !ok {
		return evaluate.Document{}, fmt.Errorf("no golden answer for %q", predicted.ReadmeName)
	}
	var golden GoldenAnswer
	if err := readJSON(goldenPath, &golden); err != nil {
		return evaluate.Document{}, fmt.Errorf("golden answer: %w", err)
	}

	doc := evaluate.Document{Name: predicted.ReadmeName, Repo: predicted.RepoName}
	for i, e := range predicted.Errors {
		it, err := toItem(e.ErrorType, e.ErrorDescription, e.FixAnswer)
		if err != nil {
			return evaluate.Document{}, fmt.Errorf("predicted error %d: %w", i, err)
		}
		doc.Predicted = append(doc.Predicted, it)
	}
	for i, e := range golden.Errors {
		it, err := toItem(e.ErrorType, e.ErrorDescription, e.GoldenAnswer)
		if err != nil {
			return evaluate.Document{}, fmt.Errorf("golden error %d: %w", i, err)
		}
		doc.Golden = append(doc.Golden, it)
	}
	return doc, nil
}

// findGolden locates the golden file for a document name. Golden data is
// laid out as <golden root>/<repo>/<document folder>/README.json, where the
// folder name matches the document name exactly, without its extension, or
// by containment in either direction.
func (l *Loader) findGolden(readmeName string) (string, bool) {
	base := readmeName
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}

	repos, err := os.ReadDir(l.GoldenDir)
	if err != nil {
		return "", false
	}
	for _, repo := range repos {
		if !repo.IsDir() {
			continue
		}
		repoDir := filepath.Join(l.GoldenDir, repo.Name())
		folders, err := os.ReadDir(repoDir)
		if err != nil {
			continue
		}
		for _, folder := range folders {
			if !folder.IsDir() {
				continue
			}
			name := folder.Name()
			match := name == readmeName ||
				name == base ||
				strings.Contains(name, base) ||
				strings.Contains(base, name)
			if !match {
				continue
			}
			candidate := filepath.Join(repoDir, name, goldenFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
		}
	}
	return "", false
}

func toItem(category, description, fix string) (evaluate.ErrorItem, error) {
	cat, err := evaluate.ParseCategory(category)
	if err != nil {
		return evaluate.ErrorItem{}, err
	}
	if strings.TrimSpace(description) == "" {
		return evaluate.ErrorItem{}, fmt.Errorf("missing error_description")
	}
	return evaluate.ErrorItem{Category: cat, Description: description, Fix: fix}, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
