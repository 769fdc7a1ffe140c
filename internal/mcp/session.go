package mcp

import (
	"context"
	"fmt"
	"sync"

	"envjudge/internal/config"
	"envjudge/internal/corpus"
	"envjudge/internal/evaluate"
	"envjudge/internal/logging"
	"envjudge/internal/similarity"

	"github.com/google/uuid"
)

// SessionState tracks the lifecycle of an evaluation session.
type SessionState string

const (
	StateRunning SessionState = "running"
	StateDone    SessionState = "done"
	StateError   SessionState = "error"
)

// Progress is a point-in-time snapshot of a running evaluation.
type Progress struct {
	State     SessionState `json:"state"`
	Total     int          `json:"total"`
	Processed int          `json:"processed"`
	Evaluated int          `json:"evaluated"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
}

// StartEvaluationInput mirrors the tool arguments for start_evaluation.
type StartEvaluationInput struct {
	ResultsDir string `json:"results_dir"`
	GoldenDir  string `json:"golden_dir"`
	Scorer     string `json:"scorer,omitempty"`
	Workers    int    `json:"workers,omitempty"`
}

// Session holds the state for a single evaluation run driven by MCP tool
// calls. The runner goroutine works through the corpus; tool handlers read
// progress and, once done, the report.
type Session struct {
	ID     string
	Total  int
	Scorer string

	mu        sync.Mutex
	state     SessionState
	processed int
	evaluated int
	skipped   int
	failed    int
	report    *evaluate.Report
	err       error

	doneCh chan struct{}
	cancel context.CancelFunc
}

// NewSession loads the corpus, spawns the evaluation runner goroutine, and
// returns immediately. Pre-skipped documents from corpus loading count
// toward the total so progress reaches 100%.
func NewSession(input StartEvaluationInput, cfg *config.Config) (*Session, error) {
	if input.ResultsDir == "" || input.GoldenDir == "" {
		return nil, fmt.Errorf("results_dir and golden_dir are required")
	}

	docs, preSkipped, err := corpus.NewLoader(input.ResultsDir, input.GoldenDir).Load()
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	scorer, err := buildScorer(input.Scorer, cfg)
	if err != nil {
		return nil, err
	}

	workers := input.Workers
	if workers < 1 {
		workers = cfg.Workers
	}

	runCtx, runCancel := context.WithCancel(context.Background())

	// Counters start at zero: the runner fires OnDocument for pre-skipped
	// entries too, so the callback is the single source of progress.
	sess := &Session{
		ID:     uuid.NewString(),
		Total:  len(docs) + len(preSkipped),
		Scorer: scorer.Name(),
		state:  StateRunning,
		doneCh: make(chan struct{}),
		cancel: runCancel,
	}

	runCfg := evaluate.RunConfig{
		Scorer:     scorer,
		Weights:    cfg.Weights,
		Threshold:  cfg.Threshold,
		Workers:    workers,
		DocTimeout: cfg.DocTimeout,
		OnDocument: sess.onDocument,
	}

	go sess.run(runCtx, runCfg, docs, preSkipped)

	return sess, nil
}

func buildScorer(name string, cfg *config.Config) (similarity.Scorer, error) {
	switch name {
	case "", "openai":
		return similarity.NewOpenAIScorer(similarity.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.Model,
			CallTimeout: cfg.CallTimeout,
			MaxRetries:  cfg.MaxRetries,
		})
	case "lexical":
		return similarity.LexicalScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown scorer: %s (available: openai, lexical)", name)
	}
}

func (s *Session) onDocument(name, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	switch status {
	case "evaluated":
		s.evaluated++
	case "skipped":
		s.skipped++
	case "failed":
		s.failed++
	}
}

// run executes the evaluation and captures the result.
func (s *Session) run(ctx context.Context, cfg evaluate.RunConfig, docs []evaluate.Document, preSkipped []evaluate.SkippedDocument) {
	defer close(s.doneCh)
	defer s.cancel()

	logger := logging.New("mcp-session")
	report, err := evaluate.Run(ctx, cfg, docs, preSkipped)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateError
		s.err = err
		logger.Error("evaluation failed", "session_id", s.ID, "error", err)
		return
	}
	s.state = StateDone
	s.report = report
	logger.Info("evaluation complete",
		"session_id", s.ID,
		"evaluated", report.Summary.Evaluated,
		"skipped", len(report.Summary.Skipped),
		"failed", len(report.Summary.Failed))
}

// Progress returns a snapshot of the session's counters.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{
		State:     s.state,
		Total:     s.Total,
		Processed: s.processed,
		Evaluated: s.evaluated,
		Skipped:   s.skipped,
		Failed:    s.failed,
	}
}

// Report returns the evaluation report, or nil if not yet done.
func (s *Session) Report() *evaluate.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Err returns any error from the evaluation run.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done returns a channel that closes when the evaluation completes.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// Cancel terminates the runner goroutine and releases resources.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}
