package evaluate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"envjudge/internal/format"
	"envjudge/internal/logging"
	"envjudge/internal/similarity"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunConfig configures a corpus evaluation run.
type RunConfig struct {
	Scorer          similarity.Scorer
	Weights         Weights
	Threshold       float64       // combined-score acceptance, 0 = default 0.5
	AcceptThreshold float64       // accuracy-signal gate, 0 = reuse Threshold
	Workers         int           // worker pool size, default 1
	DocTimeout      time.Duration // per-document budget, 0 = unlimited

	// OnDocument, if set, is called after each document settles with its
	// terminal status ("evaluated", "skipped", "failed"). Called from
	// worker goroutines; implementations must be safe for concurrent use.
	OnDocument func(name, status string)
}

// Run evaluates every document with a bounded worker pool and returns the
// assembled report. Documents are independent; only the aggregation step
// is serialized. preSkipped carries boundary rejections from corpus
// loading so the report shows them next to processing failures.
func Run(ctx context.Context, cfg RunConfig, docs []Document, preSkipped []SkippedDocument) (*Report, error) {
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("run: scorer is required")
	}
	weights := cfg.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	logger := logging.New("runner")
	started := time.Now()

	matcher := NewMatcher(cfg.Scorer, WithWeights(weights), WithThreshold(threshold))
	evaluator := NewDocumentEvaluator(matcher, cfg.AcceptThreshold)
	agg := NewAggregator()
	for _, s := range preSkipped {
		agg.Skip(s.Name, s.Reason)
		notify(cfg.OnDocument, s.Name, "skipped")
	}

	results := make([]*DocumentResult, len(docs))

	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			docCtx := runCtx
			cancel := context.CancelFunc(func() {})
			if cfg.DocTimeout > 0 {
				docCtx, cancel = context.WithTimeout(runCtx, cfg.DocTimeout)
			}
			defer cancel()

			result, err := evaluator.Evaluate(docCtx, doc)
			if err != nil {
				// The run itself being canceled is the only error that
				// stops other workers.
				if runCtx.Err() != nil && errors.Is(err, runCtx.Err()) {
					return err
				}
				reason := failureReason(docCtx, err)
				logger.Error("document failed", "doc", doc.Name, "reason", reason)
				agg.Fail(doc.Name, reason)
				notify(cfg.OnDocument, doc.Name, "failed")
				return nil
			}
			agg.Accumulate(result)
			results[i] = &result
			notify(cfg.OnDocument, doc.Name, "evaluated")
			logger.Debug("document evaluated",
				"doc", doc.Name,
				"tp", result.Overall.TP, "fp", result.Overall.FP, "fn", result.Overall.FN)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:    uuid.NewString(),
		Scorer:   cfg.Scorer.Name(),
		Summary:  agg.Finalize(),
		Duration: format.FmtDuration(time.Since(started)),
	}
	for _, r := range results {
		if r != nil {
			report.Results = append(report.Results, *r)
		}
	}

	logger.Info("run complete",
		"evaluated", report.Summary.Evaluated,
		"skipped", len(report.Summary.Skipped),
		"failed", len(report.Summary.Failed),
		"f1", report.Summary.Overall.F1)
	return report, nil
}

func failureReason(docCtx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) && docCtx.Err() != nil:
		return "document timeout exceeded"
	case errors.Is(err, similarity.ErrUnavailable):
		return fmt.Sprintf("similarity scorer unavailable: %v", err)
	default:
		return err.Error()
	}
}

func notify(fn func(name, status string), name, status string) {
	if fn != nil {
		fn(name, status)
	}
}
