package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"envjudge/internal/config"
	"envjudge/internal/corpus"
	"envjudge/internal/evaluate"
	"envjudge/internal/format"
	"envjudge/internal/logging"
	"envjudge/internal/similarity"
	"envjudge/internal/store"
)

var evaluateFlags struct {
	resultsDir string
	goldenDir  string
	outDir     string
	scorer     string
	workers    int
	configPath string
	dbPath     string
	noStore    bool
	markdown   bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a results directory against golden answers",
	Long: `Evaluate discovers predicted-analysis JSON files under the results
directory, pairs each with its golden answer, scores every predicted/golden
error pair, and prints the aggregated report. The run is persisted to the
store and written as JSON artifacts to the output directory.`,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evaluateFlags.resultsDir, "results-dir", "", "Directory of per-repo analysis result folders (required)")
	f.StringVar(&evaluateFlags.goldenDir, "golden-dir", "", "Directory of golden answer folders (required)")
	f.StringVarP(&evaluateFlags.outDir, "out-dir", "o", "evaluation_output", "Directory for JSON artifacts (empty = skip)")
	f.StringVar(&evaluateFlags.scorer, "scorer", "openai", "Similarity scorer (openai, lexical)")
	f.IntVar(&evaluateFlags.workers, "workers", 0, "Parallel workers (0 = from config)")
	f.StringVar(&evaluateFlags.configPath, "config", "", "Path to YAML config file")
	f.StringVar(&evaluateFlags.dbPath, "store", store.DefaultDBPath, "Store DB path")
	f.BoolVar(&evaluateFlags.noStore, "no-store", false, "Do not persist the run")
	f.BoolVar(&evaluateFlags.markdown, "markdown", false, "Render the report as Markdown")

	_ = evaluateCmd.MarkFlagRequired("results-dir")
	_ = evaluateCmd.MarkFlagRequired("golden-dir")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(evaluateFlags.configPath)
	if err != nil {
		return err
	}

	scorer, err := buildScorer(evaluateFlags.scorer, cfg)
	if err != nil {
		return err
	}

	docs, preSkipped, err := corpus.NewLoader(evaluateFlags.resultsDir, evaluateFlags.goldenDir).Load()
	if err != nil {
		return err
	}

	workers := evaluateFlags.workers
	if workers < 1 {
		workers = cfg.Workers
	}

	logger := logging.New("evaluate")
	total := len(docs) + len(preSkipped)
	logger.Info("starting evaluation",
		"documents", total, "scorer", scorer.Name(), "workers", workers)

	report, err := evaluate.Run(cmd.Context(), evaluate.RunConfig{
		Scorer:     scorer,
		Weights:    cfg.Weights,
		Threshold:  cfg.Threshold,
		Workers:    workers,
		DocTimeout: cfg.DocTimeout,
		OnDocument: func(name, status string) {
			logger.Info("document settled", "name", name, "status", status)
		},
	}, docs, preSkipped)
	if err != nil {
		return err
	}

	if !evaluateFlags.noStore {
		if err := saveRun(report, cfg, scorer.Name()); err != nil {
			return err
		}
	}

	if evaluateFlags.outDir != "" {
		if err := evaluate.WriteArtifacts(evaluateFlags.outDir, report); err != nil {
			return err
		}
		logger.Info("artifacts written", "dir", evaluateFlags.outDir)
	}

	mode := format.ASCII
	if evaluateFlags.markdown {
		mode = format.Markdown
	}
	fmt.Fprint(cmd.OutOrStdout(), evaluate.FormatReport(report, mode))
	return nil
}

func buildScorer(name string, cfg *config.Config) (similarity.Scorer, error) {
	switch name {
	case "openai":
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

// saveRun snapshots the effective matching policy alongside the report so a
// stored run stays interpretable after defaults change.
func saveRun(report *evaluate.Report, cfg *config.Config, scorerName string) error {
	snapshot, err := json.Marshal(struct {
		Scorer    string           `json:"scorer"`
		Model     string           `json:"model,omitempty"`
		Threshold float64          `json:"threshold"`
		Weights   evaluate.Weights `json:"weights"`
		Workers   int              `json:"workers"`
	}{
		Scorer:    scorerName,
		Model:     cfg.Model,
		Threshold: cfg.Threshold,
		Weights:   cfg.Weights,
		Workers:   cfg.Workers,
	})
	if err != nil {
		return fmt.Errorf("marshal config snapshot: %w", err)
	}

	st, err := store.Open(evaluateFlags.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.SaveRun(report, string(snapshot)); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	logging.New("evaluate").Info("run persisted", "run_id", report.RunID, "db", evaluateFlags.dbPath)
	return nil
}
