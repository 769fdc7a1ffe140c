// Package evaluate implements the error matching and metric aggregation
// engine. It pairs predicted environment-configuration errors with golden
// ground-truth errors under a weighted similarity score, classifies the
// unmatched residue as false positives and false negatives, and rolls
// per-document results into corpus-level precision/recall/F1 statistics.
package evaluate

import (
	"fmt"
	"sort"
)

// Category is a closed error category code. Unknown codes are rejected at
// the input boundary, never inside the matching algorithm.
type Category string

const (
	CategoryDependency  Category = "E1" // missing or wrong dependency
	CategorySyntax      Category = "E2" // syntax or usage error
	CategoryMissingFile Category = "E3" // referenced file does not exist
	CategoryOrdering    Category = "E4" // steps in the wrong order
	CategoryVersion     Category = "E5" // version compatibility
	CategoryOther       Category = "E6"
)

// Categories lists all valid category codes in canonical order.
var Categories = []Category{
	CategoryDependency,
	CategorySyntax,
	CategoryMissingFile,
	CategoryOrdering,
	CategoryVersion,
	CategoryOther,
}

// ParseCategory validates a raw category string from input data.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown error category %q", s)
}

// ErrorItem is one reported or golden error. Immutable once constructed.
type ErrorItem struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Fix         string   `json:"fix"`
}

// Weights controls the combined match score. The three components must be
// in [0,1] and sum to 1.
type Weights struct {
	Category    float64 `json:"category" yaml:"category"`
	Description float64 `json:"description" yaml:"description"`
	Fix         float64 `json:"fix" yaml:"fix"`
}

// DefaultWeights favours category equality (the cheapest, most reliable
// signal), then description, then fix.
var DefaultWeights = Weights{Category: 0.6, Description: 0.3, Fix: 0.1}

// DefaultThreshold is the acceptance threshold: a pair is a match only when
// its combined score strictly exceeds it. The same threshold is applied to
// the individual description/fix scores for the accuracy signals.
const DefaultThreshold = 0.5

const weightSumTolerance = 1e-9

// Validate checks component ranges and that the weights sum to 1.
func (w Weights) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"category", w.Category},
		{"description", w.Description},
		{"fix", w.Fix},
	} {
		if c.v < 0 || c.v > 1 {
			return fmt.Errorf("weight %s = %v out of range [0,1]", c.name, c.v)
		}
	}
	sum := w.Category + w.Description + w.Fix
	if sum < 1-weightSumTolerance || sum > 1+weightSumTolerance {
		return fmt.Errorf("weights sum to %v, want 1", sum)
	}
	return nil
}

// Combine folds the three component scores into the weighted combined score.
func (w Weights) Combine(category, description, fix float64) float64 {
	return w.Category*category + w.Description*description + w.Fix*fix
}

// MatchCandidate is a scored pairing between one predicted and one golden
// error. Combined is always in [0,1] for component scores in [0,1].
type MatchCandidate struct {
	CategoryScore    float64 `json:"category_score"`    // 0 or 1
	DescriptionScore float64 `json:"description_score"` // [0,1]
	FixScore         float64 `json:"fix_score"`         // [0,1]
	Combined         float64 `json:"combined_score"`
}

// MatchedPair records an accepted pairing by input position.
type MatchedPair struct {
	Predicted int            `json:"predicted"`
	Golden    int            `json:"golden"`
	Scores    MatchCandidate `json:"scores"`
}

// MatchResult is the per-document output of the matcher. Every predicted
// index appears in exactly one of {Pairs, UnmatchedPredicted} and every
// golden index in exactly one of {Pairs, UnmatchedGolden}.
type MatchResult struct {
	Pairs              []MatchedPair `json:"matched_pairs"`
	UnmatchedPredicted []int         `json:"unmatched_predicted"`
	UnmatchedGolden    []int         `json:"unmatched_golden"`
}

// CheckPartition verifies the partition invariant against the input sizes.
// A violation is a logic fault in the matcher, not a data condition.
func (r *MatchResult) CheckPartition(numPredicted, numGolden int) error {
	seenPred := make(map[int]int, numPredicted)
	seenGold := make(map[int]int, numGolden)
	for _, p := range r.Pairs {
		seenPred[p.Predicted]++
		seenGold[p.Golden]++
	}
	for _, i := range r.UnmatchedPredicted {
		seenPred[i]++
	}
	for _, j := range r.UnmatchedGolden {
		seenGold[j]++
	}
	if err := checkExactlyOnce("predicted", seenPred, numPredicted); err != nil {
		return err
	}
	return checkExactlyOnce("golden", seenGold, numGolden)
}

func checkExactlyOnce(side string, seen map[int]int, n int) error {
	for i := 0; i < n; i++ {
		switch seen[i] {
		case 1:
		case 0:
			return fmt.Errorf("partition invariant violated: %s index %d omitted", side, i)
		default:
			return fmt.Errorf("partition invariant violated: %s index %d used %d times", side, i, seen[i])
		}
	}
	for i := range seen {
		if i < 0 || i >= n {
			return fmt.Errorf("partition invariant violated: %s index %d out of range [0,%d)", side, i, n)
		}
	}
	return nil
}

// ConfusionCounts holds non-negative TP/FP/FN tallies. Counts sum
// additively across documents; the order of summation does not matter.
type ConfusionCounts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Add folds another count set into c.
func (c *ConfusionCounts) Add(o ConfusionCounts) {
	c.TP += o.TP
	c.FP += o.FP
	c.FN += o.FN
}

// Metrics derives precision/recall/F1 from the counts. Undefined ratios
// (zero denominator) report as 0.
func (c ConfusionCounts) Metrics() Metrics {
	p := safeRatio(c.TP, c.TP+c.FP)
	r := safeRatio(c.TP, c.TP+c.FN)
	f1 := 0.0
	if p+r > 0 {
		f1 = 2 * p * r / (p + r)
	}
	return Metrics{
		Precision:       p,
		Recall:          r,
		F1:              f1,
		ConfusionCounts: c,
	}
}

// safeRatio returns num/den, or 0 when the denominator is 0.
func safeRatio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Metrics is derived from ConfusionCounts, never stored independently.
type Metrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	ConfusionCounts
}

// AccuracySignals reports the fraction of matched pairs whose individual
// description/fix score exceeds the acceptance threshold. Defined is false
// for documents with zero matched pairs; such documents are excluded from
// the corpus mean rather than counted as 0.
type AccuracySignals struct {
	DescriptionAccuracy float64 `json:"description_accuracy"`
	FixAccuracy         float64 `json:"fix_accuracy"`
	Defined             bool    `json:"defined"`
}

// DocumentResult is one document's evaluation output.
type DocumentResult struct {
	Name           string                       `json:"name"`
	Repo           string                       `json:"repo,omitempty"`
	PredictedCount int                          `json:"predicted_count"`
	GoldenCount    int                          `json:"golden_count"`
	Match          MatchResult                  `json:"match"`
	Overall        ConfusionCounts              `json:"overall"`
	ByCategory     map[Category]ConfusionCounts `json:"by_category"`
	Accuracy       AccuracySignals              `json:"accuracy"`
}

// SkippedDocument records a document excluded for malformed input.
type SkippedDocument struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// FailedDocument records a document excluded by a processing failure
// (collaborator outage, per-document timeout, invariant violation).
type FailedDocument struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Summary is the corpus-level rollup produced by Aggregator.Finalize.
type Summary struct {
	Evaluated  int                  `json:"evaluated"`
	Skipped    []SkippedDocument    `json:"skipped,omitempty"`
	Failed     []FailedDocument     `json:"failed,omitempty"`
	Overall    Metrics              `json:"overall"`
	ByCategory map[Category]Metrics `json:"by_category"`

	// Corpus accuracy: mean over documents where the signal was defined.
	DescriptionAccuracy float64 `json:"description_accuracy"`
	FixAccuracy         float64 `json:"fix_accuracy"`
	AccuracyDocuments   int     `json:"accuracy_documents"`
}

// SortedCategories returns the by-category keys in canonical order.
func (s *Summary) SortedCategories() []Category {
	keys := make([]Category, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Report is the full run output: per-document results plus the summary.
type Report struct {
	RunID    string           `json:"run_id"`
	Scorer   string           `json:"scorer"`
	Results  []DocumentResult `json:"results"`
	Summary  Summary          `json:"summary"`
	Duration string           `json:"duration,omitempty"`
}
