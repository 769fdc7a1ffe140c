package evaluate

import (
	"context"
)

// DocumentEvaluator applies the matcher to one document and derives its
// confusion counts and accuracy signals.
type DocumentEvaluator struct {
	matcher         *Matcher
	acceptThreshold float64
}

// NewDocumentEvaluator wires a matcher. acceptThreshold gates the
// per-pair description/fix accuracy signals; pass 0 to reuse the
// matcher's acceptance threshold.
func NewDocumentEvaluator(m *Matcher, acceptThreshold float64) *DocumentEvaluator {
	if acceptThreshold <= 0 {
		acceptThreshold = m.threshold
	}
	return &DocumentEvaluator{matcher: m, acceptThreshold: acceptThreshold}
}

// Document is one unit of evaluation work: a predicted error list aligned
// with its golden counterpart.
type Document struct {
	Name      string
	Repo      string
	Predicted []ErrorItem
	Golden    []ErrorItem
}

// Evaluate matches one document and derives its counts.
//
// Attribution rules: a matched pair counts one TP under the golden item's
// category (golden is authoritative); an unmatched predicted item counts
// one FP under its own category (there is no golden category to borrow);
// an unmatched golden item counts one FN under its category.
func (e *DocumentEvaluator) Evaluate(ctx context.Context, doc Document) (DocumentResult, error) {
	match, err := e.matcher.Match(ctx, doc.Predicted, doc.Golden)
	if err != nil {
		return DocumentResult{}, err
	}

	result := DocumentResult{
		Name:           doc.Name,
		Repo:           doc.Repo,
		PredictedCount: len(doc.Predicted),
		GoldenCount:    len(doc.Golden),
		Match:          match,
		ByCategory:     make(map[Category]ConfusionCounts),
	}

	bump := func(c Category, f func(*ConfusionCounts)) {
		counts := result.ByCategory[c]
		f(&counts)
		result.ByCategory[c] = counts
	}

	descHits, fixHits := 0, 0
	for _, pair := range match.Pairs {
		result.Overall.TP++
		bump(doc.Golden[pair.Golden].Category, func(c *ConfusionCounts) { c.TP++ })
		if pair.Scores.DescriptionScore > e.acceptThreshold {
			descHits++
		}
		if pair.Scores.FixScore > e.acceptThreshold {
			fixHits++
		}
	}
	for _, i := range match.UnmatchedPredicted {
		result.Overall.FP++
		bump(doc.Predicted[i].Category, func(c *ConfusionCounts) { c.FP++ })
	}
	for _, j := range match.UnmatchedGolden {
		result.Overall.FN++
		bump(doc.Golden[j].Category, func(c *ConfusionCounts) { c.FN++ })
	}

	if n := len(match.Pairs); n > 0 {
		result.Accuracy = AccuracySignals{
			DescriptionAccuracy: float64(descHits) / float64(n),
			FixAccuracy:         float64(fixHits) / float64(n),
			Defined:             true,
		}
	}

	return result, nil
}
