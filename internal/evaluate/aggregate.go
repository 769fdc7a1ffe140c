package evaluate

import (
	"sync"
)

// Aggregator folds per-document results into corpus totals. Accumulation
// is additive and commutative, so document order never changes the final
// metrics; the mutex only serializes the bookkeeping, it carries no
// ordering semantics. Once accumulated, a document is never revisited.
type Aggregator struct {
	mu sync.Mutex

	overall    ConfusionCounts
	byCategory map[Category]ConfusionCounts

	descSum      float64
	fixSum       float64
	accuracyDocs int

	evaluated int
	skipped   []SkippedDocument
	failed    []FailedDocument
}

// NewAggregator returns an empty accumulator.
func NewAggregator() *Aggregator {
	return &Aggregator{byCategory: make(map[Category]ConfusionCounts)}
}

// Accumulate folds one evaluated document into the running totals.
func (a *Aggregator) Accumulate(r DocumentResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.evaluated++
	a.overall.Add(r.Overall)
	for cat, counts := range r.ByCategory {
		total := a.byCategory[cat]
		total.Add(counts)
		a.byCategory[cat] = total
	}
	if r.Accuracy.Defined {
		a.descSum += r.Accuracy.DescriptionAccuracy
		a.fixSum += r.Accuracy.FixAccuracy
		a.accuracyDocs++
	}
}

// Skip records a document excluded for malformed input. It contributes
// nothing to the totals.
func (a *Aggregator) Skip(name, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skipped = append(a.skipped, SkippedDocument{Name: name, Reason: reason})
}

// Fail records a processing failure. The document is excluded, never
// zero-filled: silently counting it would distort recall.
func (a *Aggregator) Fail(name, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed = append(a.failed, FailedDocument{Name: name, Reason: reason})
}

// Finalize derives the corpus summary from the accumulated totals.
// Safe to call once all accumulation is done.
func (a *Aggregator) Finalize() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{
		Evaluated:         a.evaluated,
		Skipped:           a.skipped,
		Failed:            a.failed,
		Overall:           a.overall.Metrics(),
		ByCategory:        make(map[Category]Metrics, len(a.byCategory)),
		AccuracyDocuments: a.accuracyDocs,
	}
	for cat, counts := range a.byCategory {
		s.ByCategory[cat] = counts.Metrics()
	}
	if a.accuracyDocs > 0 {
		s.DescriptionAccuracy = a.descSum / float64(a.accuracyDocs)
		s.FixAccuracy = a.fixSum / float64(a.accuracyDocs)
	}
	return s
}
