package evaluate

import (
	"fmt"
	"strings"

	"envjudge/internal/display"
	"envjudge/internal/format"
)

// FormatReport produces the human-readable evaluation report.
func FormatReport(report *Report, mode format.Mode) string {
	var b strings.Builder
	s := &report.Summary

	b.WriteString("=== Environment Error Evaluation Report ===\n")
	b.WriteString(fmt.Sprintf("Run:     %s\n", report.RunID))
	b.WriteString(fmt.Sprintf("Scorer:  %s\n", report.Scorer))
	if report.Duration != "" {
		b.WriteString(fmt.Sprintf("Took:    %s\n", report.Duration))
	}
	b.WriteString(fmt.Sprintf("Docs:    %d evaluated, %d skipped, %d failed\n\n",
		s.Evaluated, len(s.Skipped), len(s.Failed)))

	b.WriteString("--- Overall ---\n")
	b.WriteString(fmt.Sprintf("%-10s %s\n", display.MetricName("precision")+":", format.FmtScore(s.Overall.Precision)))
	b.WriteString(fmt.Sprintf("%-10s %s\n", display.MetricName("recall")+":", format.FmtScore(s.Overall.Recall)))
	b.WriteString(fmt.Sprintf("%-10s %s\n", display.MetricName("f1")+":", format.FmtScore(s.Overall.F1)))
	b.WriteString(fmt.Sprintf("TP: %d, FP: %d, FN: %d\n\n",
		s.Overall.TP, s.Overall.FP, s.Overall.FN))

	b.WriteString("--- Text Similarity ---\n")
	if s.AccuracyDocuments > 0 {
		b.WriteString(fmt.Sprintf("%-21s %s\n", display.MetricName("description_accuracy")+":", format.FmtScore(s.DescriptionAccuracy)))
		b.WriteString(fmt.Sprintf("%-21s %s\n", display.MetricName("fix_accuracy")+":", format.FmtScore(s.FixAccuracy)))
		b.WriteString(fmt.Sprintf("(defined for %s evaluated documents)\n\n",
			format.FmtRatio(s.AccuracyDocuments, s.Evaluated)))
	} else {
		b.WriteString("No documents with matched pairs; accuracy undefined.\n\n")
	}

	if len(s.ByCategory) > 0 {
		b.WriteString("--- Per-category Breakdown ---\n")
		tb := format.NewTable(mode)
		tb.Header("Category", "Precision", "Recall", "F1", "TP", "FP", "FN")
		tb.Columns(
			format.ColumnConfig{Number: 1, Align: format.AlignLeft, MaxWidth: 28},
			format.ColumnConfig{Number: 2, Align: format.AlignRight},
			format.ColumnConfig{Number: 3, Align: format.AlignRight},
			format.ColumnConfig{Number: 4, Align: format.AlignRight},
		)
		for _, cat := range s.SortedCategories() {
			m := s.ByCategory[cat]
			tb.Row(display.CategoryWithCode(string(cat)),
				format.FmtScore(m.Precision), format.FmtScore(m.Recall), format.FmtScore(m.F1),
				m.TP, m.FP, m.FN)
		}
		b.WriteString(tb.String())
		b.WriteString("\n\n")
	}

	if len(report.Results) > 0 {
		b.WriteString("--- Per-document Breakdown ---\n")
		for _, r := range report.Results {
			accuracy := "acc=n/a"
			if r.Accuracy.Defined {
				accuracy = fmt.Sprintf("desc=%s fix=%s",
					format.FmtScore(r.Accuracy.DescriptionAccuracy),
					format.FmtScore(r.Accuracy.FixAccuracy))
			}
			b.WriteString(fmt.Sprintf("%-32s pred=%d gold=%d  tp=%d fp=%d fn=%d  %s\n",
				format.Truncate(r.Name, 32),
				r.PredictedCount, r.GoldenCount,
				r.Overall.TP, r.Overall.FP, r.Overall.FN,
				accuracy))
		}
		b.WriteString("\n")
	}

	writeExclusions(&b, s)
	return b.String()
}

func writeExclusions(b *strings.Builder, s *Summary) {
	if len(s.Skipped) == 0 && len(s.Failed) == 0 {
		return
	}
	b.WriteString("--- Excluded Documents ---\n")
	for _, sk := range s.Skipped {
		b.WriteString(fmt.Sprintf("%s %-32s %s: %s\n",
			format.BoolMark(false), format.Truncate(sk.Name, 32),
			display.Status("skipped"), sk.Reason))
	}
	for _, f := range s.Failed {
		b.WriteString(fmt.Sprintf("%s %-32s %s: %s\n",
			format.BoolMark(false), format.Truncate(f.Name, 32),
			display.Status("failed"), f.Reason))
	}
}
