package similarity

import (
	"context"
	"strings"
)

// LexicalScorer is a deterministic offline scorer based on token overlap
// (Jaccard over lower-cased word sets). It never fails and needs no
// network, which makes it the default for smoke runs and tests.
type LexicalScorer struct{}

func (LexicalScorer) Name() string { return "lexical" }

// Score implements Scorer. Two empty texts count as identical.
func (LexicalScorer) Score(_ context.Context, a, b string, _ Kind) (float64, error) {
	ta := tokens(a)
	tb := tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1, nil
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0, nil
	}
	inter := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return clamp(float64(inter) / float64(union)), nil
}

func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		set[w] = struct{}{}
	}
	return set
}
