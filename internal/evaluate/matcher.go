package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"envjudge/internal/logging"
	"envjudge/internal/similarity"
)

// Matcher pairs predicted errors with golden errors for one document.
//
// It builds the complete bipartite score matrix under the weighted formula,
// then selects the one-to-one assignment that maximizes the total accepted
// score. Only pairs whose combined score strictly exceeds the threshold are
// accepted; everything else lands in the unmatched residues. The assignment
// is solved exactly (Hungarian method with fixed iteration order), so the
// result is optimal and reproducible — a greedy first-fit scan would make
// the outcome depend on input order.
type Matcher struct {
	scorer    similarity.Scorer
	weights   Weights
	threshold float64
	logger    *slog.Logger
}

// MatcherOption customizes a Matcher.
type MatcherOption func(*Matcher)

// WithWeights overrides the default 0.6/0.3/0.1 weight split.
func WithWeights(w Weights) MatcherOption {
	return func(m *Matcher) { m.weights = w }
}

// WithThreshold overrides the default 0.5 acceptance threshold.
func WithThreshold(t float64) MatcherOption {
	return func(m *Matcher) { m.threshold = t }
}

// NewMatcher builds a Matcher around a similarity scorer.
func NewMatcher(scorer similarity.Scorer, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		scorer:    scorer,
		weights:   DefaultWeights,
		threshold: DefaultThreshold,
		logger:    logging.New("matcher"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match computes the match result for one document. Empty inputs are valid:
// all golden items become false negatives, all predicted items false
// positives. A transient scorer failure degrades that pair's text scores to
// 0; an ErrUnavailable failure aborts the document.
func (m *Matcher) Match(ctx context.Context, predicted, golden []ErrorItem) (MatchResult, error) {
	np, ng := len(predicted), len(golden)

	scores, err := m.scoreMatrix(ctx, predicted, golden)
	if err != nil {
		return MatchResult{}, err
	}

	// Acceptance weights: edges at or below the threshold carry weight 0,
	// which the assignment treats the same as leaving the item unmatched.
	// Maximizing total weight therefore maximizes total accepted score.
	weights := make([][]float64, np)
	for i := 0; i < np; i++ {
		weights[i] = make([]float64, ng)
		for j := 0; j < ng; j++ {
			if scores[i][j].Combined > m.threshold {
				weights[i][j] = scores[i][j].Combined
			}
		}
	}

	assignment := maxWeightAssignment(weights)

	result := MatchResult{}
	goldenUsed := make([]bool, ng)
	for i := 0; i < np; i++ {
		j := assignment[i]
		if j >= 0 && weights[i][j] > 0 {
			result.Pairs = append(result.Pairs, MatchedPair{
				Predicted: i,
				Golden:    j,
				Scores:    scores[i][j],
			})
			goldenUsed[j] = true
		} else {
			result.UnmatchedPredicted = append(result.UnmatchedPredicted, i)
		}
	}
	for j := 0; j < ng; j++ {
		if !goldenUsed[j] {
			result.UnmatchedGolden = append(result.UnmatchedGolden, j)
		}
	}

	if err := result.CheckPartition(np, ng); err != nil {
		return MatchResult{}, err
	}
	return result, nil
}

// scoreMatrix fills the np x ng matrix of MatchCandidates. Both text
// similarity calls happen per pair; a per-pair collaborator failure is
// treated as score 0 so one bad call never blocks the whole matrix.
func (m *Matcher) scoreMatrix(ctx context.Context, predicted, golden []ErrorItem) ([][]MatchCandidate, error) {
	matrix := make([][]MatchCandidate, len(predicted))
	for i, p := range predicted {
		matrix[i] = make([]MatchCandidate, len(golden))
		for j, g := range golden {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cand := MatchCandidate{}
			if p.Category == g.Category {
				cand.CategoryScore = 1
			}

			var err error
			cand.DescriptionScore, err = m.scorePair(ctx, p.Description, g.Description, similarity.KindDescription, i, j)
			if err != nil {
				return nil, err
			}
			cand.FixScore, err = m.scorePair(ctx, p.Fix, g.Fix, similarity.KindFix, i, j)
			if err != nil {
				return nil, err
			}

			cand.Combined = m.weights.Combine(cand.CategoryScore, cand.DescriptionScore, cand.FixScore)
			matrix[i][j] = cand
		}
	}
	return matrix, nil
}

func (m *Matcher) scorePair(ctx context.Context, a, b string, kind similarity.Kind, i, j int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	score, err := m.scorer.Score(ctx, a, b, kind)
	if err == nil {
		if score < 0 || score > 1 {
			return 0, fmt.Errorf("scorer %s returned %v outside [0,1]", m.scorer.Name(), score)
		}
		return score, nil
	}
	if errors.Is(err, similarity.ErrUnavailable) {
		return 0, err
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	// Transient: this pair is treated as dissimilar, matching continues.
	m.logger.Warn("pair similarity degraded to 0",
		"kind", kind.String(), "predicted", i, "golden", j, "error", err)
	return 0, nil
}

// maxWeightAssignment solves the assignment problem on a rows x cols weight
// matrix (weights >= 0), maximizing total weight. Returns, per row, the
// assigned column or -1. Hungarian method on a square-padded cost matrix;
// all loops scan ascending indices, so equal-total solutions resolve toward
// the lowest predicted index, then the lowest golden index.
func maxWeightAssignment(w [][]float64) []int {
	rows := len(w)
	if rows == 0 {
		return nil
	}
	cols := len(w[0])
	out := make([]int, rows)
	for i := range out {
		out[i] = -1
	}
	if cols == 0 {
		return out
	}

	dim := rows
	if cols > dim {
		dim = cols
	}

	// cost[i][j] = -weight for real cells, 0 for padding (1-based).
	cost := func(i, j int) float64 {
		if i <= rows && j <= cols {
			return -w[i-1][j-1]
		}
		return 0
	}

	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	matchedRow := make([]int, dim+1) // column -> row, 0 = free
	way := make([]int, dim+1)

	for i := 1; i <= dim; i++ {
		matchedRow[0] = i
		j0 := 0
		minv := make([]float64, dim+1)
		used := make([]bool, dim+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := matchedRow[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0, j) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[matchedRow[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if matchedRow[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			matchedRow[j0] = matchedRow[j1]
			j0 = j1
		}
	}

	for j := 1; j <= dim; j++ {
		i := matchedRow[j]
		if i >= 1 && i <= rows && j <= cols {
			out[i-1] = j - 1
		}
	}
	return out
}
