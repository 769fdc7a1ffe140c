package evaluate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"envjudge/internal/similarity"

	"github.com/google/go-cmp/cmp"
)

// stubScorer scripts similarity results for tests.
type stubScorer struct {
	name string
	fn   func(a, b string, kind similarity.Kind) (float64, error)
}

func (s stubScorer) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s stubScorer) Score(_ context.Context, a, b string, kind similarity.Kind) (float64, error) {
	return s.fn(a, b, kind)
}

// exactScorer returns 1 for identical texts, 0 otherwise.
var exactScorer = stubScorer{fn: func(a, b string, _ similarity.Kind) (float64, error) {
	if a == b {
		return 1, nil
	}
	return 0, nil
}}

// tableScorer returns scripted description scores keyed by "a|b"; fix
// scores are always 0 so combined = 0.6*cat + 0.3*table[a|b].
func tableScorer(desc map[string]float64) stubScorer {
	return stubScorer{fn: func(a, b string, kind similarity.Kind) (float64, error) {
		if kind == similarity.KindFix {
			return 0, nil
		}
		return desc[a+"|"+b], nil
	}}
}

func item(cat Category, desc string) ErrorItem {
	return ErrorItem{Category: cat, Description: desc, Fix: "fix " + desc}
}

func TestMatch_PerfectMatch(t *testing.T) {
	items := []ErrorItem{
		item(CategoryDependency, "missing numpy"),
		item(CategoryOrdering, "install before build"),
		item(CategoryVersion, "python 2 vs 3"),
	}
	m := NewMatcher(exactScorer)
	got, err := m.Match(context.Background(), items, items)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got.Pairs) != 3 || len(got.UnmatchedPredicted) != 0 || len(got.UnmatchedGolden) != 0 {
		t.Fatalf("want 3 pairs and no residue, got %+v", got)
	}
	for _, p := range got.Pairs {
		if p.Predicted != p.Golden {
			t.Errorf("identical lists should match diagonally, got %d->%d", p.Predicted, p.Golden)
		}
		if math.Abs(p.Scores.Combined-1.0) > 1e-9 {
			t.Errorf("pair %d combined = %f, want 1.0", p.Predicted, p.Scores.Combined)
		}
	}
}

func TestMatch_EmptyInputs(t *testing.T) {
	m := NewMatcher(exactScorer)
	golden := []ErrorItem{item(CategoryDependency, "a"), item(CategorySyntax, "b")}
	predicted := []ErrorItem{item(CategoryOther, "c")}

	tests := []struct {
		name               string
		predicted, golden  []ErrorItem
		wantFP, wantFN     int
	}{
		{"empty predicted", nil, golden, 0, 2},
		{"empty golden", predicted, nil, 1, 0},
		{"both empty", nil, nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(context.Background(), tt.predicted, tt.golden)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if len(got.Pairs) != 0 {
				t.Errorf("want no pairs, got %d", len(got.Pairs))
			}
			if len(got.UnmatchedPredicted) != tt.wantFP {
				t.Errorf("unmatched predicted = %d, want %d", len(got.UnmatchedPredicted), tt.wantFP)
			}
			if len(got.UnmatchedGolden) != tt.wantFN {
				t.Errorf("unmatched golden = %d, want %d", len(got.UnmatchedGolden), tt.wantFN)
			}
		})
	}
}

// A category mismatch caps the combined score at 0.4 under default weights,
// so even a near-identical description cannot produce a match.
func TestMatch_CategoryMismatchBlocksMatch(t *testing.T) {
	predicted := []ErrorItem{{Category: CategoryDependency, Description: "missing numpy", Fix: "pip install numpy"}}
	golden := []ErrorItem{{Category: CategorySyntax, Description: "missing numpy", Fix: "pip install numpy"}}

	m := NewMatcher(stubScorer{fn: func(a, b string, _ similarity.Kind) (float64, error) {
		return 1, nil // maximally similar text
	}})
	got, err := m.Match(context.Background(), predicted, golden)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got.Pairs) != 0 {
		t.Fatalf("cross-category pair must not match, got %+v", got.Pairs)
	}
	want := MatchResult{UnmatchedPredicted: []int{0}, UnmatchedGolden: []int{0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("residue mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch_ThresholdIsStrict(t *testing.T) {
	predicted := []ErrorItem{item(CategoryDependency, "x")}
	golden := []ErrorItem{item(CategoryDependency, "y")}

	zero := stubScorer{fn: func(string, string, similarity.Kind) (float64, error) { return 0, nil }}

	// Category equality alone gives combined = 0.6.
	m := NewMatcher(zero, WithThreshold(0.6))
	got, err := m.Match(context.Background(), predicted, golden)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got.Pairs) != 0 {
		t.Error("combined == threshold must be rejected (strict >)")
	}

	m = NewMatcher(zero, WithThreshold(0.59))
	got, err = m.Match(context.Background(), predicted, golden)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got.Pairs) != 1 {
		t.Error("combined > threshold must be accepted")
	}
}

func TestMatch_ScoreBounds(t *testing.T) {
	predicted := []ErrorItem{item(CategoryDependency, "p0"), item(CategorySyntax, "p1")}
	golden := []ErrorItem{item(CategoryDependency, "g0"), item(CategoryOther, "g1")}

	m := NewMatcher(stubScorer{fn: func(a, b string, _ similarity.Kind) (float64, error) {
		return 0.73, nil
	}})
	got, err := m.Match(context.Background(), predicted, golden)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	for _, p := range got.Pairs {
		if p.Scores.Combined < 0 || p.Scores.Combined > 1 {
			t.Errorf("combined score %f out of [0,1]", p.Scores.Combined)
		}
		if p.Scores.Combined <= DefaultThreshold {
			t.Errorf("accepted pair with combined %f <= %v", p.Scores.Combined, DefaultThreshold)
		}
	}
}

func TestMatch_ScorerOutOfRangeIsError(t *testing.T) {
	m := NewMatcher(stubScorer{fn: func(string, string, similarity.Kind) (float64, error) {
		return 1.7, nil
	}})
	_, err := m.Match(context.Background(),
		[]ErrorItem{item(CategoryDependency, "a")},
		[]ErrorItem{item(CategoryDependency, "a")})
	if err == nil {
		t.Fatal("want error for out-of-range scorer output")
	}
}

// Optimal assignment: a greedy scan lets p0 grab g0 (0.9) and leaves p1
// with g1 (0.6), total 1.5. The optimal assignment pairs p0->g1 (0.84)
// and p1->g0 (0.9), total 1.74.
func TestMatch_OptimalBeatsGreedy(t *testing.T) {
	predicted := []ErrorItem{item(CategoryDependency, "p0"), item(CategoryDependency, "p1")}
	golden := []ErrorItem{item(CategoryDependency, "g0"), item(CategoryDependency, "g1")}

	m := NewMatcher(tableScorer(map[string]float64{
		"p0|g0": 1.0, // combined 0.9
		"p0|g1": 0.8, // combined 0.84
		"p1|g0": 1.0, // combined 0.9
		"p1|g1": 0.0, // combined 0.6 — above threshold but worst
	}))
	got, err := m.Match(context.Background(), predicted, golden)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	assigned := map[int]int{}
	for _, p := range got.Pairs {
		assigned[p.Predicted] = p.Golden
	}
	want := map[int]int{0: 1, 1: 0}
	if diff := cmp.Diff(want, assigned); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}

// Two golden items with identical content: the tie resolves to the lowest
// golden index for the lowest predicted index, every run.
func TestMatch_DeterministicTieBreak(t *testing.T) {
	predicted := []ErrorItem{item(CategoryDependency, "dup"), item(CategoryDependency, "dup")}
	golden := []ErrorItem{item(CategoryDependency, "dup"), item(CategoryDependency, "dup")}

	m := NewMatcher(exactScorer)
	var first MatchResult
	for run := 0; run < 20; run++ {
		got, err := m.Match(context.Background(), predicted, golden)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if run == 0 {
			first = got
			assigned := map[int]int{}
			for _, p := range got.Pairs {
				assigned[p.Predicted] = p.Golden
			}
			if diff := cmp.Diff(map[int]int{0: 0, 1: 1}, assigned); diff != "" {
				t.Fatalf("tie-break mismatch (-want +got):\n%s", diff)
			}
			continue
		}
		if diff := cmp.Diff(first, got); diff != "" {
			t.Fatalf("run %d differs from run 0 (-first +got):\n%s", run, diff)
		}
	}
}

// One scorer failure in a 5-pair matrix degrades that pair to 0 and leaves
// the rest of the matching untouched.
func TestMatch_SingleCollaboratorFailure(t *testing.T) {
	predicted := make([]ErrorItem, 5)
	golden := make([]ErrorItem, 5)
	for i := 0; i < 5; i++ {
		predicted[i] = item(CategoryDependency, fmt.Sprintf("err-%d", i))
		golden[i] = item(CategoryDependency, fmt.Sprintf("err-%d", i))
	}

	m := NewMatcher(stubScorer{fn: func(a, b string, _ similarity.Kind) (float64, error) {
		if strings.Contains(a, "err-2") && strings.Contains(b, "err-2") {
			return 0, fmt.Errorf("transient: connection reset")
		}
		if a == b {
			return 1, nil
		}
		return 0, nil
	}})
	got, err := m.Match(context.Background(), predicted, golden)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	// err-2 still matches on category alone (0.6 > 0.5); the other four
	// match at full score.
	if len(got.Pairs) != 5 {
		t.Fatalf("want 5 pairs, got %d", len(got.Pairs))
	}
	for _, p := range got.Pairs {
		if p.Predicted == 2 {
			if p.Scores.DescriptionScore != 0 || p.Scores.FixScore != 0 {
				t.Errorf("failed pair text scores = %v/%v, want 0/0",
					p.Scores.DescriptionScore, p.Scores.FixScore)
			}
			continue
		}
		if math.Abs(p.Scores.Combined-1.0) > 1e-9 {
			t.Errorf("pair %d combined = %f, want 1.0", p.Predicted, p.Scores.Combined)
		}
	}
}

func TestMatch_UnavailableScorerAborts(t *testing.T) {
	m := NewMatcher(stubScorer{fn: func(string, string, similarity.Kind) (float64, error) {
		return 0, fmt.Errorf("%w: outage", similarity.ErrUnavailable)
	}})
	_, err := m.Match(context.Background(),
		[]ErrorItem{item(CategoryDependency, "a")},
		[]ErrorItem{item(CategoryDependency, "b")})
	if err == nil {
		t.Fatal("want error when scorer is unavailable")
	}
}

func TestMatch_PartitionInvariant(t *testing.T) {
	shapes := []struct {
		name     string
		np, ng   int
		simScore float64
	}{
		{"square all similar", 4, 4, 1.0},
		{"more predicted", 6, 3, 0.9},
		{"more golden", 2, 7, 0.9},
		{"nothing similar", 3, 3, 0.0},
	}
	for _, tt := range shapes {
		t.Run(tt.name, func(t *testing.T) {
			predicted := make([]ErrorItem, tt.np)
			golden := make([]ErrorItem, tt.ng)
			for i := range predicted {
				predicted[i] = item(Categories[i%len(Categories)], fmt.Sprintf("p%d", i))
			}
			for j := range golden {
				golden[j] = item(Categories[j%len(Categories)], fmt.Sprintf("g%d", j))
			}
			m := NewMatcher(stubScorer{fn: func(string, string, similarity.Kind) (float64, error) {
				return tt.simScore, nil
			}})
			got, err := m.Match(context.Background(), predicted, golden)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if err := got.CheckPartition(tt.np, tt.ng); err != nil {
				t.Errorf("partition invariant: %v", err)
			}
		})
	}
}

func TestCheckPartition_Violations(t *testing.T) {
	tests := []struct {
		name   string
		result MatchResult
		np, ng int
	}{
		{
			"predicted index twice",
			MatchResult{
				Pairs:           []MatchedPair{{Predicted: 0, Golden: 0}, {Predicted: 0, Golden: 1}},
				UnmatchedGolden: nil,
			},
			1, 2,
		},
		{
			"golden index omitted",
			MatchResult{Pairs: []MatchedPair{{Predicted: 0, Golden: 0}}},
			1, 2,
		},
		{
			"matched and unmatched overlap",
			MatchResult{
				Pairs:              []MatchedPair{{Predicted: 0, Golden: 0}},
				UnmatchedPredicted: []int{0},
			},
			1, 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.result.CheckPartition(tt.np, tt.ng); err == nil {
				t.Error("want partition violation error")
			}
		})
	}
}

func TestMaxWeightAssignment_Degenerate(t *testing.T) {
	if got := maxWeightAssignment(nil); got != nil {
		t.Errorf("empty matrix: got %v", got)
	}
	got := maxWeightAssignment([][]float64{{}, {}})
	if diff := cmp.Diff([]int{-1, -1}, got); diff != "" {
		t.Errorf("zero columns (-want +got):\n%s", diff)
	}
}
