// Package similarity defines the text-similarity collaborator used by the
// error matcher, plus its LLM-backed and lexical implementations.
package similarity

import (
	"context"
	"errors"
)

// Kind selects the comparison framing: error descriptions and fix
// proposals are judged under different instructions.
type Kind int

const (
	KindDescription Kind = iota
	KindFix
)

func (k Kind) String() string {
	if k == KindFix {
		return "fix"
	}
	return "description"
}

// ErrUnavailable marks the scorer as persistently unusable (bad credentials,
// sustained outage). Callers abandon the current document instead of
// degrading pair scores to 0.
var ErrUnavailable = errors.New("similarity scorer unavailable")

// Scorer judges how similar two text fragments are, returning a value in
// [0,1]. A transient error means the single pair could not be scored; the
// caller treats it as dissimilar. An error wrapping ErrUnavailable means
// further calls are pointless.
type Scorer interface {
	Score(ctx context.Context, a, b string, kind Kind) (float64, error)
	Name() string
}

// clamp bounds v to [0,1]. Collaborator outputs are untrusted.
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
