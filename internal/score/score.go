// Package score measures how well a candidate rank vector reproduces the
// top-k vertices of a golden one.
package score

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// TopK returns the indices of the k largest values, largest first. Equal
// values are ordered by index. k is clamped to len(v). NaN sorts last.
func TopK(v []float64, k int) []int {
	k = min(max(k, 0), len(v))
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int {
		if c := cmp.Compare(v[b], v[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return idx[:k:k]
}

func check(candidate, golden []float64, k int) error {
	switch {
	case len(candidate) != len(golden):
		return fmt.Errorf("%w: candidate %d, golden %d", ErrLengthMismatch, len(candidate), len(golden))
	case len(golden) == 0:
		return ErrEmpty
	case k < 1:
		return fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	return nil
}

// Score returns |TopK(candidate) ∩ TopK(golden)| / min(k, V). Order within
// the top k does not matter.
func Score(candidate, golden []float64, k int) (float64, error) {
	if err := check(candidate, golden, k); err != nil {
		return 0, err
	}
	k = min(k, len(golden))
	want := make(map[int]struct{}, k)
	for _, v := range TopK(golden, k) {
		want[v] = struct{}{}
	}
	var hits int
	for _, v := range TopK(candidate, k) {
		if _, ok := want[v]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k), nil
}

// RankComparison is one row of a diagnostic top-k comparison.
type RankComparison struct {
	Rank           int // 0-based position in the top k
	Candidate      int // vertex at this position in the candidate
	Golden         int // vertex at this position in the golden vector
	CandidateValue float64
	GoldenValue    float64
	VertexMatch    bool
	ValueMatch     bool // |CandidateValue − GoldenValue| ≤ tol
}

// Compare lines up the top k of both vectors position by position.
func Compare(candidate, golden []float64, k int, tol float64) ([]RankComparison, error) {
	if err := check(candidate, golden, k); err != nil {
		return nil, err
	}
	ct := TopK(candidate, k)
	gt := TopK(golden, k)
	rows := make([]RankComparison, len(gt))
	for i := range gt {
		cv, gv := candidate[ct[i]], golden[gt[i]]
		rows[i] = RankComparison{
			Rank:           i,
			Candidate:      ct[i],
			Golden:         gt[i],
			CandidateValue: cv,
			GoldenValue:    gv,
			VertexMatch:    ct[i] == gt[i],
			ValueMatch:     math.Abs(cv-gv) <= tol,
		}
	}
	return rows, nil
}

// Check returns a *MismatchError when score is below bound.
func Check(score, bound float64) error {
	if score < bound {
		return &MismatchError{Score: score, Bound: bound}
	}
	return nil
}
