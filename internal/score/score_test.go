package score

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTopK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    []float64
		k    int
		want []int
	}{
		{"descending", []float64{0.1, 0.4, 0.2, 0.3}, 2, []int{1, 3}},
		{"ties by index", []float64{0.25, 0.25, 0.5, 0.25}, 3, []int{2, 0, 1}},
		{"k past length", []float64{0.3, 0.7}, 10, []int{1, 0}},
		{"k zero", []float64{1}, 0, []int{}},
		{"nan last", []float64{math.NaN(), 0.1, 0.2}, 3, []int{2, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, TopK(tt.v, tt.k)); diff != "" {
				t.Errorf("TopK mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTopK_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	v := []float64{3, 1, 2}
	TopK(v, 2)
	if diff := cmp.Diff([]float64{3, 1, 2}, v); diff != "" {
		t.Errorf("input modified (-want +got):\n%s", diff)
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	golden := []float64{0.4, 0.3, 0.2, 0.1, 0}
	tests := []struct {
		name      string
		candidate []float64
		k         int
		want      float64
	}{
		{"identical", golden, 3, 1},
		{"same set different order", []float64{0.3, 0.4, 0.25, 0, 0.05}, 3, 1},
		{"one of two", []float64{0.4, 0, 0.2, 0.1, 0.3}, 2, 0.5},
		{"disjoint", []float64{0, 0, 0.1, 0.5, 0.4}, 2, 0},
		// k larger than V is clamped to V, so every vertex is in both sets.
		{"k past V", []float64{0, 0.1, 0.2, 0.3, 0.4}, 50, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Score(tt.candidate, golden, tt.k)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		candidate []float64
		golden    []float64
		k         int
		want      error
	}{
		{"length", []float64{1, 2}, []float64{1}, 1, ErrLengthMismatch},
		{"empty", nil, nil, 1, ErrEmpty},
		{"k zero", []float64{1}, []float64{1}, 0, ErrInvalidK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Score(tt.candidate, tt.golden, tt.k); !errors.Is(err, tt.want) {
				t.Errorf("Score err = %v, want %v", err, tt.want)
			}
			if _, err := Compare(tt.candidate, tt.golden, tt.k, 1e-6); !errors.Is(err, tt.want) {
				t.Errorf("Compare err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	golden := []float64{0.5, 0.3, 0.2}
	candidate := []float64{0.5, 0.2, 0.3000001}
	got, err := Compare(candidate, golden, 5, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	want := []RankComparison{
		{Rank: 0, Candidate: 0, Golden: 0, CandidateValue: 0.5, GoldenValue: 0.5, VertexMatch: true, ValueMatch: true},
		{Rank: 1, Candidate: 2, Golden: 1, CandidateValue: 0.3000001, GoldenValue: 0.3, ValueMatch: true},
		{Rank: 2, Candidate: 1, Golden: 2, CandidateValue: 0.2, GoldenValue: 0.2, ValueMatch: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare mismatch (-want +got):\n%s", diff)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	if err := Check(0.9, 0.9); err != nil {
		t.Errorf("Check at bound: %v", err)
	}
	err := Check(0.7, 0.9)
	var mm *MismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("err = %v, want MismatchError", err)
	}
	if mm.Score != 0.7 || mm.Bound != 0.9 {
		t.Errorf("mismatch = %+v", mm)
	}
	if !errors.Is(err, ErrValidationMismatch) {
		t.Error("MismatchError should wrap ErrValidationMismatch")
	}
	if got, want := err.Error(), "score: top-k accuracy 0.700000 below 0.900000"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
