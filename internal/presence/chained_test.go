package presence

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestChainedGrouper_ChainHolds(t *testing.T) {
	g := NewChainedGrouper(GrouperParams{ToleranceMetres: 0.2})

	// first and last differ by 0.3 but every step is within tolerance
	got := g.Group([]float64{1.0, 1.1, 1.3})
	if got.People != 1 {
		t.Errorf("expected 1 group from a continuous chain, got %d", got.People)
	}
	want := [][]float64{{1.0, 1.1, 1.3}}
	if diff := cmp.Diff(want, got.Groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestChainedGrouper_BreaksOnGap(t *testing.T) {
	g := NewChainedGrouper(GrouperParams{ToleranceMetres: 0.2})

	got := g.Group([]float64{1.0, 5.0})
	if got.People != 2 {
		t.Errorf("expected 2 groups across a 4 m gap, got %d", got.People)
	}
}

func TestChainedGrouper_EmptyInput(t *testing.T) {
	g := NewDefaultChainedGrouper()
	got := g.Group(nil)
	if got.People != 0 || got.Groups != nil {
		t.Errorf("expected zero result for empty input, got %+v", got)
	}
}

func TestChainedGrouper_UnsortedInput(t *testing.T) {
	g := NewChainedGrouper(GrouperParams{ToleranceMetres: 0.2})

	in := []float64{1.3, 5.0, 1.0, 1.1}
	got := g.Group(in)
	if got.People != 2 {
		t.Errorf("expected 2 groups, got %d", got.People)
	}
	// the input slice must not be reordered
	if diff := cmp.Diff([]float64{1.3, 5.0, 1.0, 1.1}, in); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}

func TestChainedGrouper_SetParams(t *testing.T) {
	g := NewDefaultChainedGrouper()
	g.SetParams(GrouperParams{ToleranceMetres: 5})

	if got := g.Group([]float64{1.0, 5.0}); got.People != 1 {
		t.Errorf("expected 1 group with widened tolerance, got %d", got.People)
	}
}
