package presence

import "sort"

// ChainedGrouper implements greedy sequential grouping: distances are
// sorted ascending and each candidate joins the current group when it lies
// within the tolerance of the immediately preceding absorbed element, not
// the group's first member. A chain of close neighbours can therefore span
// more than one tolerance end to end; that is the intended behaviour.
type ChainedGrouper struct {
	params GrouperParams
}

// NewChainedGrouper creates a chained-threshold grouper with the given
// parameters.
func NewChainedGrouper(params GrouperParams) *ChainedGrouper {
	return &ChainedGrouper{params: params}
}

// NewDefaultChainedGrouper creates a chained-threshold grouper with default
// parameters.
func NewDefaultChainedGrouper() *ChainedGrouper {
	return NewChainedGrouper(DefaultGrouperParams())
}

func (g *ChainedGrouper) Name() string { return GrouperChained }

// Params returns the current grouping parameters.
func (g *ChainedGrouper) Params() GrouperParams { return g.params }

// SetParams updates the grouping parameters.
func (g *ChainedGrouper) SetParams(params GrouperParams) { g.params = params }

// Group clusters distances by chained proximity. Empty input yields zero
// groups.
func (g *ChainedGrouper) Group(distances []float64) GroupResult {
	if len(distances) == 0 {
		return GroupResult{}
	}

	sorted := make([]float64, len(distances))
	copy(sorted, distances)
	sort.Float64s(sorted)

	var groups [][]float64
	current := []float64{sorted[0]}
	for _, d := range sorted[1:] {
		// compare against the last absorbed element, not the group head
		if d-current[len(current)-1] <= g.params.ToleranceMetres {
			current = append(current, d)
			continue
		}
		groups = append(groups, current)
		current = []float64{d}
	}
	groups = append(groups, current)

	return GroupResult{People: len(groups), Groups: groups}
}

// Verify at compile time that *ChainedGrouper implements Grouper.
var _ Grouper = (*ChainedGrouper)(nil)
