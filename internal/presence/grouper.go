package presence

import "fmt"

// Grouper names accepted by NewGrouper and the tuning config.
const (
	GrouperChained = "chained"
	GrouperDBSCAN  = "dbscan"
)

// Default grouping parameters, taken from field calibration against phone
// class transmitters roughly a metre apart.
const (
	DefaultChainToleranceMetres = 0.2
	DefaultDBSCANEpsMetres      = 0.1
	DefaultDBSCANMinSamples     = 1
)

// GrouperParams holds grouping algorithm parameters. The fields are
// intentionally generic so strategies can be swapped at runtime without
// the caller knowing which one is active.
type GrouperParams struct {
	ToleranceMetres float64 // chain tolerance between neighbouring distances
	EpsMetres       float64 // DBSCAN neighbourhood radius
	MinSamples      int     // DBSCAN minimum neighbourhood size (self included)
}

// DefaultGrouperParams returns defaults usable by either strategy.
func DefaultGrouperParams() GrouperParams {
	return GrouperParams{
		ToleranceMetres: DefaultChainToleranceMetres,
		EpsMetres:       DefaultDBSCANEpsMetres,
		MinSamples:      DefaultDBSCANMinSamples,
	}
}

// GroupResult is the outcome of grouping one cycle's distance estimates.
type GroupResult struct {
	// People is the number of distinct people the grouping implies.
	People int
	// Groups holds the grouped distances, each group and the groups
	// themselves in ascending order.
	Groups [][]float64
	// Noise holds distances the strategy rejected as unreachable from any
	// group. Always empty for the chained strategy.
	Noise []float64
}

// Grouper abstracts the strategy that merges device distances into people.
// Implementations must be pure: identical input yields identical output,
// and the input slice is never mutated.
type Grouper interface {
	// Group clusters the given distances. Empty input yields a zero result.
	Group(distances []float64) GroupResult

	// Name returns the strategy name as accepted by NewGrouper.
	Name() string

	// Params returns the current grouping parameters.
	Params() GrouperParams

	// SetParams updates the grouping parameters. This allows runtime
	// tuning without rebuilding the pipeline.
	SetParams(params GrouperParams)
}

// NewGrouper constructs the named grouping strategy. The pipeline holds
// the returned value and never branches on which strategy it got.
func NewGrouper(name string, params GrouperParams) (Grouper, error) {
	switch name {
	case GrouperChained:
		return NewChainedGrouper(params), nil
	case GrouperDBSCAN:
		return NewDBSCANGrouper(params), nil
	default:
		return nil, fmt.Errorf("unknown grouper %q: expected %q or %q", name, GrouperChained, GrouperDBSCAN)
	}
}
