package presence

import "sort"

// DBSCANGrouper implements density-reachability grouping over device
// distances treated as points on a line. Unlike the chained strategy a
// sparse outlier is labelled noise instead of forcing a merge with distant
// neighbours. A non-empty cycle that resolves to all noise is floored to
// one person: somebody is in the room even if nothing clusters.
type DBSCANGrouper struct {
	params GrouperParams
}

// NewDBSCANGrouper creates a density-based grouper with the given
// parameters.
func NewDBSCANGrouper(params GrouperParams) *DBSCANGrouper {
	return &DBSCANGrouper{params: params}
}

// NewDefaultDBSCANGrouper creates a density-based grouper with default
// parameters.
func NewDefaultDBSCANGrouper() *DBSCANGrouper {
	return NewDBSCANGrouper(DefaultGrouperParams())
}

func (g *DBSCANGrouper) Name() string { return GrouperDBSCAN }

// Params returns the current grouping parameters.
func (g *DBSCANGrouper) Params() GrouperParams { return g.params }

// SetParams updates the grouping parameters.
func (g *DBSCANGrouper) SetParams(params GrouperParams) { g.params = params }

// Group runs DBSCAN over the distances. Labels: 0=unvisited, -1=noise,
// >0=cluster ID. The neighbourhood of a point includes the point itself,
// so MinSamples=1 makes every point a core point and noise only appears
// for MinSamples >= 2. Output is deterministic: input is sorted before
// labelling so cluster order follows distance order.
func (g *DBSCANGrouper) Group(distances []float64) GroupResult {
	if len(distances) == 0 {
		return GroupResult{}
	}

	sorted := make([]float64, len(distances))
	copy(sorted, distances)
	sort.Float64s(sorted)

	n := len(sorted)
	labels := make([]int, n)
	clusterID := 0

	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue // already processed
		}

		neighbors := regionQuery(sorted, i, g.params.EpsMetres)
		if len(neighbors) < g.params.MinSamples {
			labels[i] = -1 // mark as noise
			continue
		}

		clusterID++
		expandCluster(sorted, labels, i, neighbors, clusterID, g.params.EpsMetres, g.params.MinSamples)
	}

	result := buildGroups(sorted, labels, clusterID)

	// Devices were observed but nothing clustered: assume at least one
	// person present rather than reporting an empty room.
	if result.People == 0 {
		result.People = 1
	}

	return result
}

// regionQuery returns indices of all points within eps of points[idx],
// including idx itself. The input is sorted, so the scan can stop at the
// first neighbour beyond eps on each side.
func regionQuery(points []float64, idx int, eps float64) []int {
	neighbors := []int{}
	for i := idx; i >= 0 && points[idx]-points[i] <= eps; i-- {
		neighbors = append(neighbors, i)
	}
	for i := idx + 1; i < len(points) && points[i]-points[idx] <= eps; i++ {
		neighbors = append(neighbors, i)
	}
	return neighbors
}

// expandCluster grows a cluster outwards from a core point using a
// queue of density-reachable neighbours.
func expandCluster(points []float64, labels []int, seedIdx int, neighbors []int, clusterID int, eps float64, minSamples int) {
	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if labels[idx] == -1 {
			labels[idx] = clusterID // noise becomes a border point
		}

		if labels[idx] != 0 {
			continue // already processed
		}

		labels[idx] = clusterID
		newNeighbors := regionQuery(points, idx, eps)

		if len(newNeighbors) >= minSamples {
			// core point: its neighbourhood joins the expansion queue
			neighbors = append(neighbors, newNeighbors...)
		}
	}
}

// buildGroups assembles the GroupResult from the label array.
func buildGroups(points []float64, labels []int, maxClusterID int) GroupResult {
	groups := make([][]float64, 0, maxClusterID)
	for cid := 1; cid <= maxClusterID; cid++ {
		var group []float64
		for i, label := range labels {
			if label == cid {
				group = append(group, points[i])
			}
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}

	var noise []float64
	for i, label := range labels {
		if label == -1 {
			noise = append(noise, points[i])
		}
	}

	return GroupResult{People: len(groups), Groups: groups, Noise: noise}
}

// Verify at compile time that *DBSCANGrouper implements Grouper.
var _ Grouper = (*DBSCANGrouper)(nil)
