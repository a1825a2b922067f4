package presence

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDBSCANGrouper_TwoClusters(t *testing.T) {
	g := NewDBSCANGrouper(GrouperParams{EpsMetres: 0.2, MinSamples: 1})

	got := g.Group([]float64{1.0, 1.05, 1.1, 5.0})
	if got.People != 2 {
		t.Errorf("expected 2 clusters, got %d", got.People)
	}
	want := [][]float64{{1.0, 1.05, 1.1}, {5.0}}
	if diff := cmp.Diff(want, got.Groups); diff != "" {
		t.Errorf("clusters mismatch (-want +got):\n%s", diff)
	}
	if len(got.Noise) != 0 {
		t.Errorf("expected no noise with MinSamples=1, got %v", got.Noise)
	}
}

func TestDBSCANGrouper_OutlierIsNoiseNotMerged(t *testing.T) {
	g := NewDBSCANGrouper(GrouperParams{EpsMetres: 0.2, MinSamples: 2})

	// 1.0 and 1.1 support each other; 5.0 is unreachable and must not be
	// chained into a distant group
	got := g.Group([]float64{1.0, 1.1, 5.0})
	if got.People != 1 {
		t.Errorf("expected 1 cluster, got %d", got.People)
	}
	if diff := cmp.Diff([]float64{5.0}, got.Noise); diff != "" {
		t.Errorf("noise mismatch (-want +got):\n%s", diff)
	}
}

func TestDBSCANGrouper_AllNoiseFloorsToOne(t *testing.T) {
	g := NewDBSCANGrouper(GrouperParams{EpsMetres: 0.1, MinSamples: 3})

	got := g.Group([]float64{1.0, 2.0, 3.0})
	if got.People != 1 {
		t.Errorf("expected all-noise input floored to 1 person, got %d", got.People)
	}
	if len(got.Groups) != 0 {
		t.Errorf("expected no clusters, got %v", got.Groups)
	}
}

func TestDBSCANGrouper_EmptyInput(t *testing.T) {
	g := NewDefaultDBSCANGrouper()
	got := g.Group(nil)
	if got.People != 0 {
		t.Errorf("expected 0 people for empty input, got %d", got.People)
	}
}

func TestDBSCANGrouper_Determinism(t *testing.T) {
	g := NewDBSCANGrouper(GrouperParams{EpsMetres: 0.2, MinSamples: 1})
	in := []float64{4.9, 1.1, 1.0, 5.0, 1.05}

	first := g.Group(in)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, g.Group(in)); diff != "" {
			t.Fatalf("run %d differed (-first +got):\n%s", i, diff)
		}
	}
}

func TestDBSCANGrouper_DensityReachableChain(t *testing.T) {
	g := NewDBSCANGrouper(GrouperParams{EpsMetres: 0.15, MinSamples: 2})

	// each point reaches its neighbours, so the whole run is one cluster
	got := g.Group([]float64{1.0, 1.1, 1.2, 1.3})
	if got.People != 1 {
		t.Errorf("expected one transitively connected cluster, got %d", got.People)
	}
}
