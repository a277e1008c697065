package core

import (
	"errors"
	"testing"
)

func TestNewTopologyRejectsEmptyLattice(t *testing.T) {
	for _, n := range []int{0, -1, -8} {
		_, err := NewTopology(n)
		var topoErr *TopologyError
		if !errors.As(err, &topoErr) {
			t.Fatalf("NewTopology(%d) error = %v, want *TopologyError", n, err)
		}
		if topoErr.NodesPerAxis != n {
			t.Errorf("NodesPerAxis = %d, want %d", topoErr.NodesPerAxis, n)
		}
	}
}

// TestTopologySymmetry checks that every link has a matching back link
func TestTopologySymmetry(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4} {
		topo, err := NewTopology(n)
		if err != nil {
			t.Fatalf("NewTopology(%d): %v", n, err)
		}
		if topo.NumNodes() != n*n*n {
			t.Fatalf("n=%d: %d nodes, want %d", n, topo.NumNodes(), n*n*n)
		}
		for idx := range topo.Nodes {
			node := topo.Node(idx)
			for _, d := range Directions {
				other, ok := node.Neighbor(d)
				if !ok {
					continue
				}
				back, ok := topo.Node(other).Neighbor(d.Opposite())
				if !ok || back != idx {
					t.Errorf("n=%d node %s: %s -> %d has no matching %s link",
						n, node.Coord, d, other, d.Opposite())
				}
			}
		}
	}
}

func TestTopologyLinks(t *testing.T) {
	topo, err := NewTopology(2)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		coord Coord
		dir   Direction
		want  int
		ok    bool
	}{
		{"origin left is wall", Coord{0, 0, 0}, Left, -1, false},
		{"origin right", Coord{0, 0, 0}, Right, 1, true},
		{"origin up", Coord{0, 0, 0}, Up, 2, true},
		{"origin front", Coord{0, 0, 0}, Front, 4, true},
		{"origin down is wall", Coord{0, 0, 0}, Down, -1, false},
		{"far corner back", Coord{1, 1, 1}, Back, 3, true},
		{"far corner right is wall", Coord{1, 1, 1}, Right, -1, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			node, ok := topo.Lookup(tc.coord)
			if !ok {
				t.Fatalf("Lookup(%s) failed", tc.coord)
			}
			got, ok := node.Neighbor(tc.dir)
			if ok != tc.ok || (ok && got != tc.want) {
				t.Errorf("Neighbor(%s) = %d,%v want %d,%v", tc.dir, got, ok, tc.want, tc.ok)
			}
		})
	}

	if _, ok := topo.Lookup(Coord{2, 0, 0}); ok {
		t.Error("Lookup outside the lattice should fail")
	}
}

func TestSingleNodeHasNoNeighbors(t *testing.T) {
	topo, err := NewTopology(1)
	if err != nil {
		t.Fatal(err)
	}
	if c := topo.Node(0).NeighborCount(); c != 0 {
		t.Errorf("NeighborCount = %d, want 0", c)
	}
}

func TestDirectionOpposite(t *testing.T) {
	for _, d := range Directions {
		if d.Opposite().Opposite() != d {
			t.Errorf("%s opposite is not an involution", d)
		}
		if d.Opposite().Axis() != d.Axis() {
			t.Errorf("%s and its opposite lie on different axes", d)
		}
		if d.Opposite().Positive() == d.Positive() {
			t.Errorf("%s and its opposite point the same way", d)
		}
	}
}
