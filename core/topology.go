package core

// Node is one cube-shaped subdomain of the lattice. Neighbors are stored as
// linear node indices; -1 means the face lies on the domain wall.
type Node struct {
	Coord     Coord
	Index     int
	neighbors [NumDirections]int
}

// Neighbor returns the index of the node across face d, if any
func (n *Node) Neighbor(d Direction) (int, bool) {
	idx := n.neighbors[d]
	return idx, idx >= 0
}

// NeighborCount returns how many faces of the node are seams
func (n *Node) NeighborCount() int {
	count := 0
	for _, idx := range n.neighbors {
		if idx >= 0 {
			count++
		}
	}
	return count
}

// Topology is the immutable NodesPerAxis³ lattice of nodes
type Topology struct {
	NodesPerAxis int
	Nodes        []Node
}

// NewTopology builds an n×n×n lattice with face links between adjacent nodes.
func NewTopology(n int) (*Topology, error) {
	if n <= 0 {
		return nil, &TopologyError{NodesPerAxis: n}
	}

	t := &Topology{
		NodesPerAxis: n,
		Nodes:        make([]Node, n*n*n),
	}
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				idx := Linearize(i, j, k, n)
				node := &t.Nodes[idx]
				node.Coord = Coord{i, j, k}
				node.Index = idx
				for _, d := range Directions {
					c := node.Coord.Add(d)
					if InRange(c, n) {
						node.neighbors[d] = Linearize(c.I, c.J, c.K, n)
					} else {
						node.neighbors[d] = -1
					}
				}
			}
		}
	}
	return t, nil
}

// NumNodes returns NodesPerAxis³
func (t *Topology) NumNodes() int {
	return len(t.Nodes)
}

// Node returns the node at linear index idx
func (t *Topology) Node(idx int) *Node {
	return &t.Nodes[idx]
}

// Lookup returns the node at coordinate c, or false when c lies outside
// the lattice.
func (t *Topology) Lookup(c Coord) (*Node, bool) {
	if !InRange(c, t.NodesPerAxis) {
		return nil, false
	}
	return &t.Nodes[Linearize(c.I, c.J, c.K, t.NodesPerAxis)], true
}
