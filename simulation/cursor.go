package simulation

import "fluidsim/core"

// Cursor selects the single active node of the lattice
type Cursor struct {
	topo    *core.Topology
	store   *core.Store
	current int
}

func NewCursor(topo *core.Topology, store *core.Store) *Cursor {
	return &Cursor{topo: topo, store: store, current: -1}
}

// Select activates node (i,j,k). The previous node is deactivated first;
// on an out-of-range request nothing stays active.
func (c *Cursor) Select(i, j, k int) error {
	c.Clear()
	node, ok := c.topo.Lookup(core.Coord{I: i, J: j, K: k})
	if !ok {
		return &core.InvalidSelection{Coord: core.Coord{I: i, J: j, K: k}, Extent: c.topo.NodesPerAxis}
	}
	c.activate(node.Index)
	return nil
}

// SelectIndex activates the node at linear index idx
func (c *Cursor) SelectIndex(idx int) error {
	c.Clear()
	if idx < 0 || idx >= c.topo.NumNodes() {
		return &core.InvalidSelection{Index: idx, ByIndex: true, Extent: c.topo.NumNodes()}
	}
	c.activate(idx)
	return nil
}

func (c *Cursor) activate(idx int) {
	c.current = idx
	c.store.Node(idx).Active = true
}

// Clear deactivates the current node, if any
func (c *Cursor) Clear() {
	if c.current >= 0 {
		c.store.Node(c.current).Active = false
	}
	c.current = -1
}

// Current returns the selected node index
func (c *Cursor) Current() (int, bool) {
	return c.current, c.current >= 0
}
