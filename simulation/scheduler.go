package simulation

import (
	"context"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"fluidsim/core"
)

// parityColor groups nodes so that no two nodes of one color share a face
func parityColor(c core.Coord) int {
	return (c.I & 1) | (c.J&1)<<1 | (c.K&1)<<2
}

// colorClasses returns node indices bucketed by parity color, each bucket
// in index order.
func colorClasses(topo *core.Topology) [8][]int {
	var classes [8][]int
	for i := range topo.Nodes {
		c := parityColor(topo.Nodes[i].Coord)
		classes[c] = append(classes[c], i)
	}
	return classes
}

// neighborhood returns the node and its present neighbors in index order,
// the order their locks must be taken in.
func neighborhood(topo *core.Topology, idx int) []int {
	n := topo.Node(idx)
	ids := []int{idx}
	for _, d := range core.Directions {
		if other, ok := n.Neighbor(d); ok {
			ids = append(ids, other)
		}
	}
	slices.Sort(ids)
	return ids
}

// runLanes integrates the lattice color by color. Within a color every
// lane pulls nodes from a shared queue; host arrays are guarded by the
// per-node locks of the whole neighborhood.
func (fs *FluidSim) runLanes(ctx context.Context) (int, error) {
	fs.cursor.Clear()

	var stale atomic.Int64
	for _, class := range colorClasses(fs.topo) {
		if len(class) == 0 {
			continue
		}
		g, gctx := errgroup.WithContext(ctx)
		queue := make(chan int, len(class))
		for _, idx := range class {
			queue <- idx
		}
		close(queue)

		for _, l := range fs.lanes {
			g.Go(func() error {
				for idx := range queue {
					if err := gctx.Err(); err != nil {
						return err
					}
					n, err := fs.integrateLocked(gctx, l, idx)
					stale.Add(int64(n))
					if err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return int(stale.Load()), err
		}
	}
	return int(stale.Load()), nil
}

func (fs *FluidSim) integrateLocked(ctx context.Context, l *lane, idx int) (int, error) {
	ids := neighborhood(fs.topo, idx)
	for _, id := range ids {
		fs.store.Node(id).Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			fs.store.Node(ids[i]).Unlock()
		}
	}()
	return fs.integrate(ctx, l, idx)
}
