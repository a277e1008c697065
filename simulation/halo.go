package simulation

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"fluidsim/core"
	"fluidsim/gpu"
)

// HaloExchange stages a node and its face neighbors between host arrays
// and one device pool.
type HaloExchange struct {
	topo   *core.Topology
	store  *core.Store
	pool   *gpu.Pool
	policy gpu.TransferPolicy

	obstacle     []float64 // mask encoded for upload
	haloObstacle [core.NumDirections][]float64
}

// NewHaloExchange binds the host store to a device pool
func NewHaloExchange(topo *core.Topology, store *core.Store, pool *gpu.Pool, policy gpu.TransferPolicy) *HaloExchange {
	h := &HaloExchange{
		topo:     topo,
		store:    store,
		pool:     pool,
		policy:   policy,
		obstacle: make([]float64, store.Cells()),
	}
	for d := range h.haloObstacle {
		h.haloObstacle[d] = make([]float64, store.Cells())
	}
	return h
}

func encodeObstacle(dst []float64, mask []core.ObstacleMask) {
	for i, m := range mask {
		dst[i] = float64(m)
	}
}

func (h *HaloExchange) upload(ctx context.Context, dir core.Direction, f core.Field, dst *gpu.Buffer, src []float64) error {
	dev := h.pool.Device()
	err := h.policy.Do(ctx, "upload "+f.String(), func(ctx context.Context) error {
		return dev.Upload(ctx, dst, src)
	})
	if err != nil {
		return &core.TransferFailure{Direction: dir, Field: f, ToDevice: true, Err: err}
	}
	return nil
}

func (h *HaloExchange) download(ctx context.Context, dir core.Direction, f core.Field, dst []float64, src *gpu.Buffer) error {
	dev := h.pool.Device()
	err := h.policy.Do(ctx, "download "+f.String(), func(ctx context.Context) error {
		return dev.Download(ctx, dst, src)
	})
	if err != nil {
		return &core.TransferFailure{Direction: dir, Field: f, ToDevice: false, Err: err}
	}
	return nil
}

// LoadNode copies the node's density, velocity and obstacle mask into the
// pool's active field set.
func (h *HaloExchange) LoadNode(ctx context.Context, node int) error {
	host := h.store.Node(node)
	for _, f := range core.StagedFields {
		if err := h.upload(ctx, core.Center, f, h.pool.Active.Get(f), host.Array(f)); err != nil {
			return err
		}
	}
	encodeObstacle(h.obstacle, host.Obstacle)
	return h.upload(ctx, core.Center, core.FieldObstacle, h.pool.Active.Obstacle, h.obstacle)
}

// StoreNode writes the integrated density and velocity back to the host.
// The obstacle mask never changes on the device and is not copied back.
func (h *HaloExchange) StoreNode(ctx context.Context, node int) error {
	host := h.store.Node(node)
	for _, f := range core.StagedFields {
		if err := h.download(ctx, core.Center, f, host.Array(f), h.pool.Active.Get(f)); err != nil {
			return err
		}
	}
	return nil
}

// LoadNeighbors fills the halo slot of every face with the neighbor's
// density, velocity and obstacle mask. Faces on the domain wall become HaloAbsent. Each
// direction transfers independently; a failed one is marked HaloStale and
// its *core.TransferFailure is included in the joined error while the
// others still load.
func (h *HaloExchange) LoadNeighbors(ctx context.Context, node int) error {
	n := h.topo.Node(node)
	var errs [core.NumDirections]error

	var g errgroup.Group
	for _, d := range core.Directions {
		slot := &h.pool.Halo[d]
		other, ok := n.Neighbor(d)
		if !ok {
			slot.State = gpu.HaloAbsent
			continue
		}
		g.Go(func() error {
			host := h.store.Node(other)
			for _, f := range core.StagedFields {
				if err := h.upload(ctx, d, f, slot.Get(f), host.Array(f)); err != nil {
					slot.State = gpu.HaloStale
					errs[d] = err
					return nil
				}
			}
			encodeObstacle(h.haloObstacle[d], host.Obstacle)
			if err := h.upload(ctx, d, core.FieldObstacle, slot.Obstacle, h.haloObstacle[d]); err != nil {
				slot.State = gpu.HaloStale
				errs[d] = err
				return nil
			}
			slot.State = gpu.HaloFresh
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs[:]...)
	for _, d := range core.Directions {
		if errs[d] != nil {
			core.Logger().Warn("halo link stale", "node", n.Coord, "direction", d, "err", errs[d])
		}
	}
	return err
}

// StoreNeighbors writes every fresh halo slot back to its neighbor. Stale
// and absent slots are skipped. Halos are read-only during integration, so
// this leaves neighbor data bit-identical to what LoadNeighbors read.
func (h *HaloExchange) StoreNeighbors(ctx context.Context, node int) error {
	n := h.topo.Node(node)
	var errs [core.NumDirections]error

	var g errgroup.Group
	for _, d := range core.Directions {
		slot := &h.pool.Halo[d]
		other, ok := n.Neighbor(d)
		if !ok || slot.State != gpu.HaloFresh {
			continue
		}
		g.Go(func() error {
			host := h.store.Node(other)
			for _, f := range core.StagedFields {
				if err := h.download(ctx, d, f, host.Array(f), slot.Get(f)); err != nil {
					slot.State = gpu.HaloStale
					errs[d] = err
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs[:]...)
}

// StaleDirections lists the faces whose halo failed to load this tick
func (h *HaloExchange) StaleDirections() []core.Direction {
	var stale []core.Direction
	for _, d := range core.Directions {
		if h.pool.Halo[d].State == gpu.HaloStale {
			stale = append(stale, d)
		}
	}
	return stale
}
