package simulation

import (
	"sync"

	"fluidsim/core"
)

// tickJournal remembers the pre-tick density and velocity of every node a
// tick writes back, so a failed tick can leave the host store exactly as
// it found it. Snapshot buffers are reused from tick to tick.
type tickJournal struct {
	mu    sync.Mutex
	cells int
	saved map[int][len(core.StagedFields)][]float64
	free  [][]float64
}

func newTickJournal(cells int) *tickJournal {
	return &tickJournal{
		cells: cells,
		saved: make(map[int][len(core.StagedFields)][]float64),
	}
}

// Begin forgets the previous tick's snapshots
func (j *tickJournal) Begin() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for node, arrays := range j.saved {
		j.free = append(j.free, arrays[:]...)
		delete(j.saved, node)
	}
}

// Record snapshots a node before its first write of the tick. The caller
// must hold whatever guards the node's host arrays.
func (j *tickJournal) Record(node int, host *core.HostNode) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.saved[node]; ok {
		return
	}
	var arrays [len(core.StagedFields)][]float64
	for i, f := range core.StagedFields {
		arrays[i] = j.take()
		copy(arrays[i], host.Array(f))
	}
	j.saved[node] = arrays
}

func (j *tickJournal) take() []float64 {
	if n := len(j.free); n > 0 {
		buf := j.free[n-1]
		j.free = j.free[:n-1]
		return buf
	}
	return make([]float64, j.cells)
}

// Rollback copies every snapshot back into the store and returns how many
// nodes were restored. Lanes must have stopped.
func (j *tickJournal) Rollback(store *core.Store) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for node, arrays := range j.saved {
		host := store.Node(node)
		for i, f := range core.StagedFields {
			copy(host.Array(f), arrays[i])
		}
	}
	return len(j.saved)
}
