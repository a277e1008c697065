package simulation

import (
	"errors"
	"testing"

	"fluidsim/core"
)

func activeCount(store *core.Store) int {
	n := 0
	for _, h := range store.Nodes {
		if h.Active {
			n++
		}
	}
	return n
}

func TestCursorSelect(t *testing.T) {
	topo, err := core.NewTopology(2)
	if err != nil {
		t.Fatal(err)
	}
	store, err := core.NewStore(topo, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	c := NewCursor(topo, store)

	if err := c.Select(1, 0, 1); err != nil {
		t.Fatal(err)
	}
	if idx, ok := c.Current(); !ok || idx != 5 {
		t.Errorf("Current = %d,%v want 5,true", idx, ok)
	}
	if err := c.SelectIndex(2); err != nil {
		t.Fatal(err)
	}
	if activeCount(store) != 1 || !store.Node(2).Active {
		t.Error("exactly node 2 should be active")
	}

	tests := []struct {
		name   string
		action func() error
	}{
		{"coordinate", func() error { return c.Select(2, 0, 0) }},
		{"negative coordinate", func() error { return c.Select(0, -1, 0) }},
		{"index", func() error { return c.SelectIndex(8) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := c.SelectIndex(3); err != nil {
				t.Fatal(err)
			}
			err := tc.action()
			var sel *core.InvalidSelection
			if !errors.As(err, &sel) {
				t.Fatalf("err = %v, want *InvalidSelection", err)
			}
			if activeCount(store) != 0 {
				t.Error("a failed selection must leave nothing active")
			}
			if _, ok := c.Current(); ok {
				t.Error("cursor still reports a selection")
			}
		})
	}
}
