package testutil

import (
	"github.com/vanderheijden86/cascadegrid/pkg/cascade"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
	"github.com/vanderheijden86/cascadegrid/pkg/options"
	"github.com/vanderheijden86/cascadegrid/pkg/rows"
)

// TB is the subset of testing.TB the helpers need; *testing.T and *rapid.T
// both satisfy it.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// Grid bundles a controller with its tree and store.
type Grid struct {
	Tree       *options.Tree
	Store      *rows.Store
	Controller *cascade.Controller
}

// NewGrid builds a grid over fixture with the default schema and n rows.
func NewGrid(t TB, fixture ForestFixture, n int, opts ...cascade.Option) Grid {
	t.Helper()
	return NewGridWithSchema(t, fixture, model.DefaultSchema(), n, opts...)
}

// NewGridWithSchema is NewGrid with an explicit schema.
func NewGridWithSchema(t TB, fixture ForestFixture, schema model.Schema, n int, opts ...cascade.Option) Grid {
	t.Helper()
	tree, err := fixture.Build()
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	store := rows.New(schema.Width())
	if n > 0 {
		if _, err := store.Append(n); err != nil {
			t.Fatalf("appending rows: %v", err)
		}
	}
	ctrl, err := cascade.New(tree, store, schema, opts...)
	if err != nil {
		t.Fatalf("creating controller: %v", err)
	}
	return Grid{Tree: tree, Store: store, Controller: ctrl}
}

// AssertLineage verifies the lineage invariant on every row.
func AssertLineage(t TB, g Grid) {
	t.Helper()
	all, err := g.Store.Window(0, g.Store.Len())
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	for _, row := range all {
		if err := g.Controller.CheckRow(row); err != nil {
			t.Errorf("row %d: %v", row.ID, err)
		}
	}
}

// AssertCells compares a row's levels 1.. against want; "" means empty.
func AssertCells(t TB, g Grid, rowID int64, want ...string) {
	t.Helper()
	row, err := g.Store.Get(rowID)
	if err != nil {
		t.Fatalf("get row %d: %v", rowID, err)
	}
	for i, w := range want {
		level := i + 1
		got := ""
		if cell := row.Cell(level); cell != nil {
			got = cell.ID
		}
		if got != w {
			t.Errorf("row %d level %d = %q, want %q", rowID, level, got, w)
		}
	}
}

// AssertOptionIDs compares option ids in order.
func AssertOptionIDs(t TB, nodes []*model.OptionNode, want ...string) {
	t.Helper()
	if len(nodes) != len(want) {
		t.Errorf("expected %d options %v, got %d", len(want), want, len(nodes))
		return
	}
	for i, n := range nodes {
		if n.ID != want[i] {
			t.Errorf("option %d = %q, want %q", i, n.ID, want[i])
		}
	}
}

// MustSelect selects id (looked up in the tree) or fails the test.
func MustSelect(t TB, g Grid, rowID int64, level int, id string) []int64 {
	t.Helper()
	node, ok := g.Tree.Get(id)
	if !ok {
		t.Fatalf("option %q not in tree", id)
	}
	affected, err := g.Controller.Select(rowID, level, node)
	if err != nil {
		t.Fatalf("select %q at row %d level %d: %v", id, rowID, level, err)
	}
	return affected
}
