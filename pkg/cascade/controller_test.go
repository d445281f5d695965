package cascade_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vanderheijden86/cascadegrid/pkg/cascade"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
	"github.com/vanderheijden86/cascadegrid/pkg/testutil"
	"pgregory.net/rapid"
)

type recorder struct {
	rows   [][]int64
	totals []int
}

func (r *recorder) RowsChanged(ids []int64) { r.rows = append(r.rows, ids) }
func (r *recorder) RowCountChanged(n int)   { r.totals = append(r.totals, n) }

func abFixture() testutil.ForestFixture {
	return testutil.ForestFixture{Nodes: []model.OptionNode{{ID: "A"}, {ID: "B"}}}
}

func TestOptionsFor_FirstLevelAndDisabled(t *testing.T) {
	g := testutil.NewGrid(t, abFixture(), 2)

	ch, err := g.Controller.OptionsFor(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ch.Enabled {
		t.Error("level 1 must always be enabled")
	}
	testutil.AssertOptionIDs(t, ch.Nodes, "A", "B")

	ch, err = g.Controller.OptionsFor(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if ch.Enabled || len(ch.Nodes) != 0 {
		t.Errorf("level 2 with empty level 1 must be disabled and empty, got %+v", ch)
	}
}

// Seed roots {A, B}; R1 selects A, creates C at level 2; R2 selecting A
// sees C.
func TestScenario_OptionSharing(t *testing.T) {
	g := testutil.NewGrid(t, abFixture(), 2)
	c := g.Controller

	testutil.MustSelect(t, g, 1, 1, "A")
	ch, err := c.OptionsFor(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !ch.Enabled || len(ch.Nodes) != 0 {
		t.Errorf("children of A: expected enabled empty set, got %+v", ch)
	}

	if _, err := c.CreateAndSelect(1, 2, "C"); err != nil {
		t.Fatalf("create C: %v", err)
	}
	node, ok := g.Tree.Get("C")
	if !ok || node.ParentID != "A" {
		t.Fatalf("C should be registered under A, got %+v", node)
	}
	testutil.AssertCells(t, g, 1, "A", "C")

	testutil.MustSelect(t, g, 2, 1, "A")
	ch, err = c.OptionsFor(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertOptionIDs(t, ch.Nodes, "C")
}

// R1 = [A, C, D]; re-selecting level 1 to B yields [B, empty, empty].
func TestScenario_ReselectClearsDescendants(t *testing.T) {
	fixture := testutil.ForestFixture{Nodes: []model.OptionNode{
		{ID: "A"}, {ID: "B"}, {ID: "C", ParentID: "A"}, {ID: "D", ParentID: "C"},
	}}
	g := testutil.NewGridWithSchema(t, fixture, model.Schema{Levels: []string{"ID", "L1", "L2", "L3"}}, 2)

	testutil.MustSelect(t, g, 1, 1, "A")
	testutil.MustSelect(t, g, 1, 2, "C")
	testutil.MustSelect(t, g, 1, 3, "D")
	testutil.MustSelect(t, g, 2, 1, "A")
	testutil.MustSelect(t, g, 2, 2, "C")

	affected := testutil.MustSelect(t, g, 1, 1, "B")
	if len(affected) != 1 || affected[0] != 1 {
		t.Errorf("expected affected [1], got %v", affected)
	}
	testutil.AssertCells(t, g, 1, "B", "", "")
	testutil.AssertCells(t, g, 2, "A", "C", "")
	testutil.AssertLineage(t, g)
}

func TestSelect_SameNodeStillCascades(t *testing.T) {
	g := testutil.NewGrid(t, testutil.NewDefault().Chains(2, 3), 1)
	testutil.MustSelect(t, g, 1, 1, "1.1")
	testutil.MustSelect(t, g, 1, 2, "2.1")
	testutil.MustSelect(t, g, 1, 3, "3.1")

	testutil.MustSelect(t, g, 1, 1, "1.1")
	testutil.AssertCells(t, g, 1, "1.1", "", "")
}

func TestSelect_Rejections(t *testing.T) {
	g := testutil.NewGrid(t, testutil.NewDefault().Chains(2, 3), 1)
	c := g.Controller
	testutil.MustSelect(t, g, 1, 1, "1.1")
	testutil.MustSelect(t, g, 1, 2, "2.1")

	n22, _ := g.Tree.Get("2.2")
	n31, _ := g.Tree.Get("3.1")
	tests := []struct {
		name  string
		row   int64
		level int
		node  *model.OptionNode
		want  error
	}{
		{"child of other lineage", 1, 2, n22, model.ErrNotAnOption},
		{"wrong depth", 1, 1, n31, model.ErrNotAnOption},
		{"unknown node", 1, 1, &model.OptionNode{ID: "ghost"}, model.ErrNotAnOption},
		{"forged parent", 1, 1, &model.OptionNode{ID: "2.1"}, model.ErrNotAnOption},
		{"nil node", 1, 1, nil, model.ErrNotAnOption},
		{"missing row", 7, 1, n22, model.ErrRowNotFound},
		{"id column", 1, 0, n22, model.ErrInvalidLevel},
		{"past last level", 1, 6, n22, model.ErrInvalidLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Select(tt.row, tt.level, tt.node)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			testutil.AssertCells(t, g, 1, "1.1", "2.1", "")
		})
	}
}

func TestSelect_StoresCanonicalNode(t *testing.T) {
	g := testutil.NewGrid(t, abFixture(), 1)
	copyOfA := &model.OptionNode{ID: "A"}
	if _, err := g.Controller.Select(1, 1, copyOfA); err != nil {
		t.Fatal(err)
	}
	row, _ := g.Store.Get(1)
	want, _ := g.Tree.Get("A")
	if row.Cell(1) != want {
		t.Error("select should store the tree's node, not the caller's copy")
	}
}

func TestCreateAndSelect_Errors(t *testing.T) {
	g := testutil.NewGrid(t, abFixture(), 1)
	c := g.Controller

	if _, err := c.CreateAndSelect(1, 2, "orphan"); !errors.Is(err, model.ErrParentRequired) {
		t.Errorf("expected ErrParentRequired, got %v", err)
	}
	if g.Tree.Has("orphan") {
		t.Error("rejected create left a node behind")
	}

	if _, err := c.CreateAndSelect(1, 1, "A"); !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := c.CreateAndSelect(99, 1, "Z"); !errors.Is(err, model.ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
	if g.Tree.Has("Z") {
		t.Error("create on missing row must not insert")
	}
	if _, err := c.CreateAndSelect(1, 1, ""); !errors.Is(err, model.ErrEmptyID) {
		t.Errorf("expected ErrEmptyID, got %v", err)
	}
}

func TestCreateAndSelect_Root(t *testing.T) {
	g := testutil.NewGrid(t, abFixture(), 2)
	if _, err := g.Controller.CreateAndSelect(2, 1, "Z"); err != nil {
		t.Fatal(err)
	}
	ch, _ := g.Controller.OptionsFor(1, 1)
	testutil.AssertOptionIDs(t, ch.Nodes, "A", "B", "Z")
}

func TestCell_RendererContract(t *testing.T) {
	g := testutil.NewGrid(t, abFixture(), 1)
	state, err := g.Controller.Cell(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if state.CanCreate || state.Choices.Enabled || state.Value != nil {
		t.Errorf("unexpected state for blocked cell: %+v", state)
	}

	testutil.MustSelect(t, g, 1, 1, "B")
	state, _ = g.Controller.Cell(1, 1)
	if state.Value == nil || state.Value.ID != "B" || !state.CanCreate {
		t.Errorf("unexpected state for selected cell: %+v", state)
	}
	if !state.Choices.Contains(state.Value) {
		t.Error("current value should be among its choices")
	}
}

func TestListeners(t *testing.T) {
	rec := &recorder{}
	g := testutil.NewGrid(t, abFixture(), 3, cascade.WithListener(rec))

	testutil.MustSelect(t, g, 2, 1, "A")
	if _, err := g.Controller.Select(2, 2, &model.OptionNode{ID: "nope"}); err == nil {
		t.Fatal("expected rejection")
	}
	if _, err := g.Controller.BulkAppendRows(5); err != nil {
		t.Fatal(err)
	}

	if len(rec.rows) != 1 || fmt.Sprint(rec.rows[0]) != "[2]" {
		t.Errorf("expected one redraw of row 2, got %v", rec.rows)
	}
	if len(rec.totals) != 1 || rec.totals[0] != 8 {
		t.Errorf("expected total 8, got %v", rec.totals)
	}
}

func TestBulkAppendRows(t *testing.T) {
	g := testutil.NewGrid(t, abFixture(), 100)
	ids, err := g.Controller.BulkAppendRows(3)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(ids) != "[101 102 103]" {
		t.Errorf("unexpected ids %v", ids)
	}
	if _, err := g.Controller.BulkAppendRows(0); !errors.Is(err, model.ErrInvalidCount) {
		t.Errorf("expected ErrInvalidCount, got %v", err)
	}
}

func TestNew_SchemaMismatch(t *testing.T) {
	g := testutil.NewGrid(t, abFixture(), 0)
	_, err := cascade.New(g.Tree, g.Store, model.Schema{Levels: []string{"ID", "only"}})
	if !errors.Is(err, model.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestCheckRow_DetectsBrokenLineage(t *testing.T) {
	g := testutil.NewGrid(t, testutil.NewDefault().Chains(2, 2), 1)
	n11, _ := g.Tree.Get("1.1")
	n22, _ := g.Tree.Get("2.2")

	// Bypass the controller to corrupt the row.
	if _, err := g.Store.SetCell(1, 1, n11); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Store.SetCell(1, 2, n22); err != nil {
		t.Fatal(err)
	}
	row, _ := g.Store.Get(1)
	if err := g.Controller.CheckRow(row); !errors.Is(err, model.ErrLineageBroken) {
		t.Errorf("expected ErrLineageBroken, got %v", err)
	}
}

// Random select/create/append sequences keep every row consistent, and a
// select only touches its own row.
func TestController_Property_LineageAndIsolation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := testutil.NewGrid(rt, testutil.NewDefault().Uniform(2, 2, 4), 4)
		c := g.Controller
		width := c.Schema().Width()
		created := 0

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			total := g.Store.Len()
			rowID := int64(rapid.IntRange(1, total).Draw(rt, "row"))
			level := rapid.IntRange(1, width-1).Draw(rt, "level")

			before := snapshot(g)

			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				created++
				_, _ = c.CreateAndSelect(rowID, level, fmt.Sprintf("new%d", created))
			case 1:
				_, _ = c.BulkAppendRows(rapid.IntRange(1, 3).Draw(rt, "append"))
				continue
			default:
				ch, err := c.OptionsFor(rowID, level)
				if err != nil {
					rt.Fatal(err)
				}
				if len(ch.Nodes) == 0 {
					continue
				}
				pick := ch.Nodes[rapid.IntRange(0, len(ch.Nodes)-1).Draw(rt, "pick")]
				if _, err := c.Select(rowID, level, pick); err != nil {
					rt.Fatalf("legal select rejected: %v", err)
				}
				after, _ := g.Store.Get(rowID)
				for l := level + 1; l < width; l++ {
					if after.Cell(l) != nil {
						rt.Fatalf("row %d level %d not cleared after select at %d", rowID, l, level)
					}
				}
			}

			after := snapshot(g)
			for id, cells := range before {
				if id != rowID && cells != after[id] {
					rt.Fatalf("row %d changed while editing row %d", id, rowID)
				}
			}
			all, _ := g.Store.Window(0, g.Store.Len())
			for _, row := range all {
				if err := c.CheckRow(row); err != nil {
					rt.Fatalf("lineage broken: %v", err)
				}
			}
		}
	})
}

func snapshot(g testutil.Grid) map[int64]string {
	all, _ := g.Store.Window(0, g.Store.Len())
	out := make(map[int64]string, len(all))
	for _, row := range all {
		out[row.ID] = fmt.Sprint(row.Lineage())
	}
	return out
}
