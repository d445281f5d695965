// Package cascade ties each row's selections to the shared option tree.
//
// A cell at level 1 chooses among the roots; a cell at level n > 1 chooses
// among the children of the row's selection at level n-1 and is disabled
// while that selection is empty. Changing a selection clears every later
// level of the same row, so a row's lineage always matches a path in the
// tree.
package cascade

import (
	"fmt"

	"github.com/vanderheijden86/cascadegrid/pkg/debug"
	"github.com/vanderheijden86/cascadegrid/pkg/metrics"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
	"github.com/vanderheijden86/cascadegrid/pkg/options"
	"github.com/vanderheijden86/cascadegrid/pkg/rows"
)

// Listener receives redraw notifications after successful mutations.
type Listener interface {
	// RowsChanged is called with the ids whose cells changed.
	RowsChanged(ids []int64)
	// RowCountChanged is called with the new total after an append.
	RowCountChanged(total int)
}

// Choices is the legal value set for one cell.
type Choices struct {
	Nodes   []*model.OptionNode
	Enabled bool
}

// Contains reports whether node (matched by id) is among the choices.
func (c Choices) Contains(node *model.OptionNode) bool {
	if node == nil {
		return false
	}
	for _, n := range c.Nodes {
		if n.ID == node.ID {
			return true
		}
	}
	return false
}

// CellState is everything a renderer needs to draw one cell.
type CellState struct {
	RowID     int64
	Level     int
	Value     *model.OptionNode
	Choices   Choices
	CanCreate bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithListener registers a listener for redraw notifications.
func WithListener(l Listener) Option {
	return func(c *Controller) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// Controller mediates every hierarchy-aware write to the row store.
type Controller struct {
	tree      *options.Tree
	store     *rows.Store
	schema    model.Schema
	listeners []Listener
}

// New builds a controller. The store width must match the schema.
func New(tree *options.Tree, store *rows.Store, schema model.Schema, opts ...Option) (*Controller, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if store.Width() != schema.Width() {
		return nil, fmt.Errorf("store width %d, schema width %d: %w", store.Width(), schema.Width(), model.ErrSchemaMismatch)
	}
	c := &Controller{tree: tree, store: store, schema: schema}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AddListener registers a listener after construction.
func (c *Controller) AddListener(l Listener) {
	if l != nil {
		c.listeners = append(c.listeners, l)
	}
}

// Schema returns the column layout.
func (c *Controller) Schema() model.Schema {
	return c.schema
}

// Tree returns the shared option tree.
func (c *Controller) Tree() *options.Tree {
	return c.tree
}

// Store returns the row store.
func (c *Controller) Store() *rows.Store {
	return c.store
}

// OptionsFor returns the legal choices for (rowID, level).
func (c *Controller) OptionsFor(rowID int64, level int) (Choices, error) {
	row, err := c.lookup("options", rowID, level)
	if err != nil {
		return Choices{}, err
	}
	return c.choices(row, level), nil
}

func (c *Controller) choices(row model.Row, level int) Choices {
	if level == 1 {
		return Choices{Nodes: c.tree.Roots(), Enabled: true}
	}
	prev := row.Cell(level - 1)
	if prev == nil {
		return Choices{Enabled: false}
	}
	return Choices{Nodes: c.tree.ChildrenOf(prev.ID), Enabled: true}
}

// Select writes node at level and clears every later level of the row.
// node must belong to the cell's current legal set. It returns the ids of
// the rows to redraw.
func (c *Controller) Select(rowID int64, level int, node *model.OptionNode) ([]int64, error) {
	defer metrics.Timer(metrics.Select)()

	row, err := c.lookup("select", rowID, level)
	if err != nil {
		return nil, err
	}
	if err := c.checkMembership(row, level, node); err != nil {
		return nil, err
	}
	return c.apply(row, level, node)
}

// checkMembership validates node against the live legal set: the tree's
// own node with that id must hang under the previous level's selection.
func (c *Controller) checkMembership(row model.Row, level int, node *model.OptionNode) error {
	if node == nil {
		return &model.OpError{Op: "select", RowID: row.ID, Level: level, Err: model.ErrNotAnOption}
	}
	parentID := ""
	if level > 1 {
		prev := row.Cell(level - 1)
		if prev == nil {
			return &model.OpError{Op: "select", RowID: row.ID, Level: level, ID: node.ID, Err: model.ErrNotAnOption}
		}
		parentID = prev.ID
	}
	if !c.tree.IsChildOf(node, parentID) {
		debug.Log("cascade: rejected %q at row %d level %d (parent %q)", node.ID, row.ID, level, parentID)
		return &model.OpError{Op: "select", RowID: row.ID, Level: level, ID: node.ID, Err: model.ErrNotAnOption}
	}
	return nil
}

// apply writes the validated selection and cascades the clear.
func (c *Controller) apply(row model.Row, level int, node *model.OptionNode) ([]int64, error) {
	canonical, _ := c.tree.Get(node.ID)

	affected, err := c.store.SetCell(row.ID, level, canonical)
	if err != nil {
		return nil, err
	}
	for l := level + 1; l < c.schema.Width(); l++ {
		if row.Cell(l) == nil {
			continue
		}
		if _, err := c.store.SetCell(row.ID, l, nil); err != nil {
			return nil, err
		}
	}

	if debug.Enabled() {
		if fresh, err := c.store.Get(row.ID); err == nil {
			debug.AssertNoError(c.CheckRow(fresh), "lineage after select")
		}
	}
	c.notifyRows(affected)
	return affected, nil
}

// CreateAndSelect adds newID to the shared tree under the row's previous
// level selection (or as a root at level 1) and selects it. The new option
// becomes visible to every row with the same parent.
func (c *Controller) CreateAndSelect(rowID int64, level int, newID string) ([]int64, error) {
	defer metrics.Timer(metrics.CreateOption)()

	row, err := c.lookup("create", rowID, level)
	if err != nil {
		return nil, err
	}

	parentID := ""
	if level > 1 {
		prev := row.Cell(level - 1)
		if prev == nil {
			return nil, &model.OpError{Op: "create", RowID: rowID, Level: level, ID: newID, Err: model.ErrParentRequired}
		}
		parentID = prev.ID
	}

	node, err := c.tree.Insert(newID, parentID)
	if err != nil {
		return nil, err
	}
	debug.Log("cascade: row %d created %q at level %d under %q", rowID, newID, level, parentID)
	return c.apply(row, level, node)
}

// BulkAppendRows appends count empty rows and reports the new total.
func (c *Controller) BulkAppendRows(count int) ([]int64, error) {
	ids, err := c.store.Append(count)
	if err != nil {
		return nil, err
	}
	total := c.store.Len()
	for _, l := range c.listeners {
		l.RowCountChanged(total)
	}
	return ids, nil
}

// Cell returns the renderer contract for one cell.
func (c *Controller) Cell(rowID int64, level int) (CellState, error) {
	row, err := c.lookup("cell", rowID, level)
	if err != nil {
		return CellState{}, err
	}
	choices := c.choices(row, level)
	return CellState{
		RowID:     rowID,
		Level:     level,
		Value:     row.Cell(level),
		Choices:   choices,
		CanCreate: choices.Enabled,
	}, nil
}

// CheckRow verifies the lineage invariant: each set cell hangs under the
// previous level's selection and nothing follows an empty cell.
func (c *Controller) CheckRow(row model.Row) error {
	if len(row.Cells) != c.schema.Width() {
		return &model.OpError{Op: "check", RowID: row.ID, Err: model.ErrSchemaMismatch}
	}
	parentID := ""
	gap := false
	for level := 1; level < len(row.Cells); level++ {
		cell := row.Cells[level]
		if cell == nil {
			gap = true
			continue
		}
		if gap || !c.tree.IsChildOf(cell, parentID) {
			return &model.OpError{Op: "check", RowID: row.ID, Level: level, ID: cell.ID, Err: model.ErrLineageBroken}
		}
		parentID = cell.ID
	}
	return nil
}

func (c *Controller) lookup(op string, rowID int64, level int) (model.Row, error) {
	if !c.schema.ValidLevel(level) {
		return model.Row{}, &model.OpError{Op: op, RowID: rowID, Level: level, Err: model.ErrInvalidLevel}
	}
	row, err := c.store.Get(rowID)
	if err != nil {
		return model.Row{}, &model.OpError{Op: op, RowID: rowID, Level: level, Err: model.ErrRowNotFound}
	}
	return row, nil
}

func (c *Controller) notifyRows(ids []int64) {
	for _, l := range c.listeners {
		l.RowsChanged(ids)
	}
}
