// Package model defines the data types shared by the option tree, the row
// store and the cascade controller.
package model

import (
	"fmt"
	"strings"
)

// OptionNode is a selectable item in the shared option hierarchy.
// An empty ParentID marks a root. Nodes are immutable once inserted.
type OptionNode struct {
	ID       string `json:"id" yaml:"id"`
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// IsRoot reports whether the node has no parent.
func (n *OptionNode) IsRoot() bool {
	return n.ParentID == ""
}

func (n *OptionNode) String() string {
	if n == nil {
		return ""
	}
	return n.ID
}

// Schema names the grid columns. Levels[0] is the ID column; Levels[1:]
// map to hierarchy depths 1..len(Levels)-1.
type Schema struct {
	Levels []string `yaml:"levels"`
}

// DefaultSchema returns the five-level layout: ID, Col 1 … Col 5.
func DefaultSchema() Schema {
	levels := []string{"ID"}
	for i := 1; i <= 5; i++ {
		levels = append(levels, fmt.Sprintf("Col %d", i))
	}
	return Schema{Levels: levels}
}

// Width is the number of columns including the ID column.
func (s Schema) Width() int {
	return len(s.Levels)
}

// Depth is the number of hierarchy levels.
func (s Schema) Depth() int {
	if len(s.Levels) == 0 {
		return 0
	}
	return len(s.Levels) - 1
}

// Validate checks that the schema has at least one hierarchy level and no
// blank column names.
func (s Schema) Validate() error {
	if len(s.Levels) < 2 {
		return fmt.Errorf("schema needs an ID column and at least one level, got %d columns", len(s.Levels))
	}
	for i, name := range s.Levels {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("schema level %d has an empty name", i)
		}
	}
	return nil
}

// ValidLevel reports whether level addresses a hierarchy column.
func (s Schema) ValidLevel(level int) bool {
	return level >= 1 && level < len(s.Levels)
}

// Row is one grid line. Cells is indexed by level; Cells[0] stays nil
// because the ID column is rendered from ID. Cells aliases store memory
// and observes later writes; use Clone for a detached copy.
type Row struct {
	ID    int64
	Cells []*OptionNode
}

// Clone returns a copy whose Cells slice is independent of the store.
func (r Row) Clone() Row {
	cells := make([]*OptionNode, len(r.Cells))
	copy(cells, r.Cells)
	return Row{ID: r.ID, Cells: cells}
}

// Cell returns the selection at level, or nil when empty or out of range.
func (r Row) Cell(level int) *OptionNode {
	if level < 0 || level >= len(r.Cells) {
		return nil
	}
	return r.Cells[level]
}

// Lineage returns the ids of the selected prefix, level 1 onwards.
func (r Row) Lineage() []string {
	var ids []string
	for level := 1; level < len(r.Cells); level++ {
		if r.Cells[level] == nil {
			break
		}
		ids = append(ids, r.Cells[level].ID)
	}
	return ids
}
