package datasource

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/cascadegrid/pkg/model"
	"github.com/vanderheijden86/cascadegrid/pkg/options"
)

// SeedDiff compares a reloaded seed against the live tree. The tree only
// grows, so removals and reparentings are reported but never applied.
type SeedDiff struct {
	// Added contains seed ids the tree does not hold yet
	Added []string
	// Missing contains tree ids absent from the seed (often options created in the grid)
	Missing []string
	// Reparented contains ids whose parent differs between seed and tree
	Reparented []ParentDifference
}

// ParentDifference records a parent mismatch for a single id
type ParentDifference struct {
	ID         string `json:"id"`
	SeedParent string `json:"seed_parent"`
	TreeParent string `json:"tree_parent"`
}

// Diff compares entries with tree.
func Diff(tree *options.Tree, entries []model.OptionNode) SeedDiff {
	var d SeedDiff
	inSeed := make(map[string]bool, len(entries))
	for _, e := range entries {
		inSeed[e.ID] = true
		node, ok := tree.Get(e.ID)
		if !ok {
			d.Added = append(d.Added, e.ID)
			continue
		}
		if node.ParentID != e.ParentID {
			d.Reparented = append(d.Reparented, ParentDifference{
				ID:         e.ID,
				SeedParent: e.ParentID,
				TreeParent: node.ParentID,
			})
		}
	}
	for _, n := range tree.Nodes() {
		if !inSeed[n.ID] {
			d.Missing = append(d.Missing, n.ID)
		}
	}
	return d
}

// HasChanges reports whether the seed carries anything the tree lacks or
// contradicts.
func (d SeedDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Reparented) > 0
}

// Summary returns a human-readable summary of the differences
func (d SeedDiff) Summary() string {
	if !d.HasChanges() && len(d.Missing) == 0 {
		return "Seed matches the option tree"
	}

	var b strings.Builder
	if len(d.Added) > 0 {
		fmt.Fprintf(&b, "%d new options", len(d.Added))
		if len(d.Added) <= 5 {
			fmt.Fprintf(&b, " (%s)", strings.Join(d.Added, ", "))
		}
	}
	if len(d.Reparented) > 0 {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%d reparented in seed, kept as is", len(d.Reparented))
	}
	if len(d.Missing) > 0 {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%d options not in seed", len(d.Missing))
	}
	return b.String()
}
