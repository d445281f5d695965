package datasource

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/cascadegrid/pkg/debug"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
	"github.com/vanderheijden86/cascadegrid/pkg/options"
)

// Order validates entries and returns them parents-first. Siblings keep
// their file order, and an entry moves ahead only as far as its parent
// chain requires.
func Order(entries []model.OptionNode) ([]model.OptionNode, error) {
	return order(entries, nil)
}

// order is Order with an optional set of ids that already exist outside
// entries and may be used as parents.
func order(entries []model.OptionNode, known func(id string) bool) ([]model.OptionNode, error) {
	byID := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d: %w", i, model.ErrEmptyID)
		}
		if _, dup := byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrSeedDuplicate, e.ID)
		}
		byID[e.ID] = i
	}

	for _, e := range entries {
		if e.ParentID == "" {
			continue
		}
		if _, ok := byID[e.ParentID]; ok {
			continue
		}
		if known != nil && known(e.ParentID) {
			continue
		}
		return nil, fmt.Errorf("%w: %q (parent of %q)", ErrSeedUnknownParent, e.ParentID, e.ID)
	}

	if err := checkCycles(entries, byID); err != nil {
		return nil, err
	}

	out := make([]model.OptionNode, 0, len(entries))
	emitted := make(map[string]bool, len(entries))
	var emit func(i int)
	emit = func(i int) {
		e := entries[i]
		if emitted[e.ID] {
			return
		}
		if p, ok := byID[e.ParentID]; ok {
			emit(p)
		}
		emitted[e.ID] = true
		out = append(out, e)
	}
	for i := range entries {
		emit(i)
	}
	return out, nil
}

// checkCycles builds the parent->child graph and reports every cycle.
func checkCycles(entries []model.OptionNode, byID map[string]int) error {
	for _, e := range entries {
		// SetEdge panics on self loops, so catch them first.
		if e.ParentID == e.ID {
			return fmt.Errorf("%w: %s -> %s", ErrSeedCycle, e.ID, e.ID)
		}
	}

	g := simple.NewDirectedGraph()
	for i := range entries {
		g.AddNode(simple.Node(int64(i)))
	}
	for i, e := range entries {
		if p, ok := byID[e.ParentID]; ok {
			g.SetEdge(g.NewEdge(simple.Node(int64(p)), simple.Node(int64(i))))
		}
	}

	_, err := topo.Sort(g)
	if err == nil {
		return nil
	}
	var unorderable topo.Unorderable
	if !errors.As(err, &unorderable) {
		return fmt.Errorf("ordering seed: %w", err)
	}

	var cycles []string
	for _, component := range unorderable {
		ids := make([]string, 0, len(component))
		for _, n := range component {
			ids = append(ids, entries[n.ID()].ID)
		}
		sort.Strings(ids)
		cycles = append(cycles, strings.Join(ids, ", "))
	}
	sort.Strings(cycles)
	return fmt.Errorf("%w: {%s}", ErrSeedCycle, strings.Join(cycles, "} {"))
}

// Apply orders entries and inserts those the tree does not hold yet.
// Entries already present are skipped, so reapplying a grown seed merges
// only the additions.
func Apply(tree *options.Tree, entries []model.OptionNode) (int, error) {
	ordered, err := order(entries, tree.Has)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, e := range ordered {
		if tree.Has(e.ID) {
			continue
		}
		if _, err := tree.Insert(e.ID, e.ParentID); err != nil {
			return inserted, fmt.Errorf("applying seed: %w", err)
		}
		inserted++
	}
	debug.Log("datasource: applied %d of %d seed entries", inserted, len(entries))
	return inserted, nil
}
