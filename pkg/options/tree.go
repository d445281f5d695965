// Package options holds the shared, append-only option hierarchy that feeds
// every cell's legal value set.
//
// The tree only grows: nodes are inserted once and never mutated or removed.
// Because a parent must exist before its child is inserted, insertion order
// is always a valid topological order and the forest cannot contain cycles.
package options

import (
	"strings"
	"sync"

	"github.com/vanderheijden86/cascadegrid/pkg/debug"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
)

// rootKey indexes the children of "no parent".
const rootKey = ""

// Tree is the global option forest with an id index and a parent→children
// index maintained on insert.
type Tree struct {
	mu       sync.RWMutex
	byID     map[string]*model.OptionNode
	children map[string][]*model.OptionNode
	order    []*model.OptionNode
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		byID:     make(map[string]*model.OptionNode),
		children: make(map[string][]*model.OptionNode),
	}
}

// Insert adds a node under parentID (empty for a root) and returns it.
func (t *Tree) Insert(id, parentID string) (*model.OptionNode, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &model.OpError{Op: "insert", Err: model.ErrEmptyID}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byID[id]; exists {
		return nil, &model.OpError{Op: "insert", ID: id, Err: model.ErrDuplicateID}
	}
	if parentID != rootKey {
		if _, ok := t.byID[parentID]; !ok {
			return nil, &model.OpError{Op: "insert", ID: id, Err: model.ErrInvalidParent}
		}
	}

	node := &model.OptionNode{ID: id, ParentID: parentID}
	t.byID[id] = node
	t.children[parentID] = append(t.children[parentID], node)
	t.order = append(t.order, node)

	debug.Log("options: inserted %q under %q (%d total)", id, parentID, len(t.order))
	return node, nil
}

// ChildrenOf returns the children of parentID in insertion order. An empty
// parentID returns the roots. The result is a copy.
func (t *Tree) ChildrenOf(parentID string) []*model.OptionNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	kids := t.children[parentID]
	out := make([]*model.OptionNode, len(kids))
	copy(out, kids)
	return out
}

// Roots returns the level-1 candidates.
func (t *Tree) Roots() []*model.OptionNode {
	return t.ChildrenOf(rootKey)
}

// Get returns the node with the given id.
func (t *Tree) Get(id string) (*model.OptionNode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.byID[id]
	return n, ok
}

// Has reports whether id is known.
func (t *Tree) Has(id string) bool {
	_, ok := t.Get(id)
	return ok
}

// IsChildOf reports whether node is the tree's own node with that id and
// hangs directly under parentID.
func (t *Tree) IsChildOf(node *model.OptionNode, parentID string) bool {
	if node == nil {
		return false
	}
	known, ok := t.Get(node.ID)
	return ok && known.ParentID == parentID
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Nodes returns every node in insertion order.
func (t *Tree) Nodes() []*model.OptionNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*model.OptionNode, len(t.order))
	copy(out, t.order)
	return out
}

// Path returns the ancestry of id from its root down to id itself, or nil
// when id is unknown.
func (t *Tree) Path(id string) []*model.OptionNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var rev []*model.OptionNode
	for cur, ok := t.byID[id]; ok; cur, ok = t.byID[cur.ParentID] {
		rev = append(rev, cur)
		if cur.ParentID == rootKey {
			break
		}
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// Depth returns the 1-based depth of id (roots are depth 1), or 0 when id
// is unknown.
func (t *Tree) Depth(id string) int {
	return len(t.Path(id))
}
