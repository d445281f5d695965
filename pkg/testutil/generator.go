// Package testutil provides test fixture generators for option forests and
// grids. All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/vanderheijden86/cascadegrid/pkg/model"
	"github.com/vanderheijden86/cascadegrid/pkg/options"
)

// ForestFixture is an option forest listed parents-first.
type ForestFixture struct {
	Description string             `json:"description"`
	Nodes       []model.OptionNode `json:"nodes"`
	Properties  Properties         `json:"properties"`
}

// Properties holds metadata about the fixture.
type Properties struct {
	Roots int `json:"roots"`
	Depth int `json:"depth"`
}

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed     int64  // Random seed for determinism (0 = use 42)
	IDPrefix string // Optional prefix for option ids
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{Seed: 42}
}

// Generator creates forests with various shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

func (g *Generator) id(depth, n int) string {
	return fmt.Sprintf("%s%d.%d", g.cfg.IDPrefix, depth, n)
}

// Chains creates `roots` independent chains of the given depth, named like
// the classic seed: 1.1 -> 2.1 -> 3.1, 1.2 -> 2.2 -> 3.2.
func (g *Generator) Chains(roots, depth int) ForestFixture {
	var nodes []model.OptionNode
	for d := 1; d <= depth; d++ {
		for r := 1; r <= roots; r++ {
			parent := ""
			if d > 1 {
				parent = g.id(d-1, r)
			}
			nodes = append(nodes, model.OptionNode{ID: g.id(d, r), ParentID: parent})
		}
	}
	return ForestFixture{
		Description: fmt.Sprintf("%d chains of depth %d", roots, depth),
		Nodes:       nodes,
		Properties:  Properties{Roots: roots, Depth: depth},
	}
}

// Uniform creates a complete forest: `roots` roots and `fanout` children per
// node down to depth.
func (g *Generator) Uniform(roots, fanout, depth int) ForestFixture {
	var nodes []model.OptionNode
	counter := make(map[int]int)
	var parents []string
	for r := 0; r < roots; r++ {
		counter[1]++
		id := g.id(1, counter[1])
		nodes = append(nodes, model.OptionNode{ID: id})
		parents = append(parents, id)
	}
	for d := 2; d <= depth; d++ {
		var next []string
		for _, p := range parents {
			for f := 0; f < fanout; f++ {
				counter[d]++
				id := g.id(d, counter[d])
				nodes = append(nodes, model.OptionNode{ID: id, ParentID: p})
				next = append(next, id)
			}
		}
		parents = next
	}
	return ForestFixture{
		Description: fmt.Sprintf("uniform forest: %d roots, fanout %d, depth %d", roots, fanout, depth),
		Nodes:       nodes,
		Properties:  Properties{Roots: roots, Depth: depth},
	}
}

// Random creates n nodes with depth at most maxDepth; each node picks a
// random parent among the nodes already created one level up.
func (g *Generator) Random(n, maxDepth int) ForestFixture {
	if maxDepth < 1 {
		maxDepth = 1
	}
	byDepth := make(map[int][]string)
	nodes := make([]model.OptionNode, 0, n)
	deepest := 0
	roots := 0
	for i := 0; i < n; i++ {
		depth := 1 + g.rng.Intn(maxDepth)
		for depth > 1 && len(byDepth[depth-1]) == 0 {
			depth--
		}
		parent := ""
		if depth > 1 {
			candidates := byDepth[depth-1]
			parent = candidates[g.rng.Intn(len(candidates))]
		} else {
			roots++
		}
		id := g.id(depth, len(byDepth[depth])+1)
		byDepth[depth] = append(byDepth[depth], id)
		nodes = append(nodes, model.OptionNode{ID: id, ParentID: parent})
		deepest = max(deepest, depth)
	}
	return ForestFixture{
		Description: fmt.Sprintf("random forest of %d nodes, max depth %d", n, maxDepth),
		Nodes:       nodes,
		Properties:  Properties{Roots: roots, Depth: deepest},
	}
}

// Build inserts the fixture into a fresh tree.
func (f ForestFixture) Build() (*options.Tree, error) {
	tree := options.New()
	for _, n := range f.Nodes {
		if _, err := tree.Insert(n.ID, n.ParentID); err != nil {
			return nil, err
		}
	}
	return tree, nil
}
