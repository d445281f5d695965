package testutil

import (
	"testing"
)

func TestChains(t *testing.T) {
	gen := NewDefault()

	tests := []struct {
		name      string
		roots     int
		depth     int
		wantNodes int
	}{
		{"classic_seed", 2, 5, 10},
		{"single_chain", 1, 3, 3},
		{"wide_flat", 4, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := gen.Chains(tt.roots, tt.depth)
			if len(f.Nodes) != tt.wantNodes {
				t.Errorf("Chains(%d,%d) nodes = %d, want %d", tt.roots, tt.depth, len(f.Nodes), tt.wantNodes)
			}
			tree, err := f.Build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if got := len(tree.Roots()); got != tt.roots {
				t.Errorf("roots = %d, want %d", got, tt.roots)
			}
			last := f.Nodes[len(f.Nodes)-1]
			if d := tree.Depth(last.ID); d != tt.depth {
				t.Errorf("depth of %s = %d, want %d", last.ID, d, tt.depth)
			}
		})
	}
}

func TestChains_ClassicNames(t *testing.T) {
	f := NewDefault().Chains(2, 2)
	want := []string{"1.1", "1.2", "2.1", "2.2"}
	for i, n := range f.Nodes {
		if n.ID != want[i] {
			t.Errorf("node %d = %q, want %q", i, n.ID, want[i])
		}
	}
	if f.Nodes[2].ParentID != "1.1" {
		t.Errorf("2.1 parent = %q, want 1.1", f.Nodes[2].ParentID)
	}
}

func TestUniform(t *testing.T) {
	f := NewDefault().Uniform(2, 3, 3)
	// 2 + 6 + 18
	if len(f.Nodes) != 26 {
		t.Fatalf("expected 26 nodes, got %d", len(f.Nodes))
	}
	tree, err := f.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, root := range tree.Roots() {
		if got := len(tree.ChildrenOf(root.ID)); got != 3 {
			t.Errorf("root %s has %d children, want 3", root.ID, got)
		}
	}
}

func TestRandom_DeterministicAndBuildable(t *testing.T) {
	a := New(GeneratorConfig{Seed: 7}).Random(200, 5)
	b := New(GeneratorConfig{Seed: 7}).Random(200, 5)

	if len(a.Nodes) != 200 {
		t.Fatalf("expected 200 nodes, got %d", len(a.Nodes))
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			t.Fatalf("same seed produced different node %d: %v vs %v", i, a.Nodes[i], b.Nodes[i])
		}
	}
	if a.Properties.Depth > 5 {
		t.Errorf("depth %d exceeds max 5", a.Properties.Depth)
	}
	if _, err := a.Build(); err != nil {
		t.Errorf("random fixture is not parents-first: %v", err)
	}
}

func TestIDPrefix(t *testing.T) {
	f := New(GeneratorConfig{IDPrefix: "x"}).Chains(1, 1)
	if f.Nodes[0].ID != "x1.1" {
		t.Errorf("expected prefixed id x1.1, got %q", f.Nodes[0].ID)
	}
}
