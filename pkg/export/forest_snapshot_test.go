package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/cascadegrid/pkg/options"
)

func sampleTree(t *testing.T) *options.Tree {
	t.Helper()
	tree := options.New()
	for _, e := range [][2]string{{"A", ""}, {"B", ""}, {"C", "A"}, {"D", "C"}} {
		if _, err := tree.Insert(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	return tree
}

func TestRenderForestSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderForestSVG(&buf, sampleTree(t), "Test Forest"); err != nil {
		t.Fatalf("RenderForestSVG: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "<svg") {
		t.Fatal("expected svg output")
	}
	for _, want := range []string{"Test Forest", "options: 4  roots: 2  depth: 3", ">A<", ">D<"} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	if got := strings.Count(out, "<line"); got != 2 {
		t.Errorf("expected 2 edges, got %d", got)
	}
}

func TestBuildLayout_DepthFirstRows(t *testing.T) {
	layout := buildLayout(sampleTree(t), "")
	var order []string
	for _, n := range layout.Nodes {
		order = append(order, n.ID)
	}
	if got := strings.Join(order, ","); got != "A,C,D,B" {
		t.Errorf("row order = %s, want A,C,D,B", got)
	}
	if layout.Title != "Option Forest" {
		t.Errorf("default title = %q", layout.Title)
	}
	if layout.Nodes[2].X <= layout.Nodes[1].X {
		t.Error("deeper nodes must sit in later columns")
	}
}

func TestSaveForestSnapshot_PNGAndSVG(t *testing.T) {
	dir := t.TempDir()
	tree := sampleTree(t)

	pngPath := filepath.Join(dir, "out", "forest.png")
	if err := SaveForestSnapshot(ForestSnapshotOptions{Path: pngPath, Tree: tree}); err != nil {
		t.Fatalf("png: %v", err)
	}
	data, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("png output lacks PNG signature")
	}

	bare := filepath.Join(dir, "forest")
	if err := SaveForestSnapshot(ForestSnapshotOptions{Path: bare, Tree: tree}); err != nil {
		t.Fatalf("svg: %v", err)
	}
	if _, err := os.Stat(bare + ".svg"); err != nil {
		t.Errorf("expected .svg to be appended: %v", err)
	}
}

func TestSaveForestSnapshot_Errors(t *testing.T) {
	dir := t.TempDir()
	if err := SaveForestSnapshot(ForestSnapshotOptions{Path: filepath.Join(dir, "x.svg"), Tree: options.New()}); err == nil {
		t.Error("expected error for empty forest")
	}
	if err := SaveForestSnapshot(ForestSnapshotOptions{Path: filepath.Join(dir, "x.gif"), Tree: sampleTree(t)}); err == nil {
		t.Error("expected error for unsupported format")
	}
	if err := SaveForestSnapshot(ForestSnapshotOptions{Tree: sampleTree(t)}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 6, "abc..."},
		{"abcdef", 3, "abc"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
