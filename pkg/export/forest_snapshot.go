// Package export renders the option forest to static images.
package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/cascadegrid/pkg/debug"
	"github.com/vanderheijden86/cascadegrid/pkg/options"
)

// ForestSnapshotOptions controls forest snapshot export behaviour.
type ForestSnapshotOptions struct {
	Path   string        // Output path; format inferred from extension when Format empty
	Format string        // "svg", "png" or "sqlite" (case-insensitive)
	Title  string        // Optional title rendered in the header
	Tree   *options.Tree // Forest to render
}

// SaveForestSnapshot renders the option forest as SVG or PNG, one column per
// depth with parent-to-child edges. Database extensions write a SQLite seed
// instead.
func SaveForestSnapshot(opts ForestSnapshotOptions) error {
	defer debug.LogEnterExit("export.SaveForestSnapshot")()

	if opts.Tree == nil || opts.Tree.Len() == 0 {
		return fmt.Errorf("no options to export")
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".png":
			format = "png"
		case ".svg":
			format = "svg"
		case ".db", ".sqlite", ".sqlite3":
			format = "sqlite"
		case "":
			format = "svg"
			opts.Path += ".svg"
		default:
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.Path)), ".")
		}
	}
	switch format {
	case "svg", "png":
	case "sqlite":
		return SaveForestSQLite(opts.Path, opts.Tree)
	default:
		return fmt.Errorf("unsupported format %q (want svg, png or sqlite)", format)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildLayout(opts.Tree, opts.Title)
	debug.Log("export: %d nodes, %d edges to %s", len(layout.Nodes), len(layout.Edges), opts.Path)

	if format == "png" {
		return renderPNG(opts.Path, layout)
	}
	file, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	if err := renderSVG(file, layout); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// RenderForestSVG writes the SVG snapshot of tree to w.
func RenderForestSVG(w io.Writer, tree *options.Tree, title string) error {
	if tree == nil || tree.Len() == 0 {
		return fmt.Errorf("no options to export")
	}
	return renderSVG(w, buildLayout(tree, title))
}

// --- layout ----------------------------------------------------------------

const (
	nodeW        = 150.0
	nodeH        = 40.0
	colGap       = 70.0
	rowGap       = 14.0
	padding      = 32.0
	headerHeight = 96.0
)

type layoutNode struct {
	ID    string
	Depth int
	X, Y  float64
}

type layoutEdge struct {
	From string
	To   string
}

type layoutResult struct {
	Nodes    []layoutNode
	Edges    []layoutEdge
	Width    int
	Height   int
	Title    string
	Roots    int
	MaxDepth int
}

// buildLayout places nodes in depth-first order so every subtree occupies a
// contiguous band of rows.
func buildLayout(tree *options.Tree, title string) layoutResult {
	if strings.TrimSpace(title) == "" {
		title = "Option Forest"
	}
	res := layoutResult{Title: title}

	row := 0
	var walk func(parentID string, depth int)
	walk = func(parentID string, depth int) {
		for _, n := range tree.ChildrenOf(parentID) {
			res.Nodes = append(res.Nodes, layoutNode{
				ID:    n.ID,
				Depth: depth,
				X:     padding + float64(depth-1)*(nodeW+colGap),
				Y:     padding + headerHeight + float64(row)*(nodeH+rowGap),
			})
			row++
			if parentID != "" {
				res.Edges = append(res.Edges, layoutEdge{From: parentID, To: n.ID})
			}
			res.MaxDepth = max(res.MaxDepth, depth)
			walk(n.ID, depth+1)
		}
	}
	walk("", 1)
	res.Roots = len(tree.Roots())

	res.Width = max(640, int(padding*2+float64(res.MaxDepth)*(nodeW+colGap)))
	res.Height = max(360, int(padding*2+headerHeight+float64(row)*(nodeH+rowGap)))
	return res
}

// --- rendering -------------------------------------------------------------

var (
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge     = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
)

// depthPalette cycles for forests deeper than its length.
var depthPalette = []color.RGBA{
	{0xc8, 0xe6, 0xc9, 0xff},
	{0xbb, 0xde, 0xfb, 0xff},
	{0xff, 0xf3, 0xe0, 0xff},
	{0xf8, 0xbb, 0xd0, 0xff},
	{0xd1, 0xc4, 0xe9, 0xff},
}

func depthColor(depth int) color.RGBA {
	return depthPalette[(depth-1)%len(depthPalette)]
}

func positions(layout layoutResult) map[string]layoutNode {
	pos := make(map[string]layoutNode, len(layout.Nodes))
	for _, n := range layout.Nodes {
		pos[n.ID] = n
	}
	return pos
}

func summaryLine(layout layoutResult) string {
	return fmt.Sprintf("options: %d  roots: %d  depth: %d", len(layout.Nodes), layout.Roots, layout.MaxDepth)
}

func renderPNG(path string, layout layoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, headerHeight-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Title, 32, 44, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(summaryLine(layout), 32, 66, 0, 0.5)

	pos := positions(layout)
	dc.SetColor(colorEdge)
	dc.SetLineWidth(2)
	for _, e := range layout.Edges {
		from, to := pos[e.From], pos[e.To]
		dc.DrawLine(from.X+nodeW, from.Y+nodeH/2, to.X, to.Y+nodeH/2)
		dc.Stroke()
	}

	for _, n := range layout.Nodes {
		dc.SetColor(depthColor(n.Depth))
		dc.DrawRoundedRectangle(n.X, n.Y, nodeW, nodeH, 8)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1.2)
		dc.DrawRoundedRectangle(n.X, n.Y, nodeW, nodeH, 8)
		dc.Stroke()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(truncate(n.ID, 18), n.X+10, n.Y+nodeH/2, 0, 0.5)
	}

	return dc.SavePNG(path)
}

func renderSVG(w io.Writer, layout layoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(headerHeight-24), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(32, 44, layout.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(32, 66, summaryLine(layout), fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))

	pos := positions(layout)
	for _, e := range layout.Edges {
		from, to := pos[e.From], pos[e.To]
		canvas.Line(int(from.X+nodeW), int(from.Y+nodeH/2), int(to.X), int(to.Y+nodeH/2),
			fmt.Sprintf("stroke:%s;stroke-width:2", css(colorEdge)))
	}

	for _, n := range layout.Nodes {
		x, y := int(n.X), int(n.Y)
		canvas.Roundrect(x, y, int(nodeW), int(nodeH), 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(depthColor(n.Depth)), css(colorStroke)))
		canvas.Text(x+10, y+int(nodeH/2)+4, truncate(n.ID, 18),
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorText)))
	}

	canvas.End()
	return nil
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
