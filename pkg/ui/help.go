package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# Cascade Grid

Each row picks one option per column. A column only offers the children
of the option chosen to its left, and changing a column clears every
column after it.

## Moving

| Key | Action |
|-----|--------|
| ↑ ↓ ← → / hjkl | move the cursor |
| pgup pgdown | page |
| g G | first or last row |

## Editing

| Key | Action |
|-----|--------|
| enter | open the option picker |
| type in picker | filter, or name a new option |
| a | append empty rows |
| y | copy the row's lineage |

## Other

| Key | Action |
|-----|--------|
| s | cache and timing stats |
| ? | this help |
| q | quit |
`

// renderHelp renders the help text with the given glamour style. Unknown
// styles fall back to the raw markdown.
func renderHelp(style string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(min(width-8, 72)),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return strings.TrimRight(out, " \n\r\t")
}
