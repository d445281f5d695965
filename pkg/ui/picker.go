package ui

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/cascadegrid/pkg/cascade"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
)

// pickerEntry is one line of the picker: an existing option, or the
// synthetic "create" line when create is set.
type pickerEntry struct {
	node   *model.OptionNode
	create string
}

// OptionPicker lists the legal options of one cell, filtered by the text
// input. Typing a name that matches nothing offers to create it.
type OptionPicker struct {
	rowID     int64
	level     int
	levelName string
	current   *model.OptionNode
	all       []*model.OptionNode
	canCreate bool
	filtered  []pickerEntry
	input     textinput.Model
	selected  int
	theme     Theme
}

// NewOptionPicker opens a picker for the given cell state.
func NewOptionPicker(cell cascade.CellState, levelName string, theme Theme) OptionPicker {
	ti := textinput.New()
	ti.Placeholder = "filter or type a new option..."
	ti.CharLimit = 64
	ti.Width = 32
	ti.Focus()

	p := OptionPicker{
		rowID:     cell.RowID,
		level:     cell.Level,
		levelName: levelName,
		current:   cell.Value,
		all:       cell.Choices.Nodes,
		canCreate: cell.CanCreate,
		input:     ti,
		theme:     theme,
	}
	p.filter()
	for i, e := range p.filtered {
		if e.node != nil && cell.Value != nil && e.node.ID == cell.Value.ID {
			p.selected = i
		}
	}
	return p
}

// Query returns the trimmed text input.
func (p *OptionPicker) Query() string {
	return strings.TrimSpace(p.input.Value())
}

// MoveUp moves selection up
func (p *OptionPicker) MoveUp() {
	if p.selected > 0 {
		p.selected--
	}
}

// MoveDown moves selection down
func (p *OptionPicker) MoveDown() {
	if p.selected < len(p.filtered)-1 {
		p.selected++
	}
}

// Selected returns the highlighted entry; ok is false when the list is empty.
func (p *OptionPicker) Selected() (pickerEntry, bool) {
	if p.selected < 0 || p.selected >= len(p.filtered) {
		return pickerEntry{}, false
	}
	return p.filtered[p.selected], true
}

// UpdateInput feeds a key to the text input and refilters.
func (p *OptionPicker) UpdateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.filter()
	return cmd
}

// SetQuery replaces the text input.
func (p *OptionPicker) SetQuery(q string) {
	p.input.SetValue(q)
	p.filter()
}

func (p *OptionPicker) filter() {
	query := p.Query()
	p.filtered = p.filtered[:0]

	if query == "" {
		for _, n := range p.all {
			p.filtered = append(p.filtered, pickerEntry{node: n})
		}
		p.selected = clamp(p.selected, 0, len(p.filtered)-1)
		return
	}

	type scored struct {
		node  *model.OptionNode
		score int
	}
	var matches []scored
	exact := false
	for _, n := range p.all {
		if n.ID == query {
			exact = true
		}
		if s := fuzzyScore(n.ID, query); s > 0 {
			matches = append(matches, scored{n, s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	for _, m := range matches {
		p.filtered = append(p.filtered, pickerEntry{node: m.node})
	}
	if p.canCreate && !exact {
		p.filtered = append(p.filtered, pickerEntry{create: query})
	}
	p.selected = clamp(p.selected, 0, len(p.filtered)-1)
}

// fuzzyScore returns a score for how well query matches label (0 = no match).
func fuzzyScore(label, query string) int {
	label = strings.ToLower(label)
	query = strings.ToLower(query)

	if label == query {
		return 1000
	}
	if strings.HasPrefix(label, query) {
		return 500 + len(query)
	}
	if strings.Contains(label, query) {
		return 200 + len(query)
	}

	li, qi := 0, 0
	score := 0
	consecutive := 0
	lastMatch := -1
	for li < len(label) && qi < len(query) {
		if label[li] == query[qi] {
			qi++
			s := 10
			if lastMatch == li-1 {
				consecutive++
				s += consecutive * 5
			} else {
				consecutive = 0
			}
			if li == 0 || !unicode.IsLetter(rune(label[li-1])) {
				s += 15
			}
			score += s
			lastMatch = li
		}
		li++
	}
	if qi == len(query) {
		return score
	}
	return 0
}

// View renders the picker overlay.
func (p *OptionPicker) View() string {
	t := p.theme
	const boxWidth = 40
	const maxVisible = 10

	var lines []string
	title := fmt.Sprintf("Row %d · %s", p.rowID, p.levelName)
	lines = append(lines, t.Renderer.NewStyle().Foreground(t.Primary).Bold(true).Render(title))
	if p.current != nil {
		lines = append(lines, t.Status.Render("current: "+p.current.ID))
	}
	lines = append(lines, "")

	inputStyle := t.Renderer.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(t.Secondary).
		Padding(0, 1).
		Width(boxWidth - 6)
	lines = append(lines, inputStyle.Render(p.input.View()), "")

	if len(p.filtered) == 0 {
		lines = append(lines, t.Disabled.Italic(true).Render("  No options"))
	} else {
		start := 0
		if p.selected >= maxVisible {
			start = p.selected - maxVisible + 1
		}
		end := min(start+maxVisible, len(p.filtered))
		for i := start; i < end; i++ {
			e := p.filtered[i]
			label := ""
			if e.node != nil {
				label = e.node.ID
			} else {
				label = fmt.Sprintf("+ create %q", e.create)
			}
			label = truncate(label, boxWidth-6)
			if i == p.selected {
				lines = append(lines, t.Cursor.Render("▸ "+label))
			} else {
				lines = append(lines, t.Base.Render("  "+label))
			}
		}
		if len(p.filtered) > maxVisible {
			lines = append(lines, t.Status.Render(fmt.Sprintf("  %d/%d", p.selected+1, len(p.filtered))))
		}
	}

	lines = append(lines, "", t.Status.Italic(true).Render("enter select · esc cancel"))
	return t.Modal.Width(boxWidth).Render(strings.Join(lines, "\n"))
}
