// Package ui is the terminal front end of the cascade grid.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/cascadegrid/internal/datasource"
	"github.com/vanderheijden86/cascadegrid/pkg/cascade"
	"github.com/vanderheijden86/cascadegrid/pkg/config"
	"github.com/vanderheijden86/cascadegrid/pkg/debug"
	"github.com/vanderheijden86/cascadegrid/pkg/metrics"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
	"github.com/vanderheijden86/cascadegrid/pkg/view"
	"github.com/vanderheijden86/cascadegrid/pkg/watcher"
)

type mode int

const (
	modeGrid mode = iota
	modePicker
	modeAddRows
	modeHelp
	modeStats
)

const (
	idColumnWidth   = 8
	minColumnWidth  = 6
	chromeHeight    = 4 // header, header rule, status, footer
	defaultViewRows = 20
)

// windowMsg carries a fetched window back to the event loop.
type windowMsg struct {
	start int
	rows  []model.Row
	err   error
}

// seedEventMsg carries a notification from the seed watcher.
type seedEventMsg struct {
	event watcher.Event
}

// seedLoadedMsg carries a reloaded seed.
type seedLoadedMsg struct {
	entries []model.OptionNode
	err     error
}

// Option configures a Model.
type Option func(*Model)

// WithSeedWatch merges additions from src whenever w reports a change and
// puts watcher errors on the status line.
func WithSeedWatch(src datasource.Source, w *watcher.Watcher) Option {
	return func(m *Model) {
		m.seed = src
		m.watcher = w
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(m *Model) {
		m.copyFn = fn
	}
}

// WithContext sets the context passed to window fetches and seed reloads.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		m.ctx = ctx
	}
}

// WithTheme overrides the default theme.
func WithTheme(t Theme) Option {
	return func(m *Model) {
		m.theme = t
	}
}

// Model is the bubbletea model for the grid. Every mutation happens in
// Update, on the event loop.
type Model struct {
	ctrl   *cascade.Controller
	view   *view.View
	schema model.Schema
	cfg    config.Config
	theme  Theme

	width  int
	height int

	cursorRow   int
	cursorLevel int
	offset      int

	rows      []model.Row
	rowsStart int
	lines     map[int64]string

	keys     KeyMap
	help     help.Model
	mode     mode
	picker   OptionPicker
	addForm  *AddRowsForm
	helpText string
	helpView viewport.Model

	statusMsg string
	statusErr bool

	seed    datasource.Source
	watcher *watcher.Watcher
	ctx     context.Context
	copyFn  func(string) error
}

// NewModel builds the grid UI over ctrl. v must be registered as a
// listener on ctrl so appends and edits reach it.
func NewModel(ctrl *cascade.Controller, v *view.View, cfg config.Config, opts ...Option) Model {
	m := Model{
		ctrl:        ctrl,
		view:        v,
		schema:      ctrl.Schema(),
		cfg:         cfg,
		theme:       DefaultTheme(lipgloss.DefaultRenderer()),
		keys:        DefaultKeyMap(),
		help:        help.New(),
		cursorLevel: 1,
		lines:       make(map[int64]string),
		ctx:         context.Background(),
		copyFn:      clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init requests the first window and starts watching the seed.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchWindow(), m.watchSeed())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The add-rows form needs every message type, not only keys.
	if m.mode == modeAddRows {
		return m.updateAddRows(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		clear(m.lines)
		m.helpText = ""
		if m.mode == modeHelp {
			m.openHelp()
		}
		m.ensureVisible()
		return m, m.fetchWindow()

	case windowMsg:
		if errors.Is(msg.err, view.ErrSuperseded) {
			return m, nil
		}
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.rows, m.rowsStart = msg.rows, msg.start
		clear(m.lines)
		return m, nil

	case seedEventMsg:
		if msg.event.Kind != watcher.SeedChanged {
			m.setError(errors.New(msg.event.String()))
			return m, m.watchSeed()
		}
		return m, tea.Batch(m.loadSeed(), m.watchSeed())

	case seedLoadedMsg:
		m.mergeSeed(msg)
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modePicker:
			return m.handlePickerKeys(msg)
		case modeHelp:
			switch msg.String() {
			case "esc", "q", "?", "enter":
				m.mode = modeGrid
				return m, nil
			}
			var cmd tea.Cmd
			m.helpView, cmd = m.helpView.Update(msg)
			return m, cmd
		case modeStats:
			switch msg.String() {
			case "esc", "q", "?", "s", "enter":
				m.mode = modeGrid
			}
			return m, nil
		default:
			return m.handleGridKeys(msg)
		}
	}
	return m, nil
}

func (m Model) handleGridKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		return m.moveCursor(-1, 0)
	case key.Matches(msg, m.keys.Down):
		return m.moveCursor(1, 0)
	case key.Matches(msg, m.keys.Left):
		return m.moveCursor(0, -1)
	case key.Matches(msg, m.keys.Right):
		return m.moveCursor(0, 1)
	case key.Matches(msg, m.keys.PageUp):
		return m.moveCursor(-m.visibleRows(), 0)
	case key.Matches(msg, m.keys.PageDown):
		return m.moveCursor(m.visibleRows(), 0)
	case key.Matches(msg, m.keys.Top):
		return m.moveCursor(-m.cursorRow, 0)
	case key.Matches(msg, m.keys.Bottom):
		return m.moveCursor(m.view.Total(), 0)
	case key.Matches(msg, m.keys.Pick):
		return m.openPicker()
	case key.Matches(msg, m.keys.AddRows):
		m.addForm = NewAddRowsForm(m.cfg.Grid.AppendDefault)
		m.mode = modeAddRows
		return m, m.addForm.Init()
	case key.Matches(msg, m.keys.Copy):
		m.copyLineage()
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.openHelp()
		m.mode = modeHelp
		return m, nil
	case key.Matches(msg, m.keys.Stats):
		m.mode = modeStats
		return m, nil
	}
	return m, nil
}

// openHelp renders the help text once per width and sizes the scrolling
// viewport to fit inside the modal.
func (m *Model) openHelp() {
	if m.helpText == "" {
		m.helpText = renderHelp(m.cfg.UI.Theme, m.width)
	}
	width, height := m.width-4, m.height-4
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = defaultViewRows
	}
	m.helpView = viewport.New(width, min(height, lipgloss.Height(m.helpText)))
	m.helpView.SetContent(m.helpText)
}

func (m Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeGrid
		return m, nil
	case "up", "ctrl+p":
		m.picker.MoveUp()
		return m, nil
	case "down", "ctrl+n":
		m.picker.MoveDown()
		return m, nil
	case "enter":
		m.commitPicker()
		return m, nil
	}
	return m, m.picker.UpdateInput(msg)
}

func (m Model) updateAddRows(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
		m.mode = modeGrid
		m.addForm = nil
		return m, nil
	}

	cmd := m.addForm.Update(msg)
	switch m.addForm.State() {
	case huh.StateCompleted:
		m.mode = modeGrid
		n, err := m.addForm.Count()
		m.addForm = nil
		if err != nil {
			m.setError(err)
			return m, nil
		}
		ids, err := m.ctrl.BulkAppendRows(n)
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Added %d rows (%d-%d)", len(ids), ids[0], ids[len(ids)-1]))
		return m, m.fetchWindow()
	case huh.StateAborted:
		m.mode = modeGrid
		m.addForm = nil
		return m, nil
	}
	return m, cmd
}

// moveCursor shifts the cursor and refetches when the window scrolls.
func (m Model) moveCursor(dRow, dLevel int) (tea.Model, tea.Cmd) {
	total := m.view.Total()
	if total == 0 {
		return m, nil
	}
	m.cursorRow = clamp(m.cursorRow+dRow, 0, total-1)
	m.cursorLevel = clamp(m.cursorLevel+dLevel, 1, m.schema.Depth())
	if m.ensureVisible() {
		return m, m.fetchWindow()
	}
	return m, nil
}

// ensureVisible scrolls so the cursor row is on screen and reports
// whether the offset changed.
func (m *Model) ensureVisible() bool {
	vis := m.visibleRows()
	old := m.offset
	if m.cursorRow < m.offset {
		m.offset = m.cursorRow
	}
	if m.cursorRow >= m.offset+vis {
		m.offset = m.cursorRow - vis + 1
	}
	m.offset = clamp(m.offset, 0, max(0, m.view.Total()-1))
	return m.offset != old
}

func (m Model) visibleRows() int {
	if m.height <= 0 {
		return defaultViewRows
	}
	return max(1, m.height-chromeHeight)
}

func (m Model) fetchWindow() tea.Cmd {
	v, ctx := m.view, m.ctx
	start, count := m.offset, m.visibleRows()
	return func() tea.Msg {
		rows, err := v.RequestWindow(ctx, start, count)
		return windowMsg{start: start, rows: rows, err: err}
	}
}

// cursorRowID returns the id of the row under the cursor, if loaded.
func (m Model) cursorRowID() (int64, bool) {
	i := m.cursorRow - m.rowsStart
	if i < 0 || i >= len(m.rows) {
		return 0, false
	}
	return m.rows[i].ID, true
}

func (m Model) openPicker() (tea.Model, tea.Cmd) {
	rowID, ok := m.cursorRowID()
	if !ok {
		return m, nil
	}
	cell, err := m.ctrl.Cell(rowID, m.cursorLevel)
	if err != nil {
		m.setError(err)
		return m, nil
	}
	if !cell.Choices.Enabled {
		m.setError(fmt.Errorf("select %s first: %w", m.schema.Levels[m.cursorLevel-1], model.ErrParentRequired))
		return m, nil
	}
	m.picker = NewOptionPicker(cell, m.schema.Levels[m.cursorLevel], m.theme)
	m.mode = modePicker
	return m, textinput.Blink
}

func (m *Model) commitPicker() {
	m.mode = modeGrid
	entry, ok := m.picker.Selected()
	if !ok {
		return
	}

	rowID, level := m.picker.rowID, m.picker.level
	var (
		affected []int64
		err      error
	)
	if entry.node != nil {
		affected, err = m.ctrl.Select(rowID, level, entry.node)
	} else {
		affected, err = m.ctrl.CreateAndSelect(rowID, level, entry.create)
	}
	if err != nil {
		m.setError(err)
		return
	}

	m.redrawDirty(affected)
	if entry.node != nil {
		m.setStatus(fmt.Sprintf("Row %d: %s = %s", rowID, m.schema.Levels[level], entry.node.ID))
	} else {
		m.setStatus(fmt.Sprintf("Row %d: created %s", rowID, entry.create))
	}
}

// redrawDirty drops cached lines for the rows an edit affected. The view's
// dirty set only covers cached blocks, so the ids returned by the edit are
// dropped as well.
func (m *Model) redrawDirty(affected []int64) {
	dirty := m.view.TakeDirty()
	for _, id := range dirty {
		delete(m.lines, id)
	}
	for _, id := range affected {
		delete(m.lines, id)
	}
	debug.Log("ui: redraw %d rows (%d cached)", len(affected), len(dirty))
}

func (m *Model) copyLineage() {
	rowID, ok := m.cursorRowID()
	if !ok {
		return
	}
	row, err := m.ctrl.Store().Get(rowID)
	if err != nil {
		m.setError(err)
		return
	}
	text := lineageText(row)
	if err := m.copyFn(text); err != nil {
		m.setError(fmt.Errorf("clipboard: %w", err))
		return
	}
	m.setStatus("Copied " + text)
}

// lineageText formats a row as "id: a > b > c".
func lineageText(row model.Row) string {
	parts := row.Lineage()
	if len(parts) == 0 {
		return fmt.Sprintf("%d: (empty)", row.ID)
	}
	return fmt.Sprintf("%d: %s", row.ID, strings.Join(parts, " > "))
}

func (m Model) watchSeed() tea.Cmd {
	w, ctx := m.watcher, m.ctx
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case ev := <-w.Events():
			return seedEventMsg{event: ev}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) loadSeed() tea.Cmd {
	src, ctx := m.seed, m.ctx
	return func() tea.Msg {
		entries, err := datasource.Load(ctx, src)
		return seedLoadedMsg{entries: entries, err: err}
	}
}

// mergeSeed inserts options added to the seed since the last load.
func (m *Model) mergeSeed(msg seedLoadedMsg) {
	if msg.err != nil {
		m.setError(msg.err)
		return
	}
	tree := m.ctrl.Tree()
	diff := datasource.Diff(tree, msg.entries)
	n, err := datasource.Apply(tree, msg.entries)
	if err != nil {
		m.setError(err)
		return
	}
	if n > 0 {
		m.setStatus("Seed reloaded: " + diff.Summary())
	}
}

func (m *Model) setStatus(s string) {
	m.statusMsg, m.statusErr = s, false
}

func (m *Model) setError(err error) {
	m.statusMsg, m.statusErr = err.Error(), true
	debug.Log("ui: %v", err)
}

// View renders the current screen.
func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	switch m.mode {
	case modePicker:
		return m.overlay(m.picker.View())
	case modeAddRows:
		if m.addForm != nil {
			return m.overlay(m.theme.Modal.Render(m.addForm.View()))
		}
	case modeHelp:
		return m.overlay(m.theme.Modal.Render(m.helpView.View()))
	case modeStats:
		return m.overlay(m.theme.Modal.Render(m.renderStats()))
	}
	return m.renderGrid()
}

func (m Model) overlay(content string) string {
	if m.width <= 0 || m.height <= 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) columnWidth() int {
	depth := m.schema.Depth()
	width := m.width
	if width <= 0 {
		width = 120
	}
	return max(minColumnWidth, (width-idColumnWidth-depth)/depth)
}

func (m Model) renderGrid() string {
	colW := m.columnWidth()
	var b strings.Builder

	header := []string{fitCell(m.schema.Levels[0], idColumnWidth)}
	for level := 1; level <= m.schema.Depth(); level++ {
		header = append(header, fitCell(m.schema.Levels[level], colW))
	}
	b.WriteString(m.theme.Header.Render(strings.Join(header, " ")))
	b.WriteString("\n")

	for i, row := range m.rows {
		if m.rowsStart+i == m.cursorRow {
			b.WriteString(m.renderRow(row, colW, m.cursorLevel))
		} else if line, ok := m.lines[row.ID]; ok {
			b.WriteString(line)
		} else {
			line := m.renderRow(row, colW, 0)
			m.lines[row.ID] = line
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	for i := len(m.rows); i < m.visibleRows(); i++ {
		b.WriteString("\n")
	}

	status := m.theme.Status.Render(m.statusMsg)
	if m.statusErr {
		status = m.theme.Error.Render(m.statusMsg)
	}
	b.WriteString(status)
	b.WriteString("\n")

	footer := truncate(fmt.Sprintf("row %d/%d · %d options · ",
		min(m.cursorRow+1, m.view.Total()), m.view.Total(), m.ctrl.Tree().Len()), max(20, m.width))
	b.WriteString(m.theme.Status.Faint(true).Render(footer))
	// help truncates its own styled output to the remaining width.
	if m.width > 0 {
		m.help.Width = max(1, m.width-runewidth.StringWidth(footer))
	}
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// renderRow draws one grid line; cursorLevel 0 means no cursor in this row.
func (m Model) renderRow(row model.Row, colW, cursorLevel int) string {
	cells := []string{m.theme.IDCell.Render(fitCell(strconv.FormatInt(row.ID, 10), idColumnWidth))}
	for level := 1; level <= m.schema.Depth(); level++ {
		enabled := level == 1 || row.Cell(level-1) != nil
		text := ""
		if n := row.Cell(level); n != nil {
			text = n.ID
		} else if !enabled {
			text = "-"
		}
		cell := fitCell(text, colW)
		switch {
		case level == cursorLevel:
			cells = append(cells, m.theme.Cursor.Render(cell))
		case !enabled:
			cells = append(cells, m.theme.Disabled.Render(cell))
		default:
			cells = append(cells, m.theme.Cell.Render(cell))
		}
	}
	return strings.Join(cells, " ")
}

func (m Model) renderStats() string {
	var b strings.Builder
	b.WriteString(m.theme.Renderer.NewStyle().Bold(true).Foreground(m.theme.Primary).Render("Stats"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "rows:           %d\n", m.view.Total())
	fmt.Fprintf(&b, "options:        %d\n", m.ctrl.Tree().Len())
	fmt.Fprintf(&b, "cached blocks:  %v (max %d × %d rows)\n", m.view.CachedBlocks(), m.view.MaxCachedBlocks(), m.view.BlockSize())
	hits, misses := view.BlockPoolStats()
	fmt.Fprintf(&b, "block pool:     %d reused, %d allocated\n", hits, misses)
	for _, c := range metrics.AllCacheStats() {
		fmt.Fprintf(&b, "%-15s %d hits, %d misses, %d evictions (%.0f%%)\n", c.Name+":", c.Hits, c.Misses, c.Evictions, c.HitRatio*100)
	}
	if !metrics.Enabled() {
		b.WriteString("\ntimings disabled (CASCADE_METRICS=0)")
		return b.String()
	}
	b.WriteString("\n")
	for _, s := range metrics.AllTimingStats() {
		fmt.Fprintf(&b, "%-15s n=%-6d avg=%.3fms max=%.3fms\n", s.Name, s.Count, s.AvgMs, s.MaxMs)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Cursor returns the cursor position and level.
func (m Model) Cursor() (row, level int) {
	return m.cursorRow, m.cursorLevel
}

// StatusMessage returns the status line and whether it is an error.
func (m Model) StatusMessage() (string, bool) {
	return m.statusMsg, m.statusErr
}

// VisibleRows returns the rows of the last loaded window.
func (m Model) VisibleRows() []model.Row {
	return m.rows
}
