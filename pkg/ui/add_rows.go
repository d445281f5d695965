package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// MaxAppendRows caps a single add-rows request.
const MaxAppendRows = 1_000_000

// AddRowsForm asks how many empty rows to append.
type AddRowsForm struct {
	form  *huh.Form
	value string
}

// NewAddRowsForm builds the form prefilled with def.
func NewAddRowsForm(def int) *AddRowsForm {
	f := &AddRowsForm{value: strconv.Itoa(def)}
	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("count").
				Title("Add rows").
				Description("Number of empty rows to append").
				Value(&f.value).
				Validate(validateRowCount),
		),
	).WithTheme(huh.ThemeDracula()).WithShowHelp(false)
	return f
}

func validateRowCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return errors.New("enter a positive whole number")
	}
	if n > MaxAppendRows {
		return fmt.Errorf("at most %d rows at once", MaxAppendRows)
	}
	return nil
}

// Init starts the form.
func (f *AddRowsForm) Init() tea.Cmd {
	return f.form.Init()
}

// Update forwards every message to the form; huh needs its internal
// messages as well as keys.
func (f *AddRowsForm) Update(msg tea.Msg) tea.Cmd {
	m, cmd := f.form.Update(msg)
	if form, ok := m.(*huh.Form); ok {
		f.form = form
	}
	return cmd
}

// State reports whether the form is still running.
func (f *AddRowsForm) State() huh.FormState {
	return f.form.State
}

// Count returns the validated row count.
func (f *AddRowsForm) Count() (int, error) {
	if err := validateRowCount(f.value); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(f.value))
}

// View renders the form.
func (f *AddRowsForm) View() string {
	return f.form.View()
}
