package output

import (
	"fmt"
	"strings"

	"github.com/SirZenith/gimme/harvest"
	tea "github.com/charmbracelet/bubbletea"
)

const pickerPageSize = 10

// pickerModel is a multi-select list of file options.
type pickerModel struct {
	options []*harvest.FileOption
	jpgIDs  map[string]bool
	cursor  int
	checked map[int]bool

	confirmed bool
	canceled  bool
}

func newPickerModel(registry *harvest.Registry) *pickerModel {
	options := registry.Options()
	m := &pickerModel{
		options: options,
		jpgIDs:  map[string]bool{},
		checked: map[int]bool{},
	}

	for _, id := range registry.MatchIDs(harvest.JPGExts...) {
		m.jpgIDs[id] = true
	}

	// options dispatched before can not be picked again
	for i, opt := range options {
		if opt.Selected() {
			m.checked[i] = true
		}
	}

	return m
}

func (m *pickerModel) Init() tea.Cmd {
	return nil
}

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "q", "esc":
		m.canceled = true
		return m, tea.Quit
	case "enter":
		m.confirmed = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case " ", "x":
		if len(m.options) > 0 && !m.options[m.cursor].Selected() {
			m.checked[m.cursor] = !m.checked[m.cursor]
		}
	case "a":
		m.checkWhere(func(*harvest.FileOption) bool { return true })
	case "J":
		m.checkWhere(func(opt *harvest.FileOption) bool { return m.jpgIDs[opt.ID] })
	}

	return m, nil
}

func (m *pickerModel) checkWhere(pred func(*harvest.FileOption) bool) {
	for i, opt := range m.options {
		if pred(opt) {
			m.checked[i] = true
		}
	}
}

func (m *pickerModel) View() string {
	if m.confirmed || m.canceled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Select files to download"))
	b.WriteString(" ")
	b.WriteString(badgeStyle.Render(fmt.Sprintf("%d", len(m.options))))
	b.WriteString("\n\n")

	if len(m.options) == 0 {
		b.WriteString("No files found.\n")
	}

	st := max(0, m.cursor-pickerPageSize/2)
	ed := min(len(m.options), st+pickerPageSize)
	for i := st; i < ed; i++ {
		cursor := "  "
		if i == m.cursor {
			cursor = idStyle.Render("> ")
		}

		b.WriteString(cursor)
		b.WriteString(renderOption(m.options[i], m.checked[i]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space: toggle • a: all • J: all jpg • enter: download • q: quit"))
	b.WriteString("\n")

	return b.String()
}

// pickedIDs returns ids of newly checked options in list order.
func (m *pickerModel) pickedIDs() []string {
	result := []string{}
	for i, opt := range m.options {
		if m.checked[i] && !opt.Selected() {
			result = append(result, opt.ID)
		}
	}
	return result
}

// Pick lets user choose file options interactively, returns ids picked. Empty
// result with nil error means user quit without picking.
func Pick(registry *harvest.Registry) ([]string, error) {
	model := newPickerModel(registry)

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return nil, fmt.Errorf("file picker failed: %s", errorStyle.Render(err.Error()))
	}

	if !model.confirmed {
		return nil, nil
	}

	return model.pickedIDs(), nil
}
