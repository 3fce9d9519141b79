package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/session"
)

// ErrAborted is returned when the user quits the picker with ctrl+c.
var ErrAborted = errors.New("selection aborted")

type pickerModel struct {
	req     session.Request
	filter  textinput.Model
	visible []catalog.Show
	cursor  int
	choice  *catalog.Show
	skipped bool
	aborted bool
}

func newPicker(req session.Request) pickerModel {
	ti := textinput.New()
	ti.Placeholder = "type to filter"
	ti.Prompt = "filter: "
	ti.CharLimit = 64
	ti.Focus()

	m := pickerModel{
		req:     req,
		filter:  ti,
		visible: req.Candidates,
	}
	for i, c := range req.Candidates {
		if c.ID == req.Suggested {
			m.cursor = i
		}
	}
	return m
}

func (m pickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		case "esc":
			m.skipped = true
			return m, tea.Quit
		case "enter":
			if len(m.visible) == 0 {
				return m, nil
			}
			show := m.visible[m.cursor]
			m.choice = &show
			return m, tea.Quit
		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+n":
			if m.cursor < len(m.visible)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *pickerModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if q == "" {
		m.visible = m.req.Candidates
	} else {
		m.visible = m.visible[:0:0]
		for _, s := range m.req.Candidates {
			if strings.Contains(strings.ToLower(s.String()), q) {
				m.visible = append(m.visible, s)
			}
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
}

func (m pickerModel) View() string {
	var sb strings.Builder
	files := "file"
	if len(m.req.EntryIDs) != 1 {
		files = "files"
	}
	fmt.Fprintf(&sb, "%s %s (%d %s)\n\n",
		Action("Which show is"), Show(fmt.Sprintf("%q?", m.req.Query)), len(m.req.EntryIDs), files)
	sb.WriteString(m.filter.View())
	sb.WriteString("\n\n")

	if len(m.visible) == 0 {
		sb.WriteString(Dim("  no candidates match\n"))
	}
	for i, s := range m.visible {
		line := fmt.Sprintf("%s  %s", s.String(), Dim(fmt.Sprintf("#%d", s.ID)))
		if s.ID == m.req.Suggested {
			line += " " + Info("(year matches)")
		}
		if i == m.cursor {
			sb.WriteString(paint(roleCursor, "> ") + line + "\n")
		} else {
			sb.WriteString("  " + line + "\n")
		}
	}

	sb.WriteString("\n" + Dim("↑/↓ move • enter choose • esc skip • ctrl+c abort") + "\n")
	return sb.String()
}

// PickShow asks the user to choose one candidate for req. ok is false when
// the user skipped the query.
func PickShow(req session.Request) (show catalog.Show, ok bool, err error) {
	final, err := tea.NewProgram(newPicker(req)).Run()
	if err != nil {
		return catalog.Show{}, false, fmt.Errorf("show picker: %w", err)
	}
	m := final.(pickerModel)
	switch {
	case m.aborted:
		return catalog.Show{}, false, ErrAborted
	case m.choice == nil:
		return catalog.Show{}, false, nil
	}
	return *m.choice, true, nil
}
