package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case CategoriesMsg:
		return m.handleCategories(msg)
	case CreatedMsg:
		return m.handleCreated(msg)
	case StatusUpdateMsg:
		return m.handleStatus(msg)
	case TickMsg:
		if m.running() {
			return m, pollStatus(m.Client, m.RunID)
		}
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "left", "h":
		if !m.running() && len(m.Categories) > 0 {
			m.Selected = (m.Selected + len(m.Categories) - 1) % len(m.Categories)
		}
	case "right", "l", "tab":
		if !m.running() && len(m.Categories) > 0 {
			m.Selected = (m.Selected + 1) % len(m.Categories)
		}
	case "g", "enter":
		if m.running() || !m.Connected {
			return m, nil
		}
		cat, ok := m.selectedCategory()
		if !ok {
			return m, nil
		}
		if m.Script == "" {
			m.Err = errors.New("no script given; pass -script or -file")
			return m, nil
		}
		m.Err = nil
		m.Status = nil
		return m, createReel(m.Client, m.Script, string(cat.ID))
	}
	return m, nil
}

func (m Model) handleCategories(msg CategoriesMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		m.Err = msg.Err
		return m, nil
	}
	m.Connected = true
	m.Categories = msg.Categories
	// Start on the first category that has clips.
	for i, c := range m.Categories {
		if c.Clips > 0 {
			m.Selected = i
			break
		}
	}
	return m, nil
}

func (m Model) handleCreated(msg CreatedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Err = msg.Err
		return m, nil
	}
	m.RunID = msg.RunID
	return m, tea.Batch(pollStatus(m.Client, m.RunID), tickCmd())
}

func (m Model) handleStatus(msg StatusUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Err = msg.Err
		return m, tickCmd()
	}
	m.Err = nil
	m.Status = msg.Status
	if m.Status.State.Terminal() {
		return m, nil
	}
	return m, tickCmd()
}
