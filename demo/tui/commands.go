package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const pollInterval = 500 * time.Millisecond

func fetchCategories(client *ReelClient) tea.Cmd {
	return func() tea.Msg {
		cats, err := client.Categories()
		return CategoriesMsg{Categories: cats, Err: err}
	}
}

func createReel(client *ReelClient, script, category string) tea.Cmd {
	return func() tea.Msg {
		id, err := client.Create(script, category)
		return CreatedMsg{RunID: id, Err: err}
	}
}

func pollStatus(client *ReelClient, runID string) tea.Cmd {
	return func() tea.Msg {
		status, err := client.Status(runID)
		return StatusUpdateMsg{Status: status, Err: err}
	}
}

// tickCmd creates a command that ticks every pollInterval
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
