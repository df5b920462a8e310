package tui

import (
	"fmt"
	"strings"

	"reelgen/api"
	"reelgen/pipeline"

	tea "github.com/charmbracelet/bubbletea"
)

// Model is the TUI state. The server owns the run; the model only mirrors
// the last polled status.
type Model struct {
	Client *ReelClient
	Script string

	Categories []api.CategoryResponse
	Selected   int

	RunID  string
	Status *pipeline.Status
	Err    error

	Connected bool
}

// NewModel creates a model that narrates script through the API at baseURL.
func NewModel(baseURL, script string) Model {
	return Model{
		Client: NewReelClient(baseURL),
		Script: script,
	}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return fetchCategories(m.Client)
}

func (m Model) running() bool {
	return m.RunID != "" && (m.Status == nil || !m.Status.State.Terminal())
}

func (m Model) selectedCategory() (api.CategoryResponse, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Categories) {
		return api.CategoryResponse{}, false
	}
	return m.Categories[m.Selected], true
}

// getStateText returns the headline for the current run.
func (m Model) getStateText() string {
	if !m.Connected {
		if m.Err != nil {
			return ErrorStyle.Render("❌ Not connected: " + m.Err.Error())
		}
		return InfoStyle.Render("Connecting...")
	}
	if m.RunID == "" || m.Status == nil {
		if m.RunID != "" {
			return StatusStyle.Render("⏳ Submitted " + m.RunID)
		}
		return HighlightStyle.Render("👋 Ready to generate!")
	}

	switch m.Status.State {
	case pipeline.StateSelectingAsset:
		return StatusStyle.Render("🎞  Selecting background video...")
	case pipeline.StateSynthesizing:
		return StatusStyle.Render("🎙  Generating voice narration...")
	case pipeline.StateProbingDuration:
		return StatusStyle.Render("⏱  Measuring narration...")
	case pipeline.StateSynthesizingSubtitles:
		return StatusStyle.Render("💬 Generating captions...")
	case pipeline.StateStagingResources:
		return StatusStyle.Render("📦 Preparing media engine...")
	case pipeline.StateEncoding:
		return StatusStyle.Render("🎬 Merging video, audio and captions...")
	case pipeline.StateReadingOutput, pipeline.StateCleaningUp:
		return StatusStyle.Render("🧹 Finishing up...")
	case pipeline.StateSucceeded:
		return HighlightStyle.Render("✅ COMPLETE")
	case pipeline.StateFailed:
		return ErrorStyle.Render(fmt.Sprintf("❌ Error: %s", m.Status.Error))
	default:
		return InfoStyle.Render(string(m.Status.State))
	}
}

// progressBar renders p percent as a fixed-width bar.
func progressBar(p, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	filled := p * width / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %3d%%", p)
}
