package tui

import (
	"fmt"
	"strings"

	"reelgen/pipeline"
)

const maxVisibleLogs = 8

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("🎬 Reel Generator"))
	b.WriteString("\n\n")

	b.WriteString(m.getStateText())
	b.WriteString("\n\n")

	if len(m.Categories) > 0 {
		b.WriteString(m.renderCategories())
		b.WriteString("\n\n")
	}

	if m.Status != nil {
		b.WriteString(ProgressStyle.Render(progressBar(m.Status.Progress, progressWidth)))
		b.WriteString("\n\n")
	}

	if m.Status != nil && len(m.Status.Logs) > 0 {
		b.WriteString(InfoStyle.Render("📝 Recent Activity:"))
		b.WriteString("\n")
		logs := m.Status.Logs
		if len(logs) > maxVisibleLogs {
			logs = logs[len(logs)-maxVisibleLogs:]
		}
		for _, entry := range logs {
			line := fmt.Sprintf("   %s %s", entry.Timestamp.Format("15:04:05"), entry.Message)
			b.WriteString(InfoStyle.Render(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.Status != nil && m.Status.State == pipeline.StateSucceeded {
		b.WriteString(BoxStyle.Render(m.formatResult()))
		b.WriteString("\n\n")
	}

	if m.Err != nil && m.Connected {
		b.WriteString(ErrorStyle.Render(m.Err.Error()))
		b.WriteString("\n\n")
	}

	switch {
	case m.running():
		b.WriteString(InfoStyle.Render(TextFooterRunning))
	case m.Status != nil && m.Status.State.Terminal():
		b.WriteString(HighlightStyle.Render(TextFooterDone))
	default:
		b.WriteString(InfoStyle.Render(TextFooterIdle))
	}
	return b.String()
}

func (m Model) renderCategories() string {
	parts := make([]string, 0, len(m.Categories))
	for i, c := range m.Categories {
		label := fmt.Sprintf("%s (%d)", c.Name, c.Clips)
		if i == m.Selected {
			parts = append(parts, HighlightStyle.Render(label))
		} else {
			parts = append(parts, InfoStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) formatResult() string {
	var b strings.Builder
	b.WriteString(HighlightStyle.Render("Reel ready"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Run: %s\n", m.RunID)
	fmt.Fprintf(&b, "Download: %s\n", m.Client.VideoURL(m.RunID))
	for _, w := range m.Status.Warnings {
		b.WriteString(WarningStyle.Render("⚠ " + w))
		b.WriteString("\n")
	}
	return b.String()
}
