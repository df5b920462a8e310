package tui

// UI Text Constants
const (
	TextFooterIdle    = "←/→ choose background | 'g' generate | 'q' quit"
	TextFooterRunning = "Press 'q' to detach (the run continues on the server)"
	TextFooterDone    = "'g' generate again | 'q' quit"

	progressWidth = 40
)
