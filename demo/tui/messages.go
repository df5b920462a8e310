package tui

import (
	"time"

	"reelgen/api"
	"reelgen/pipeline"
)

// Messages for the tea program (polling-based)

// CategoriesMsg carries the category list fetched at startup.
type CategoriesMsg struct {
	Categories []api.CategoryResponse
	Err        error
}

// CreatedMsg is sent once the API accepted a reel request.
type CreatedMsg struct {
	RunID string
	Err   error
}

// StatusUpdateMsg is sent when we receive the status of the current run.
type StatusUpdateMsg struct {
	Status *pipeline.Status
	Err    error
}

// TickMsg is sent periodically to trigger polling
type TickMsg struct {
	Time time.Time
}
