package model

import "time"

// RunStatus represents the lifecycle state of a scrape run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusStopped  RunStatus = "stopped"
	RunStatusFailed   RunStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusFinished || s == RunStatusStopped || s == RunStatusFailed
}

// ScrapeRun is the persisted status of a brand scrape invocation.
type ScrapeRun struct {
	ID            string    `json:"id"`
	Brand         string    `json:"brand"`
	Target        int       `json:"target"`
	Status        RunStatus `json:"status"`
	Scraped       int       `json:"scraped"`
	Failed        int       `json:"failed"`
	StopRequested bool      `json:"stop_requested"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
