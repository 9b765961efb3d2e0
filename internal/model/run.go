package model

import "time"

// RunStatus tracks a crawl run's lifecycle.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// CrawlRun records one crawl invocation against a target URL.
type CrawlRun struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Status     RunStatus `json:"status"`
	Endpoint   string    `json:"endpoint,omitempty"` // proxy that served the fetch
	Pages      int       `json:"pages"`
	Posts      int       `json:"posts"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Document is a fetched page body ready for extraction. Body is decoded
// to UTF-8 regardless of the transport charset.
type Document struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Body       string        `json:"-"`
	Endpoint   string        `json:"endpoint,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	FetchedAt  time.Time     `json:"fetched_at"`
}
