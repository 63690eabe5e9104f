package bookpkg

import (
	"time"

	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
)

// Status is the stage an Event reports.
type Status string

const (
	StatusStarted   Status = "started"
	StatusFallback  Status = "fallback" // a candidate failed; the next one is tried
	StatusResolved  Status = "resolved"
	StatusMissing   Status = "missing" // every candidate failed
	StatusCompleted Status = "completed"
	StatusCached    Status = "cached" // restored from the snapshot store
)

// Event reports assembly progress. Type is empty for package-level events.
type Event struct {
	AssemblyID string        `json:"assemblyId,omitempty"`
	Key        string        `json:"key"`
	Type       resource.Type `json:"type,omitempty"`
	Status     Status        `json:"status"`
	Source     string        `json:"source,omitempty"`
	Error      string        `json:"error,omitempty"`
	Total      int           `json:"total,omitempty"`
	Resolved   int           `json:"resolved,omitempty"`
	Time       time.Time     `json:"time"`
}

// Observer receives assembly events. Per-type events arrive from concurrent
// goroutines, so observers must be safe for concurrent use.
type Observer func(Event)
