// Package events defines the Kafka messages around pipeline runs: requests
// consumed by serve mode and the per-kind outcome events published after
// every run.
package events

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
)

type EventType string

const (
	EventRunCompleted EventType = "run_completed"
	EventRunFailed    EventType = "run_failed"
)

// RunRequest asks serve mode to run the pipeline. Empty Kinds and Paths fall
// back to the configured values.
type RunRequest struct {
	RequestID string   `json:"request_id"`
	Kinds     []string `json:"kinds,omitempty"`
	Paths     []string `json:"paths,omitempty"`
	Replace   bool     `json:"replace,omitempty"`
}

// Validate rejects unknown kinds.
func (r RunRequest) Validate() error {
	for _, k := range r.Kinds {
		if _, err := frequency.ParseKind(k); err != nil {
			return fmt.Errorf("request %s: %w", r.RequestID, err)
		}
	}
	return nil
}

// RunEvent reports the outcome of one kind within a run.
type RunEvent struct {
	Type       EventType                  `json:"type"`
	RunID      string                     `json:"run_id"`
	RequestID  string                     `json:"request_id,omitempty"`
	Kind       frequency.Kind             `json:"kind"`
	Table      string                     `json:"table"`
	Lines      int64                      `json:"lines"`
	Terms      int64                      `json:"terms"`
	Distinct   int                        `json:"distinct"`
	Rows       int                        `json:"rows"`
	Categories map[frequency.Category]int `json:"categories,omitempty"`
	Stage      string                     `json:"stage,omitempty"`
	Error      string                     `json:"error,omitempty"`
	DurationMs int64                      `json:"duration_ms"`
	Timestamp  time.Time                  `json:"timestamp"`
}
