package models

import "time"

// Phase is the lifecycle state of a run.
type Phase string

const (
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseError     Phase = "error"
)

// Terminal reports whether no further transitions are allowed.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

// RunStatus is the externally visible progress of a run.
type RunStatus struct {
	RunID                    string    `json:"runId,omitempty"`
	Phase                    Phase     `json:"phase"`
	TargetsProcessed         int       `json:"targetsProcessed"`
	TargetsTotal             int       `json:"targetsTotal"`
	CurrentTarget            *Target   `json:"currentTarget"`
	Message                  string    `json:"message"`
	ItemsCollected           int       `json:"itemsCollected"`
	ElapsedSeconds           float64   `json:"elapsedSeconds"`
	EstimatedTotalSeconds    *float64  `json:"estimatedTotalSeconds"`
	ETASeconds               *float64  `json:"etaSeconds"`
	ThroughputItemsPerSecond float64   `json:"throughputItemsPerSecond"`
	StartedAt                time.Time `json:"startedAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}
