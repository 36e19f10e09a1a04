package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a persisted pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RecordPrediction is one harmonized record's predicted stock under the
// chosen model at its depth, with the residual against the observed
// stock. Keyed by record ID.
type RecordPrediction struct {
	RecordID  uuid.UUID `json:"record_id"`
	Predicted float64   `json:"predicted_t_ha"`
	Residual  float64   `json:"residual_t_ha"`
}

// Run is one persisted execution of the estimation pipeline: a config
// snapshot for reproducibility plus the per-depth selections and the
// profile aggregate.
type Run struct {
	ID         uuid.UUID         `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	Status     RunStatus         `json:"status"`
	Seed       int64             `json:"seed"`
	Covariates []string          `json:"covariates"`
	Depths     []SelectionResult `json:"depths"`
	Profile    *ProfileStock     `json:"profile,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// NewRun creates a running Run with a fresh ID.
func NewRun(seed int64, covariates []string) *Run {
	return &Run{
		ID:         uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Status:     RunStatusRunning,
		Seed:       seed,
		Covariates: covariates,
	}
}
