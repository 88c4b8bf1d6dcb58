// Package jobs hosts the background worker and its task definitions.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFXWarmup is the task type for pre-populating the FX rate cache.
	TaskFXWarmup = "fx:warmup"
)

// FXWarmupPayload scopes a warmup run. An empty payload warms every pair
// referenced by a pending claim.
type FXWarmupPayload struct {
	Pairs [][2]string `json:"pairs,omitempty"`
}

// NewFXWarmupTask constructs an Asynq task.
func NewFXWarmupTask(payload FXWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFXWarmup, data), nil
}
