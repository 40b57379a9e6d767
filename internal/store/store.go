// Package store persists analysis run history so workflow invocations can
// be audited after the fact.
package store

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded analysis invocation.
type Run struct {
	ID         string          `json:"id"`
	Shapefile  string          `json:"shapefile"`
	Field      string          `json:"field"`
	WeightType string          `json:"weight_type"`
	Status     RunStatus       `json:"status"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// RunFilter narrows ListRuns results. Zero values match everything.
type RunFilter struct {
	Status RunStatus
	Field  string
	Limit  int
}
