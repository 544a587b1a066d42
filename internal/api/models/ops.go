// Package models provides request and response models for the AirLens API.
package models

import "time"

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    time.Time              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       time.Time         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Feeds      []FeedStatus      `json:"feeds"`
}

// SubsystemStatus represents the status of an internal subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// FeedStatus represents the status of an upstream data feed.
type FeedStatus struct {
	Feed          string       `json:"feed"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Requests      uint32       `json:"requests"`
	Failures      uint32       `json:"failures"`
	LastSuccessAt *time.Time   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time   `json:"lastFailureAt,omitempty"`
	LastError     string       `json:"lastError,omitempty"`
}
