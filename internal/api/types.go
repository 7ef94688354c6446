package api

import "github.com/stacklok/boostsync/internal/vanity"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned for failed checks
type ErrorResponse struct {
	Error string `json:"error"`
}

// TrackerResponse is one vanity tracker with its derived state
type TrackerResponse struct {
	vanity.Tracker
	State string `json:"state"`
}

// VanityResponse lists all tracked vanity codes
type VanityResponse struct {
	RequiredMisses int               `json:"requiredMisses"`
	Trackers       []TrackerResponse `json:"trackers"`
}
