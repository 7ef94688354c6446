package api

import (
	"encoding/json"
	"net/http"

	"github.com/stacklok/boostsync/internal/versions"
)

func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler returns 503 until the gateway session is established
func readinessHandler(readiness ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if readiness == nil || !readiness.Ready() {
			writeJSONResponse(w, ErrorResponse{Error: "gateway session not ready"}, http.StatusServiceUnavailable)
			return
		}
		writeJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

func vanityHandler(trackers TrackerLister, requiredMisses int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := VanityResponse{
			RequiredMisses: requiredMisses,
			Trackers:       []TrackerResponse{},
		}
		for _, t := range trackers.Trackers() {
			resp.Trackers = append(resp.Trackers, TrackerResponse{
				Tracker: t,
				State:   string(t.State()),
			})
		}
		writeJSONResponse(w, resp, http.StatusOK)
	}
}
