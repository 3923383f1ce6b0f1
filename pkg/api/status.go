package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/self-healing-controller/pkg/remediation"
	"github.com/cuemby/self-healing-controller/pkg/types"
)

const maxOutcomes = 500

// StatusResponse carries the remediation counters
type StatusResponse struct {
	remediation.Stats
	TrackedKeys int       `json:"tracked_keys"`
	Timestamp   time.Time `json:"timestamp"`
}

// OutcomesResponse lists recent remediation outcomes, newest first
type OutcomesResponse struct {
	Outcomes []types.Outcome `json:"outcomes"`
	Count    int             `json:"count"`
}

func (hs *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := StatusResponse{Timestamp: time.Now()}
	if hs.stats != nil {
		resp.Stats = hs.stats.Stats()
	}
	if hs.ledger != nil {
		resp.TrackedKeys = hs.ledger.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (hs *HealthServer) outcomesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxOutcomes)
	}

	resp := OutcomesResponse{Outcomes: []types.Outcome{}}
	if hs.recorder != nil {
		outcomes, err := hs.recorder.Recent(r.Context(), limit)
		if err != nil {
			http.Error(w, "failed to read outcomes: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if outcomes != nil {
			resp.Outcomes = outcomes
		}
	}
	resp.Count = len(resp.Outcomes)
	writeJSON(w, http.StatusOK, resp)
}
