package api

import (
	"net/http"
	"strconv"

	"github.com/remedyops/remedy/internal/models"
)

// handleCaptureOutcome serves POST /api/outcomes.
func (r *Router) handleCaptureOutcome(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var outcome models.OutcomeReport
	if !decodeBody(w, req, &outcome) {
		return
	}
	pattern, err := r.learning.CaptureOutcome(req.Context(), &outcome)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"outcome": &outcome,
		"pattern": pattern,
	})
}

// handleInsights serves GET /api/insights?days=N.
func (r *Router) handleInsights(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	days := 30
	if raw := req.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "days must be a positive integer")
			return
		}
		days = parsed
	}
	insights, err := r.learning.GenerateInsights(req.Context(), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

// handlePatterns serves GET /api/patterns.
func (r *Router) handlePatterns(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	patterns, err := r.store.ListPatterns(req.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if patterns == nil {
		patterns = []*models.IncidentPattern{}
	}
	writeJSON(w, http.StatusOK, patterns)
}
