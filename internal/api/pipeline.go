package api

import (
	"net/http"
)

// handleCheckOnce serves POST /api/check, one detection sweep.
func (r *Router) handleCheckOnce(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if r.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "No monitor configured")
		return
	}
	created, err := r.monitor.CheckOnce(req.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"detected":  len(created),
		"incidents": created,
	})
}

// handleGenerateOnce serves POST /api/generate, one analysis pass over
// detected incidents.
func (r *Router) handleGenerateOnce(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if r.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "No monitor configured")
		return
	}
	processed, err := r.monitor.GenerateOnce(req.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}
