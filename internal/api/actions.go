package api

import (
	"net/http"
	"strings"

	"github.com/remedyops/remedy/internal/models"
)

// handleProposeAction serves POST /api/actions.
func (r *Router) handleProposeAction(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var action models.Action
	if !decodeBody(w, req, &action) {
		return
	}
	if action.IncidentID == "" || action.Type == "" || action.TargetService == "" {
		writeError(w, http.StatusBadRequest, "invalid_input",
			"Action requires incidentId, type and targetService")
		return
	}
	action.RequiresApproval = true
	if err := r.lifecycle.ProposeAction(req.Context(), &action); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &action)
}

// handleActionByID routes /api/actions/{id} and its verbs.
func (r *Router) handleActionByID(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/api/actions/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "Action ID required")
		return
	}

	if len(parts) == 1 {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		action, err := r.store.GetAction(req.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, action)
		return
	}

	if req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	switch parts[1] {
	case "approve":
		r.approveAction(w, req, id)
	case "reject":
		r.rejectAction(w, req, id)
	case "execute":
		r.executeAction(w, req, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "Unknown action verb")
	}
}

func (r *Router) approveAction(w http.ResponseWriter, req *http.Request, id string) {
	var body struct {
		Approver string               `json:"approver"`
		Mode     models.ExecutionMode `json:"mode"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Approver == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Approver is required")
		return
	}
	if body.Mode == "" {
		body.Mode = models.ModeDryRun
	}
	action, err := r.lifecycle.ApproveAction(req.Context(), id, body.Approver, body.Mode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (r *Router) rejectAction(w http.ResponseWriter, req *http.Request, id string) {
	var body struct {
		Rejecter string `json:"rejecter"`
		Reason   string `json:"reason"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Rejecter == "" || body.Reason == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Rejecter and reason are required")
		return
	}
	action, err := r.lifecycle.RejectAction(req.Context(), id, body.Rejecter, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (r *Router) executeAction(w http.ResponseWriter, req *http.Request, id string) {
	var body struct {
		Actor string `json:"actor"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Actor == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Actor is required")
		return
	}
	action, err := r.lifecycle.ExecuteAction(req.Context(), id, body.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// A failed execution is still a 200; the action's result carries
	// the failure details.
	writeJSON(w, http.StatusOK, action)
}
