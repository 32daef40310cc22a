package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/remedyops/remedy/internal/models"
)

// handleIncidents serves POST /api/incidents and GET /api/incidents?status=.
func (r *Router) handleIncidents(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		var inc models.Incident
		if !decodeBody(w, req, &inc) {
			return
		}
		if inc.Title == "" || inc.Service == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "Incident requires title and service")
			return
		}
		if inc.Severity == "" {
			inc.Severity = models.SeverityMedium
		}
		if inc.DetectionSource == "" {
			inc.DetectionSource = "api"
		}
		if err := r.lifecycle.CreateIncident(req.Context(), &inc); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, &inc)

	case http.MethodGet:
		status := models.IncidentStatus(req.URL.Query().Get("status"))
		if status == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "Query parameter status is required")
			return
		}
		incidents, err := r.store.ListIncidentsByStatus(req.Context(), status, 0)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if incidents == nil {
			incidents = []*models.Incident{}
		}
		writeJSON(w, http.StatusOK, incidents)

	default:
		methodNotAllowed(w)
	}
}

// handleIncidentByID routes /api/incidents/{id} and its sub-resources.
func (r *Router) handleIncidentByID(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/api/incidents/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "Incident ID required")
		return
	}

	if len(parts) == 1 {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		inc, err := r.store.GetIncident(req.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inc)
		return
	}

	switch parts[1] {
	case "timeline":
		r.getIncidentTimeline(w, req, id)
	case "hypotheses":
		r.getIncidentHypotheses(w, req, id)
	case "actions":
		r.getIncidentActions(w, req, id)
	case "notifications":
		r.getIncidentNotifications(w, req, id)
	case "assign":
		r.assignIncident(w, req, id)
	case "resolve":
		r.resolveIncident(w, req, id)
	case "escalate":
		r.escalateIncident(w, req, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "Unknown incident resource")
	}
}

func (r *Router) getIncidentTimeline(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if _, err := r.store.GetIncident(req.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	events, err := r.timeline.Timeline(req.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []*models.IncidentEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (r *Router) getIncidentHypotheses(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	hypotheses, err := r.store.ListHypothesesByIncident(req.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if hypotheses == nil {
		hypotheses = []*models.Hypothesis{}
	}
	writeJSON(w, http.StatusOK, hypotheses)
}

func (r *Router) getIncidentActions(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	actions, err := r.store.ListActionsByIncident(req.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if actions == nil {
		actions = []*models.Action{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func (r *Router) getIncidentNotifications(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	notifications, err := r.store.ListNotificationsByIncident(req.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (r *Router) assignIncident(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		Engineer string `json:"engineer"`
		Actor    string `json:"actor"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Engineer == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Engineer is required")
		return
	}
	if body.Actor == "" {
		body.Actor = body.Engineer
	}
	if err := r.lifecycle.AssignIncident(req.Context(), id, body.Engineer, body.Actor); err != nil {
		writeDomainError(w, err)
		return
	}
	inc, err := r.store.GetIncident(req.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (r *Router) resolveIncident(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		Actor string `json:"actor"`
		Note  string `json:"note"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Actor == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Actor is required")
		return
	}
	inc, err := r.lifecycle.ResolveIncident(req.Context(), id, body.Actor, body.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (r *Router) escalateIncident(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var body struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Actor == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Actor is required")
		return
	}
	if body.Reason == "" {
		body.Reason = fmt.Sprintf("Escalated by %s", body.Actor)
	}
	inc, err := r.lifecycle.EscalateIncident(req.Context(), id, body.Actor, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}
