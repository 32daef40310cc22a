package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/remedyops/remedy/internal/models"
)

// handleOnCall serves GET /api/oncall?service=.
func (r *Router) handleOnCall(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	service := req.URL.Query().Get("service")
	if service == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Query parameter service is required")
		return
	}
	schedule, err := r.oncall.Current(req.Context(), service)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// handleSchedules serves POST /api/oncall/schedules.
func (r *Router) handleSchedules(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var sched models.OnCallSchedule
	if !decodeBody(w, req, &sched) {
		return
	}
	if sched.Engineer == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "Engineer is required")
		return
	}
	if !sched.EndTime.After(sched.StartTime) {
		writeError(w, http.StatusBadRequest, "invalid_input", "endTime must be after startTime")
		return
	}
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	if sched.Priority == "" {
		sched.Priority = models.PriorityPrimary
	}
	if sched.Channel == "" {
		sched.Channel = models.ChannelWebhook
	}
	sched.Active = true
	if err := r.store.CreateSchedule(req.Context(), &sched); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &sched)
}
