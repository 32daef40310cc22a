package api

import (
	"net/http"
	"strings"
)

// handleNotificationByID routes /api/notifications/{id} and the ack verb.
// Acknowledgement accepts GET as well as POST so the link embedded in a
// page can be followed directly.
func (r *Router) handleNotificationByID(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/api/notifications/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "Notification ID required")
		return
	}

	if len(parts) == 1 {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		n, err := r.store.GetNotification(req.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
		return
	}

	if parts[1] != "ack" {
		writeError(w, http.StatusNotFound, "not_found", "Unknown notification resource")
		return
	}
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	engineer := req.URL.Query().Get("engineer")
	token := req.URL.Query().Get("token")
	if engineer == "" || token == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "engineer and token are required")
		return
	}

	n, err := r.notify.Acknowledge(req.Context(), id, engineer, token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notification": n,
		"slaMet":       n.SLAMet(),
	})
}
