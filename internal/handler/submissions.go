package handler

import (
	"net/http"

	"github.com/challenge75/internal/domain"
)

// CreateSubmission records today's submission for the caller
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	var in domain.SubmissionInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	sub, err := h.service.SubmitToday(r.Context(), sess, in)
	if err != nil {
		h.writeServiceError(w, err, "create submission")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Submission created successfully",
		"submission": sub,
	})
}

// ListMySubmissions returns the caller's submissions for every elapsed day
func (h *Handler) ListMySubmissions(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	subs, err := h.service.MySubmissions(r.Context(), sess)
	if err != nil {
		h.writeServiceError(w, err, "list submissions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

// SubmissionStatus reports whether the caller can submit today
func (h *Handler) SubmissionStatus(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	status, err := h.service.Status(r.Context(), sess)
	if err != nil {
		h.writeServiceError(w, err, "submission status")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": status})
}

// ChallengeDays returns the challenge calendar
func (h *Handler) ChallengeDays(w http.ResponseWriter, r *http.Request) {
	days, err := h.service.ChallengeDays(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "challenge days")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"days": days})
}
