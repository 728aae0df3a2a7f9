package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/challenge75/internal/domain"
)

// GradeRequest is the body of POST /admin/scores
type GradeRequest struct {
	SubmissionID string  `json:"submissionId"`
	DSAScore     FlexInt `json:"dsaScore"`
	XPostScore   FlexInt `json:"xPostScore"`
	ContestScore FlexInt `json:"contestScore"`
}

// AdminSubmissions lists submissions across users
func (h *Handler) AdminSubmissions(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	q := r.URL.Query()

	filter := domain.SubmissionFilter{
		UserID: strings.TrimSpace(q.Get("userId")),
		Name:   strings.TrimSpace(q.Get("name")),
	}
	if day := strings.TrimSpace(q.Get("day")); day != "" {
		n, err := strconv.Atoi(day)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, errInvalidDay)
			return
		}
		filter.DayNumber = n
	}

	subs, err := h.service.AdminSubmissions(r.Context(), sess, filter)
	if err != nil {
		h.writeServiceError(w, err, "admin submissions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

// GradeSubmission creates or overwrites a submission's score
func (h *Handler) GradeSubmission(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	var req GradeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	score, err := h.service.Grade(r.Context(), sess, domain.GradeRequest{
		SubmissionID: strings.TrimSpace(req.SubmissionID),
		DSAScore:     int(req.DSAScore),
		XPostScore:   int(req.XPostScore),
		ContestScore: int(req.ContestScore),
	})
	if err != nil {
		h.writeServiceError(w, err, "grade submission")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Score updated successfully",
		"score":   score,
	})
}

// Leaderboard returns participant standings
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	rows, err := h.service.Leaderboard(r.Context(), sess, strings.TrimSpace(r.URL.Query().Get("name")))
	if err != nil {
		h.writeServiceError(w, err, "leaderboard")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": rows})
}
