package kafka

import (
	"strings"

	"github.com/challenge75/internal/domain"
)

// GradeMessage is the wire format of a bulk grading message
type GradeMessage struct {
	SubmissionID string `json:"submission_id"`
	DSAScore     int    `json:"dsa_score"`
	XPostScore   int    `json:"x_post_score"`
	ContestScore int    `json:"contest_score"`
	GradedBy     string `json:"graded_by,omitempty"`
}

// Request converts the message into a grade request
func (m GradeMessage) Request() domain.GradeRequest {
	return domain.GradeRequest{
		SubmissionID: strings.TrimSpace(m.SubmissionID),
		DSAScore:     m.DSAScore,
		XPostScore:   m.XPostScore,
		ContestScore: m.ContestScore,
	}
}
