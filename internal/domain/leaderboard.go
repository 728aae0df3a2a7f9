package domain

import "time"

// LeaderboardRow is a participant's standing, recomputed on every request
type LeaderboardRow struct {
	UserID          string `json:"userId"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	SubmissionCount int    `json:"submissionCount"`
	TotalScore      int    `json:"totalScore"`
	CurrentStreak   int    `json:"currentStreak"`
}

// Event is a domain change published to the event stream and live feed
type Event struct {
	Type         string    `json:"type"`
	UserID       string    `json:"userId"`
	SubmissionID string    `json:"submissionId"`
	DayNumber    int       `json:"dayNumber,omitempty"`
	TotalScore   int       `json:"totalScore,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Event types
const (
	EventSubmissionCreated = "submission_created"
	EventScoreGraded       = "score_graded"
)
