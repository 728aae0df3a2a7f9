package domain

import "time"

// Difficulty is the self-reported difficulty of a submitted problem
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"

	// DifficultyMissed labels synthesized rows for days without a submission
	DifficultyMissed Difficulty = "Missed"
)

// ChallengeDay is one of the fixed calendar slots of the challenge
type ChallengeDay struct {
	ID         int       `json:"id"`
	DayNumber  int       `json:"dayNumber"`
	Date       time.Time `json:"date"`
	IsBonusDay bool      `json:"isBonusDay"`
}

// Submission is one user's proof of work for one challenge day
type Submission struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	ChallengeDayID int        `json:"challengeDayId"`
	DSALink        string     `json:"dsaLink"`
	Difficulty     Difficulty `json:"difficulty"`
	XPostLink      *string    `json:"xPostLink"`
	ContestLink    *string    `json:"contestLink"`
	SubmittedAt    time.Time  `json:"submittedAt"`
}

// Score holds the graded components of a submission
type Score struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submissionId"`
	DSAScore     int       `json:"dsaScore"`
	XPostScore   int       `json:"xPostScore"`
	ContestScore int       `json:"contestScore"`
	TotalScore   int       `json:"totalScore"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

// SubmissionDetail is a submission joined with its day, score and owner
type SubmissionDetail struct {
	Submission
	ChallengeDay ChallengeDay `json:"challengeDay"`
	Score        *Score       `json:"score"`
	User         *UserSummary `json:"user,omitempty"`
}

// SubmissionInput is the raw payload of a submission request
type SubmissionInput struct {
	DSALink     string `json:"dsaLink"`
	Difficulty  string `json:"difficulty"`
	XPostLink   string `json:"xPostLink"`
	ContestLink string `json:"contestLink"`
}

// SubmissionFilter narrows admin submission listings
type SubmissionFilter struct {
	DayNumber int
	UserID    string
	Name      string
}

// GradeRequest is an administrator's grading of one submission
type GradeRequest struct {
	SubmissionID string `json:"submissionId"`
	DSAScore     int    `json:"dsaScore"`
	XPostScore   int    `json:"xPostScore"`
	ContestScore int    `json:"contestScore"`
}

// Eligibility is the outcome of checking whether a user may submit now
type Eligibility struct {
	Eligible bool          `json:"canSubmit"`
	Reason   string        `json:"reason,omitempty"`
	Day      *ChallengeDay `json:"challengeDay,omitempty"`
}
