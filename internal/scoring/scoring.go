// Package scoring computes submission totals and the per-participant
// standings shown on the leaderboard.
package scoring

import (
	"sort"
	"time"

	"github.com/challenge75/internal/domain"
)

const (
	// StreakBonus is added for every elapsed day with a submission
	StreakBonus = 1
	// MissedDayPenalty is subtracted for every elapsed day without one
	MissedDayPenalty = 5
)

// SubmissionTotal sums the three graded components
func SubmissionTotal(dsa, xPost, contest int) int {
	return dsa + xPost + contest
}

// NewScore builds a score whose total matches its components
func NewScore(req domain.GradeRequest) domain.Score {
	return domain.Score{
		SubmissionID: req.SubmissionID,
		DSAScore:     req.DSAScore,
		XPostScore:   req.XPostScore,
		ContestScore: req.ContestScore,
		TotalScore:   SubmissionTotal(req.DSAScore, req.XPostScore, req.ContestScore),
	}
}

// MissedDayScore is the virtual score displayed for a day without a submission
func MissedDayScore() *domain.Score {
	return &domain.Score{
		DSAScore:   -MissedDayPenalty,
		TotalScore: -MissedDayPenalty,
	}
}

// Result is a participant's aggregate over the elapsed days
type Result struct {
	Total  int
	Streak int
	Missed int
}

// Aggregate walks the days in day-number order. Days dated after today are
// neither rewarded nor penalised. graded maps challenge day id to the graded
// total of the user's submission for that day; ungraded submissions map to 0.
func Aggregate(days []domain.ChallengeDay, graded map[int]int, today time.Time) Result {
	ordered := make([]domain.ChallengeDay, len(days))
	copy(ordered, days)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].DayNumber < ordered[j].DayNumber })

	var res Result
	for _, day := range ordered {
		if day.Date.After(today) {
			continue
		}
		total, ok := graded[day.ID]
		if !ok {
			res.Total -= MissedDayPenalty
			res.Streak = 0
			res.Missed++
			continue
		}
		res.Total += total + StreakBonus
		res.Streak++
	}
	return res
}
