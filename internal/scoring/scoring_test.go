package scoring

import (
	"testing"
	"time"

	"github.com/challenge75/internal/domain"
	"github.com/stretchr/testify/assert"
)

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func makeDays(n int) []domain.ChallengeDay {
	days := make([]domain.ChallengeDay, n)
	for i := range days {
		days[i] = domain.ChallengeDay{ID: 100 + i, DayNumber: i + 1, Date: start.AddDate(0, 0, i)}
	}
	return days
}

func TestSubmissionTotalAndNewScore(t *testing.T) {
	assert.Equal(t, 12, SubmissionTotal(5, 2, 5))

	s := NewScore(domain.GradeRequest{SubmissionID: "s1", DSAScore: 4, XPostScore: 1, ContestScore: 3})
	assert.Equal(t, "s1", s.SubmissionID)
	assert.Equal(t, 8, s.TotalScore)
}

func TestMissedDayScoreMatchesPenalty(t *testing.T) {
	s := MissedDayScore()
	assert.Equal(t, -MissedDayPenalty, s.TotalScore)
	assert.Equal(t, s.DSAScore+s.XPostScore+s.ContestScore, s.TotalScore)
}

func TestAggregate(t *testing.T) {
	days := makeDays(3)
	today := days[2].Date

	t.Run("no submissions", func(t *testing.T) {
		res := Aggregate(days, nil, today)
		assert.Equal(t, -5*3, res.Total)
		assert.Equal(t, 0, res.Streak)
		assert.Equal(t, 3, res.Missed)
	})

	t.Run("every day", func(t *testing.T) {
		graded := map[int]int{100: 5, 101: 0, 102: 12}
		res := Aggregate(days, graded, today)
		assert.Equal(t, 5+0+12+3, res.Total)
		assert.Equal(t, 3, res.Streak)
	})

	t.Run("gap resets streak", func(t *testing.T) {
		graded := map[int]int{100: 0, 102: 0}
		res := Aggregate(days, graded, today)
		assert.Equal(t, -3, res.Total)
		assert.Equal(t, 1, res.Streak)
	})

	t.Run("order of input does not matter", func(t *testing.T) {
		reversed := []domain.ChallengeDay{days[2], days[1], days[0]}
		graded := map[int]int{100: 0, 101: 0}
		res := Aggregate(reversed, graded, today)
		assert.Equal(t, 0, res.Streak, "day 3 missed last")
		assert.Equal(t, 2-5, res.Total)
	})

	t.Run("future days are ignored", func(t *testing.T) {
		res := Aggregate(days, map[int]int{100: 3}, days[0].Date)
		assert.Equal(t, 4, res.Total)
		assert.Equal(t, 1, res.Streak)
		assert.Equal(t, 0, res.Missed)
	})
}
