package scoring

import (
	"sort"
	"time"

	"github.com/challenge75/internal/domain"
)

// BuildLeaderboard ranks every participant by aggregate score. Admin
// accounts are skipped. Ties are ordered by streak, then name, then id.
func BuildLeaderboard(
	users []domain.User,
	days []domain.ChallengeDay,
	submissions []domain.SubmissionDetail,
	today time.Time,
) []domain.LeaderboardRow {
	type tally struct {
		count  int
		graded map[int]int
	}

	byUser := make(map[string]*tally, len(users))
	for _, sub := range submissions {
		t, ok := byUser[sub.UserID]
		if !ok {
			t = &tally{graded: make(map[int]int)}
			byUser[sub.UserID] = t
		}
		t.count++
		total := 0
		if sub.Score != nil {
			total = sub.Score.TotalScore
		}
		t.graded[sub.ChallengeDayID] = total
	}

	rows := make([]domain.LeaderboardRow, 0, len(users))
	for _, u := range users {
		if u.Role != domain.RoleUser {
			continue
		}
		row := domain.LeaderboardRow{UserID: u.ID, Name: u.Name, Email: u.Email}
		var graded map[int]int
		if t, ok := byUser[u.ID]; ok {
			row.SubmissionCount = t.count
			graded = t.graded
		}
		res := Aggregate(days, graded, today)
		row.TotalScore = res.Total
		row.CurrentStreak = res.Streak
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.CurrentStreak != b.CurrentStreak {
			return a.CurrentStreak > b.CurrentStreak
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UserID < b.UserID
	})

	return rows
}
