package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/challenge75/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewWithDB(mock, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

var userCols = []string{"id", "name", "email", "password_hash", "role", "created_at"}

func TestCreateUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "Asha", "asha@example.com", "hash", "USER", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	user := &domain.User{Name: "Asha", Email: "asha@example.com", PasswordHash: "hash", Role: domain.RoleUser, CreatedAt: now}
	require.NoError(t, repo.CreateUser(ctx, user))
	assert.NotEmpty(t, user.ID)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	err := repo.CreateUser(ctx, &domain.User{ID: "u2", Email: "asha@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("asha@example.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u1", "Asha", "asha@example.com", "hash", "ADMIN", created))

	user, err := repo.UserByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, domain.RoleAdmin, user.Role)
	assert.Equal(t, created, user.CreatedAt)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows(userCols))
	_, err = repo.UserByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListParticipants(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM users\\s+WHERE role = \\$1").
		WithArgs("USER", "ash").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u1", "Asha", "asha@example.com", "h", "USER", created).
			AddRow("u2", "Ashok", "ashok@example.com", "h", "USER", created.Add(time.Hour)))

	users, err := repo.ListParticipants(context.Background(), "ash")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ashok", users[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedChallengeDays(t *testing.T) {
	repo, mock := newMockRepo(t)
	d1 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	days := []domain.ChallengeDay{
		{DayNumber: 1, Date: d1},
		{DayNumber: 2, Date: d1.AddDate(0, 0, 1)},
	}

	// stored days keep their dates
	seed := `INSERT INTO challenge_days .* ON CONFLICT \(day_number\) DO NOTHING$`

	mock.ExpectBegin()
	mock.ExpectExec(seed).
		WithArgs(1, d1, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(seed).
		WithArgs(2, d1.AddDate(0, 0, 1), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	require.NoError(t, repo.SeedChallengeDays(context.Background(), days))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedChallengeDays_RollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO challenge_days").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.SeedChallengeDays(context.Background(), []domain.ChallengeDay{{DayNumber: 1}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeDaysThrough(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	d1 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	cols := []string{"id", "day_number", "date", "is_bonus_day"}

	mock.ExpectQuery("WHERE date <= \\$1").
		WithArgs(d1).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(1, 1, d1, false))

	days, err := repo.ChallengeDaysThrough(ctx, d1)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, d1, days[0].Date)

	mock.ExpectQuery("FROM challenge_days\\s+ORDER BY day_number").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(1, 1, d1, false).
			AddRow(2, 2, d1.AddDate(0, 0, 6), true))

	days, err = repo.ChallengeDays(ctx)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.True(t, days[1].IsBonusDay)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeDayByDate_Missing(t *testing.T) {
	repo, mock := newMockRepo(t)
	date := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE date = \\$1").
		WithArgs(date).
		WillReturnRows(pgxmock.NewRows([]string{"id", "day_number", "date", "is_bonus_day"}))

	_, err := repo.ChallengeDayByDate(context.Background(), date)
	assert.ErrorIs(t, err, domain.ErrChallengeDayMissing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubmission_Duplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("u1", 3).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	exists, err := repo.SubmissionExists(ctx, "u1", 3)
	require.NoError(t, err)
	assert.False(t, exists)

	link := "https://x.com/post"
	sub := &domain.Submission{
		ID: "s1", UserID: "u1", ChallengeDayID: 3,
		DSALink: "https://leetcode.com/p", Difficulty: domain.DifficultyEasy,
		XPostLink: &link,
	}
	mock.ExpectExec("INSERT INTO submissions").
		WithArgs("s1", "u1", 3, "https://leetcode.com/p", "Easy", &link, (*string)(nil), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.CreateSubmission(ctx, sub))

	mock.ExpectExec("INSERT INTO submissions").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "submissions_user_day_key"})
	err = repo.CreateSubmission(ctx, sub)
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM submissions\\s+WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "challenge_day_id", "dsa_link", "difficulty", "x_post_link", "contest_link", "submitted_at",
		}))

	_, err := repo.SubmissionByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubmissions(t *testing.T) {
	repo, mock := newMockRepo(t)
	day := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	at := day.Add(3 * time.Hour)
	cols := []string{
		"id", "user_id", "challenge_day_id", "dsa_link", "difficulty", "x_post_link", "contest_link", "submitted_at",
		"d.id", "day_number", "date", "is_bonus_day",
		"u.id", "name", "email",
		"sc.id", "dsa_score", "x_post_score", "contest_score", "total_score", "created_at", "updated_at",
	}
	scoreID := "sc1"
	six, two, zero, eight := 6, 2, 0, 8

	mock.ExpectQuery("WHERE d.day_number = \\$1 AND u.name ILIKE").
		WithArgs(2, "ash").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("s1", "u1", 2, "https://a", "Hard", nil, nil, at,
				2, 2, day, false,
				"u1", "Asha", "asha@example.com",
				&scoreID, &six, &two, &zero, &eight, &at, &at).
			AddRow("s2", "u2", 2, "https://b", "Easy", nil, nil, at,
				2, 2, day, false,
				"u2", "Ashok", "ashok@example.com",
				nil, nil, nil, nil, nil, nil, nil))

	subs, err := repo.ListSubmissions(context.Background(), domain.SubmissionFilter{DayNumber: 2, Name: "ash"})
	require.NoError(t, err)
	require.Len(t, subs, 2)

	require.NotNil(t, subs[0].Score)
	assert.Equal(t, 8, subs[0].Score.TotalScore)
	assert.Equal(t, "s1", subs[0].Score.SubmissionID)
	assert.Equal(t, "Asha", subs[0].User.Name)
	assert.Equal(t, domain.DifficultyHard, subs[0].Difficulty)

	assert.Nil(t, subs[1].Score)
	assert.Nil(t, subs[1].XPostLink)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertScore(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	created := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	mock.ExpectQuery("INSERT INTO scores").
		WithArgs(pgxmock.AnyArg(), "s1", 5, 1, 0, 6, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("sc1", created, updated))

	score := &domain.Score{SubmissionID: "s1", DSAScore: 5, XPostScore: 1, TotalScore: 6}
	require.NoError(t, repo.UpsertScore(ctx, score))
	assert.Equal(t, "sc1", score.ID)
	assert.Equal(t, created, score.CreatedAt)
	assert.Equal(t, updated, score.UpdatedAt)

	mock.ExpectQuery("INSERT INTO scores").
		WillReturnError(&pgconn.PgError{Code: "23503"})
	err := repo.UpsertScore(ctx, &domain.Score{SubmissionID: "gone"})
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RequiresPool(t *testing.T) {
	repo, _ := newMockRepo(t)
	require.Error(t, repo.RunMigrations(context.Background()))
}
