package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/challenge75/internal/auth"
	"github.com/challenge75/internal/challenge"
	"github.com/challenge75/internal/config"
	"github.com/challenge75/internal/domain"
	"github.com/challenge75/internal/memstore"
	"github.com/challenge75/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) BroadcastEvent(e domain.Event) {
	_ = r.Publish(context.Background(), e)
}

func (r *recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type denyAfter struct {
	limit   int
	counts  map[string]int
	resets  int
	queried int
}

func (d *denyAfter) Allow(_ context.Context, key string) (bool, error) {
	d.counts[key]++
	return d.counts[key] <= d.limit, nil
}

func (d *denyAfter) Reset(_ context.Context, key string) error {
	d.resets++
	delete(d.counts, key)
	return nil
}

func (d *denyAfter) Remaining(_ context.Context, key string) (int64, error) {
	d.queried++
	return int64(d.limit - d.counts[key]), nil
}

type fixture struct {
	svc     *TrackerService
	store   *memstore.Store
	clock   *clock
	events  *recorder
	metrics *metrics.Metrics
}

// 2025-01-06 is a Monday; the challenge spans Monday through Sunday.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clk := &clock{now: time.Date(2025, 1, 6, 20, 0, 0, 0, time.UTC)} // day 2 in IST
	cal, err := challenge.NewCalendar(&config.ChallengeConfig{
		StartDate:    "2025-01-06",
		Days:         7,
		UTCOffset:    5*time.Hour + 30*time.Minute,
		BonusWeekday: "Sunday",
	})
	require.NoError(t, err)

	store := memstore.New()
	creds := auth.NewService("test-secret", 0, auth.WithBcryptCost(bcrypt.MinCost), auth.WithClock(clk.Now))
	rec := &recorder{}
	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	all := append([]Option{WithClock(clk.Now), WithPublisher(rec), WithMetrics(m)}, opts...)
	svc := NewTrackerService(store, creds, cal, logger, all...)
	require.NoError(t, svc.EnsureChallengeDays(context.Background()))

	return &fixture{svc: svc, store: store, clock: clk, events: rec, metrics: m}
}

func (f *fixture) register(t *testing.T, name, email string) domain.Session {
	t.Helper()
	res, err := f.svc.Register(context.Background(), name, email, "secret1")
	require.NoError(t, err)
	return domain.Session{UserID: res.User.ID, Email: res.User.Email, Role: res.User.Role}
}

func (f *fixture) admin(t *testing.T) domain.Session {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "adminpass"))
	u, err := f.store.UserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	return domain.Session{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func validInput() domain.SubmissionInput {
	return domain.SubmissionInput{DSALink: "https://leetcode.com/problems/two-sum", Difficulty: "Hard"}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "  Asha ", "asha@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", res.User.Name)
	assert.Equal(t, domain.RoleUser, res.User.Role)
	assert.NotEmpty(t, res.Token)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	tests := []struct {
		name     string
		user     string
		email    string
		password string
		msg      string
	}{
		{"missing name", "", "b@example.com", "secret1", "name, email, and password are required"},
		{"short password", "B", "b@example.com", "12345", "password must be at least 6 characters"},
		{"duplicate email", "Other", "asha@example.com", "secret1", "email already registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.user, tt.email, tt.password)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "Asha", "asha@example.com")

	res, err := f.svc.Login(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = f.svc.Login(ctx, "asha@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin_Throttled(t *testing.T) {
	limiter := &denyAfter{limit: 2, counts: map[string]int{}}
	f := newFixture(t, WithLimiter(limiter))
	ctx := context.Background()
	f.register(t, "Asha", "asha@example.com")

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, "asha@example.com", "bad")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}
	assert.Equal(t, 2, limiter.queried)
	_, err := f.svc.Login(ctx, "asha@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	delete(limiter.counts, "asha@example.com")
	_, err = f.svc.Login(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 1, limiter.resets)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, "Asha", "asha@example.com", "secret1")
	require.NoError(t, err)

	sess, err := f.svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, sess.UserID)
	assert.Equal(t, domain.RoleUser, sess.Role)

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// tokens expire after seven days
	f.clock.Set(f.clock.Now().Add(7*24*time.Hour + time.Second))
	_, err = f.svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)

	res, err := other.svc.Register(context.Background(), "Ghost", "ghost@example.com", "secret1")
	require.NoError(t, err)

	// same secret, but the user does not exist in this store
	_, err = f.svc.Authenticate(context.Background(), res.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSubmitToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "Asha", "asha@example.com")

	in := validInput()
	in.XPostLink = "  https://x.com/asha/status/1 "
	detail, err := f.svc.SubmitToday(ctx, user, in)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.ChallengeDay.DayNumber)
	assert.Equal(t, domain.DifficultyHard, detail.Difficulty)
	require.NotNil(t, detail.XPostLink)
	assert.Equal(t, "https://x.com/asha/status/1", *detail.XPostLink)
	assert.Nil(t, detail.ContestLink)
	assert.Equal(t, []string{domain.EventSubmissionCreated}, f.events.Types())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Submissions))

	_, err = f.svc.SubmitToday(ctx, user, validInput())
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, challenge.ReasonAlreadySubmitted, err.Error())

	status, err := f.svc.Status(ctx, user)
	require.NoError(t, err)
	assert.False(t, status.Eligible)
	assert.Equal(t, challenge.ReasonAlreadySubmitted, status.Reason)
}

func TestSubmitToday_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "Asha", "asha@example.com")
	admin := f.admin(t)

	_, err := f.svc.SubmitToday(ctx, admin, validInput())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.SubmitToday(ctx, user, domain.SubmissionInput{DSALink: "not a url", ContestLink: "also bad"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Messages, 2)

	f.clock.Set(time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC))
	_, err = f.svc.SubmitToday(ctx, user, validInput())
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, challenge.ReasonOutsidePeriod, err.Error())
	assert.Empty(t, f.events.Types())
}

func TestSubmitToday_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "Asha", "asha@example.com")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.SubmitToday(ctx, user, validInput()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestMySubmissions_SynthesizesMissedDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "Asha", "asha@example.com")

	_, err := f.svc.SubmitToday(ctx, user, validInput())
	require.NoError(t, err)

	subs, err := f.svc.MySubmissions(ctx, user)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	missed := subs[0]
	assert.Equal(t, "missed-1", missed.ID)
	assert.Equal(t, domain.DifficultyMissed, missed.Difficulty)
	require.NotNil(t, missed.Score)
	assert.Equal(t, -5, missed.Score.TotalScore)

	assert.Equal(t, 2, subs[1].ChallengeDay.DayNumber)
	assert.Nil(t, subs[1].Score)
	assert.Nil(t, subs[1].User)
}

func TestGrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "Asha", "asha@example.com")
	admin := f.admin(t)

	detail, err := f.svc.SubmitToday(ctx, user, validInput())
	require.NoError(t, err)

	req := domain.GradeRequest{SubmissionID: detail.ID, DSAScore: 6, XPostScore: 2, ContestScore: 1}
	_, err = f.svc.Grade(ctx, user, req)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	score, err := f.svc.Grade(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, 9, score.TotalScore)

	req.DSAScore = 3
	score, err = f.svc.Grade(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, 6, score.TotalScore)

	_, err = f.svc.Grade(ctx, admin, domain.GradeRequest{})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "submission ID is required", err.Error())

	_, err = f.svc.Grade(ctx, admin, domain.GradeRequest{SubmissionID: "missing"})
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Grades))
}

func TestGradeBatch_SkipsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "Asha", "asha@example.com")

	detail, err := f.svc.SubmitToday(ctx, user, validInput())
	require.NoError(t, err)

	err = f.svc.GradeBatch(ctx, []domain.GradeRequest{
		{SubmissionID: "missing", DSAScore: 4},
		{SubmissionID: detail.ID, DSAScore: 4},
	})
	require.NoError(t, err)

	subs, err := f.store.ListSubmissions(ctx, domain.SubmissionFilter{UserID: user.UserID})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].Score)
	assert.Equal(t, 4, subs[0].Score.TotalScore)
}

type flakyScores struct {
	*memstore.Store
}

func (flakyScores) UpsertScore(context.Context, *domain.Score) error {
	return errors.New("connection reset by peer")
}

func TestGradeBatch_ReturnsTransientFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "Asha", "asha@example.com")

	detail, err := f.svc.SubmitToday(ctx, user, validInput())
	require.NoError(t, err)

	svc := NewTrackerService(flakyScores{f.store}, auth.NewService("x", 0), f.svc.calendar,
		slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(f.clock.Now))

	err = svc.GradeBatch(ctx, []domain.GradeRequest{
		{SubmissionID: "missing", DSAScore: 1},
		{SubmissionID: detail.ID, DSAScore: 4},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Contains(t, err.Error(), detail.ID)
	assert.NotContains(t, err.Error(), "missing")

	// unknown submissions alone are skipped, not retried
	require.NoError(t, svc.GradeBatch(ctx, []domain.GradeRequest{{SubmissionID: "missing"}, {}}))
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asha := f.register(t, "Asha", "asha@example.com")
	bela := f.register(t, "Bela", "bela@example.com")
	admin := f.admin(t)

	// day 2 (IST): only Asha submits and is graded 10
	detail, err := f.svc.SubmitToday(ctx, asha, validInput())
	require.NoError(t, err)
	_, err = f.svc.Grade(ctx, admin, domain.GradeRequest{SubmissionID: detail.ID, DSAScore: 10})
	require.NoError(t, err)

	_, err = f.svc.Leaderboard(ctx, asha, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	rows, err := f.svc.Leaderboard(ctx, admin, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, asha.UserID, rows[0].UserID)
	assert.Equal(t, -5+10+1, rows[0].TotalScore)
	assert.Equal(t, 1, rows[0].CurrentStreak)
	assert.Equal(t, 1, rows[0].SubmissionCount)

	assert.Equal(t, bela.UserID, rows[1].UserID)
	assert.Equal(t, -10, rows[1].TotalScore)
	assert.Equal(t, 0, rows[1].CurrentStreak)

	rows, err = f.svc.Leaderboard(ctx, admin, "BEL")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bela", rows[0].Name)
}

func TestAdminSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asha := f.register(t, "Asha", "asha@example.com")
	admin := f.admin(t)

	_, err := f.svc.SubmitToday(ctx, asha, validInput())
	require.NoError(t, err)

	_, err = f.svc.AdminSubmissions(ctx, asha, domain.SubmissionFilter{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	subs, err := f.svc.AdminSubmissions(ctx, admin, domain.SubmissionFilter{DayNumber: 2})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].User)
	assert.Equal(t, "Asha", subs[0].User.Name)

	subs, err = f.svc.AdminSubmissions(ctx, admin, domain.SubmissionFilter{DayNumber: 1})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "adminpass"))
	require.NoError(t, f.svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "other"))

	res, err := f.svc.Login(ctx, "admin@example.com", "adminpass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, res.User.Role)

	require.NoError(t, f.svc.EnsureAdmin(ctx, "Admin", "", ""))
}

type failingStore struct {
	*memstore.Store
}

func (failingStore) ListParticipants(context.Context, string) ([]domain.User, error) {
	return nil, errors.New("connection reset")
}

func TestStandings_PropagatesStoreErrors(t *testing.T) {
	f := newFixture(t)
	cal, err := challenge.NewCalendar(&config.ChallengeConfig{StartDate: "2025-01-06", Days: 7, BonusWeekday: "Sunday"})
	require.NoError(t, err)

	svc := NewTrackerService(failingStore{f.store}, auth.NewService("x", 0), cal, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = svc.Standings(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
