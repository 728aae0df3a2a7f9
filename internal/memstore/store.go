// Package memstore is an in-process implementation of the tracker store,
// used for local runs (storage.driver: memory) and in tests. It enforces
// the same uniqueness rules as the PostgreSQL schema.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/challenge75/internal/domain"
	"github.com/google/uuid"
)

type submissionKey struct {
	userID string
	dayID  int
}

// Store keeps every record in memory behind one mutex
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	emails      map[string]string
	days        map[int]domain.ChallengeDay
	submissions map[string]domain.Submission
	byUserDay   map[submissionKey]string
	scores      map[string]domain.Score
	now         func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		emails:      make(map[string]string),
		days:        make(map[int]domain.ChallengeDay),
		submissions: make(map[string]domain.Submission),
		byUserDay:   make(map[submissionKey]string),
		scores:      make(map[string]domain.Score),
		now:         time.Now,
	}
}

// CreateUser inserts a user, assigning an id when missing
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[user.Email]; ok {
		return domain.ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = *user
	s.emails[user.Email] = user.ID
	return nil
}

// UserByEmail finds a user by exact email
func (s *Store) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := s.users[id]
	return &u, nil
}

// UserByID finds a user by id
func (s *Store) UserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

// ListParticipants returns users with the USER role whose name contains
// name, case-insensitively
func (s *Store) ListParticipants(_ context.Context, name string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.User
	for _, u := range s.users {
		if u.Role != domain.RoleUser || !nameMatches(u.Name, name) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SeedChallengeDays adds days keyed by day number, keeping any day already
// stored. The day number doubles as the id.
func (s *Store) SeedChallengeDays(_ context.Context, days []domain.ChallengeDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range days {
		if d.DayNumber <= 0 {
			return fmt.Errorf("invalid day number %d", d.DayNumber)
		}
		if _, ok := s.days[d.DayNumber]; ok {
			continue
		}
		d.ID = d.DayNumber
		s.days[d.DayNumber] = d
	}
	return nil
}

// ChallengeDays returns every day ascending
func (s *Store) ChallengeDays(ctx context.Context) ([]domain.ChallengeDay, error) {
	return s.ChallengeDaysThrough(ctx, time.Time{})
}

// ChallengeDaysThrough returns days dated on or before through, ascending.
// A zero through returns every day.
func (s *Store) ChallengeDaysThrough(_ context.Context, through time.Time) ([]domain.ChallengeDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ChallengeDay, 0, len(s.days))
	for _, d := range s.days {
		if !through.IsZero() && d.Date.After(through) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayNumber < out[j].DayNumber })
	return out, nil
}

// ChallengeDayByDate finds the day with the given date
func (s *Store) ChallengeDayByDate(_ context.Context, date time.Time) (*domain.ChallengeDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.days {
		if d.Date.Equal(date) {
			return &d, nil
		}
	}
	return nil, domain.ErrChallengeDayMissing
}

// SubmissionExists reports whether the user already submitted for the day
func (s *Store) SubmissionExists(_ context.Context, userID string, dayID int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byUserDay[submissionKey{userID, dayID}]
	return ok, nil
}

// CreateSubmission inserts a submission. A second submission for the same
// user and day fails with ErrConflict.
func (s *Store) CreateSubmission(_ context.Context, sub *domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := submissionKey{sub.UserID, sub.ChallengeDayID}
	if _, ok := s.byUserDay[key]; ok {
		return fmt.Errorf("submission for day %d: %w", sub.ChallengeDayID, domain.ErrConflict)
	}
	if _, ok := s.users[sub.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	if _, ok := s.days[sub.ChallengeDayID]; !ok {
		return domain.ErrChallengeDayMissing
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = s.now()
	}
	s.submissions[sub.ID] = *sub
	s.byUserDay[key] = sub.ID
	return nil
}

// SubmissionByID finds a submission
func (s *Store) SubmissionByID(_ context.Context, id string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return nil, domain.ErrSubmissionNotFound
	}
	return &sub, nil
}

// ListSubmissions returns matching submissions with their day, score and
// owner, newest challenge day first
func (s *Store) ListSubmissions(_ context.Context, filter domain.SubmissionFilter) ([]domain.SubmissionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SubmissionDetail
	for _, sub := range s.submissions {
		day := s.days[sub.ChallengeDayID]
		user := s.users[sub.UserID]
		if filter.DayNumber != 0 && day.DayNumber != filter.DayNumber {
			continue
		}
		if filter.UserID != "" && sub.UserID != filter.UserID {
			continue
		}
		if !nameMatches(user.Name, filter.Name) {
			continue
		}

		detail := domain.SubmissionDetail{
			Submission:   sub,
			ChallengeDay: day,
			User:         &domain.UserSummary{ID: user.ID, Name: user.Name, Email: user.Email},
		}
		if score, ok := s.scores[sub.ID]; ok {
			detail.Score = &score
		}
		out = append(out, detail)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ChallengeDay.DayNumber != out[j].ChallengeDay.DayNumber {
			return out[i].ChallengeDay.DayNumber > out[j].ChallengeDay.DayNumber
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

// UpsertScore creates or overwrites the score of a submission
func (s *Store) UpsertScore(_ context.Context, score *domain.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.submissions[score.SubmissionID]; !ok {
		return domain.ErrSubmissionNotFound
	}
	now := s.now()
	if existing, ok := s.scores[score.SubmissionID]; ok {
		score.ID = existing.ID
		score.CreatedAt = existing.CreatedAt
	} else {
		score.ID = uuid.NewString()
		score.CreatedAt = now
	}
	score.UpdatedAt = now
	s.scores[score.SubmissionID] = *score
	return nil
}

func nameMatches(name, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(filter))
}
