package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/challenge75/internal/challenge"
	"github.com/challenge75/internal/domain"
	"github.com/challenge75/internal/scoring"
	"github.com/google/uuid"
)

// Status reports today's challenge day and whether the caller may submit
func (s *TrackerService) Status(ctx context.Context, sess domain.Session) (domain.Eligibility, error) {
	return s.eligibility.Check(ctx, sess.UserID)
}

// SubmitToday records the caller's submission for the active challenge day
func (s *TrackerService) SubmitToday(ctx context.Context, sess domain.Session, in domain.SubmissionInput) (*domain.SubmissionDetail, error) {
	if sess.Role != domain.RoleUser {
		return nil, domain.ErrForbidden
	}

	elig, err := s.eligibility.Check(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		s.countDenied(elig.Reason)
		return nil, domain.NewValidationError(elig.Reason)
	}

	if errs := challenge.ValidateSubmission(in, elig.Day.IsBonusDay); len(errs) > 0 {
		s.countDenied("invalid fields")
		return nil, domain.NewValidationError(errs...)
	}

	sub := &domain.Submission{
		ID:             uuid.NewString(),
		UserID:         sess.UserID,
		ChallengeDayID: elig.Day.ID,
		DSALink:        strings.TrimSpace(in.DSALink),
		Difficulty:     challenge.NormalizeDifficulty(in.Difficulty),
		XPostLink:      challenge.OptionalLink(in.XPostLink),
		ContestLink:    challenge.OptionalLink(in.ContestLink),
		SubmittedAt:    s.now(),
	}
	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		// losing the race to a concurrent submission lands here as well
		return nil, fmt.Errorf("creating submission: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Submissions.Inc()
	}
	s.logger.Info("submission created",
		"user_id", sess.UserID,
		"day", elig.Day.DayNumber,
		"submission_id", sub.ID,
	)
	s.emit(ctx, domain.Event{
		Type:         domain.EventSubmissionCreated,
		UserID:       sess.UserID,
		SubmissionID: sub.ID,
		DayNumber:    elig.Day.DayNumber,
	})

	return &domain.SubmissionDetail{Submission: *sub, ChallengeDay: *elig.Day}, nil
}

// MySubmissions lists the caller's own submissions for every elapsed day.
// Days without a submission appear as virtual "missed" rows carrying the
// same penalty the leaderboard applies.
func (s *TrackerService) MySubmissions(ctx context.Context, sess domain.Session) ([]domain.SubmissionDetail, error) {
	days, err := s.store.ChallengeDaysThrough(ctx, s.today())
	if err != nil {
		return nil, fmt.Errorf("listing elapsed days: %w", err)
	}
	subs, err := s.store.ListSubmissions(ctx, domain.SubmissionFilter{UserID: sess.UserID})
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}

	byDay := make(map[int]domain.SubmissionDetail, len(subs))
	for _, sub := range subs {
		sub.User = nil
		byDay[sub.ChallengeDayID] = sub
	}

	out := make([]domain.SubmissionDetail, 0, len(days))
	for _, day := range days {
		if sub, ok := byDay[day.ID]; ok {
			out = append(out, sub)
			continue
		}
		out = append(out, missedRow(sess.UserID, day))
	}
	return out, nil
}

func missedRow(userID string, day domain.ChallengeDay) domain.SubmissionDetail {
	id := fmt.Sprintf("missed-%d", day.ID)
	score := scoring.MissedDayScore()
	score.SubmissionID = id
	return domain.SubmissionDetail{
		Submission: domain.Submission{
			ID:             id,
			UserID:         userID,
			ChallengeDayID: day.ID,
			Difficulty:     domain.DifficultyMissed,
			SubmittedAt:    day.Date,
		},
		ChallengeDay: day,
		Score:        score,
	}
}

// AdminSubmissions lists submissions across all users with optional filters
func (s *TrackerService) AdminSubmissions(ctx context.Context, sess domain.Session, filter domain.SubmissionFilter) ([]domain.SubmissionDetail, error) {
	if !sess.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	subs, err := s.store.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return subs, nil
}

func (s *TrackerService) countDenied(reason string) {
	if s.metrics != nil {
		s.metrics.SubmissionDenied.WithLabelValues(reason).Inc()
	}
}
