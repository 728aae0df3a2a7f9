package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/challenge75/internal/domain"
	"github.com/challenge75/internal/scoring"
)

// Grade upserts the score of a submission. Re-grading overwrites.
func (s *TrackerService) Grade(ctx context.Context, sess domain.Session, req domain.GradeRequest) (*domain.Score, error) {
	if !sess.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.grade(ctx, req)
}

// GradeBatch applies several grades, e.g. from the grading stream. Grades
// that can never apply (invalid, unknown submission) are logged and skipped;
// any other failure is returned so the caller can retry the batch. Upserts
// overwrite, so replaying grades that already applied is harmless.
func (s *TrackerService) GradeBatch(ctx context.Context, reqs []domain.GradeRequest) error {
	var errs []error
	for _, req := range reqs {
		_, err := s.grade(ctx, req)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrValidation), domain.IsNotFoundError(err):
			s.logger.Warn("skipping grade in batch",
				"submission_id", req.SubmissionID,
				"error", err,
			)
		default:
			s.logger.Error("failed to apply grade in batch",
				"submission_id", req.SubmissionID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("grading %s: %w", req.SubmissionID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *TrackerService) grade(ctx context.Context, req domain.GradeRequest) (*domain.Score, error) {
	if req.SubmissionID == "" {
		return nil, domain.NewValidationError("submission ID is required")
	}

	sub, err := s.store.SubmissionByID(ctx, req.SubmissionID)
	if err != nil {
		return nil, err
	}

	score := scoring.NewScore(req)
	if err := s.store.UpsertScore(ctx, &score); err != nil {
		return nil, fmt.Errorf("upserting score: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Grades.Inc()
	}
	s.emit(ctx, domain.Event{
		Type:         domain.EventScoreGraded,
		UserID:       sub.UserID,
		SubmissionID: sub.ID,
		TotalScore:   score.TotalScore,
	})
	return &score, nil
}

// Leaderboard returns participant standings for an administrator
func (s *TrackerService) Leaderboard(ctx context.Context, sess domain.Session, name string) ([]domain.LeaderboardRow, error) {
	if !sess.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.Standings(ctx, name)
}

// Standings computes the leaderboard over every elapsed challenge day
func (s *TrackerService) Standings(ctx context.Context, name string) ([]domain.LeaderboardRow, error) {
	start := time.Now()
	today := s.today()

	users, err := s.store.ListParticipants(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	days, err := s.store.ChallengeDaysThrough(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("listing elapsed days: %w", err)
	}
	subs, err := s.store.ListSubmissions(ctx, domain.SubmissionFilter{Name: name})
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}

	rows := scoring.BuildLeaderboard(users, days, subs, today)

	if s.metrics != nil {
		s.metrics.LeaderboardBuild.Observe(time.Since(start).Seconds())
	}
	return rows, nil
}
