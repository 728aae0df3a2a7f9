package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/challenge75/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubmissionExists reports whether the user already submitted for the day
func (r *Repository) SubmissionExists(ctx context.Context, userID string, challengeDayID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM submissions WHERE user_id = $1 AND challenge_day_id = $2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, userID, challengeDayID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking submission existence: %w", err)
	}
	return exists, nil
}

// CreateSubmission inserts a submission. The (user_id, challenge_day_id)
// constraint turns a concurrent duplicate into ErrConflict.
func (r *Repository) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	query := `
		INSERT INTO submissions (id, user_id, challenge_day_id, dsa_link, difficulty, x_post_link, contest_link, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.ChallengeDayID,
		sub.DSALink,
		string(sub.Difficulty),
		sub.XPostLink,
		sub.ContestLink,
		sub.SubmittedAt,
	)
	if err != nil {
		if isViolation(err, codeUniqueViolation, constraintUserDay) {
			return fmt.Errorf("submission for day %d: %w", sub.ChallengeDayID, domain.ErrConflict)
		}
		return fmt.Errorf("creating submission: %w", err)
	}
	return nil
}

// SubmissionByID finds a submission
func (r *Repository) SubmissionByID(ctx context.Context, id string) (*domain.Submission, error) {
	query := `
		SELECT id, user_id, challenge_day_id, dsa_link, difficulty, x_post_link, contest_link, submitted_at
		FROM submissions
		WHERE id = $1
	`
	var sub domain.Submission
	err := r.db.QueryRow(ctx, query, id).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.ChallengeDayID,
		&sub.DSALink,
		&sub.Difficulty,
		&sub.XPostLink,
		&sub.ContestLink,
		&sub.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("getting submission: %w", err)
	}
	return &sub, nil
}

// ListSubmissions returns matching submissions with their day, score and
// owner, newest challenge day first
func (r *Repository) ListSubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]domain.SubmissionDetail, error) {
	var (
		where []string
		args  []any
	)
	if filter.DayNumber != 0 {
		args = append(args, filter.DayNumber)
		where = append(where, fmt.Sprintf("d.day_number = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("s.user_id = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, filter.Name)
		where = append(where, fmt.Sprintf("u.name ILIKE '%%' || $%d || '%%'", len(args)))
	}

	query := `
		SELECT s.id, s.user_id, s.challenge_day_id, s.dsa_link, s.difficulty,
		       s.x_post_link, s.contest_link, s.submitted_at,
		       d.id, d.day_number, d.date, d.is_bonus_day,
		       u.id, u.name, u.email,
		       sc.id, sc.dsa_score, sc.x_post_score, sc.contest_score, sc.total_score,
		       sc.created_at, sc.updated_at
		FROM submissions s
		JOIN challenge_days d ON d.id = s.challenge_day_id
		JOIN users u ON u.id = s.user_id
		LEFT JOIN scores sc ON sc.submission_id = s.id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY d.day_number DESC, s.submitted_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.SubmissionDetail
	for rows.Next() {
		var (
			detail domain.SubmissionDetail
			user   domain.UserSummary

			scoreID                  *string
			dsa, xPost, contest, tot *int
			created, updated         *time.Time
		)
		err := rows.Scan(
			&detail.ID,
			&detail.UserID,
			&detail.ChallengeDayID,
			&detail.DSALink,
			&detail.Difficulty,
			&detail.XPostLink,
			&detail.ContestLink,
			&detail.SubmittedAt,
			&detail.ChallengeDay.ID,
			&detail.ChallengeDay.DayNumber,
			&detail.ChallengeDay.Date,
			&detail.ChallengeDay.IsBonusDay,
			&user.ID,
			&user.Name,
			&user.Email,
			&scoreID,
			&dsa,
			&xPost,
			&contest,
			&tot,
			&created,
			&updated,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		detail.User = &user
		if scoreID != nil {
			detail.Score = &domain.Score{
				ID:           *scoreID,
				SubmissionID: detail.ID,
				DSAScore:     deref(dsa),
				XPostScore:   deref(xPost),
				ContestScore: deref(contest),
				TotalScore:   deref(tot),
			}
			if created != nil {
				detail.Score.CreatedAt = *created
			}
			if updated != nil {
				detail.Score.UpdatedAt = *updated
			}
		}
		out = append(out, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return out, nil
}

// UpsertScore creates or overwrites the score of a submission
func (r *Repository) UpsertScore(ctx context.Context, score *domain.Score) error {
	query := `
		INSERT INTO scores (id, submission_id, dsa_score, x_post_score, contest_score, total_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (submission_id)
		DO UPDATE SET
			dsa_score = EXCLUDED.dsa_score,
			x_post_score = EXCLUDED.x_post_score,
			contest_score = EXCLUDED.contest_score,
			total_score = EXCLUDED.total_score,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		uuid.NewString(),
		score.SubmissionID,
		score.DSAScore,
		score.XPostScore,
		score.ContestScore,
		score.TotalScore,
		time.Now(),
	).Scan(&score.ID, &score.CreatedAt, &score.UpdatedAt)
	if err != nil {
		if isViolation(err, codeForeignViolation, "") {
			return domain.ErrSubmissionNotFound
		}
		return fmt.Errorf("upserting score: %w", err)
	}
	return nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
