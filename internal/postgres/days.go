package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/challenge75/internal/domain"
	"github.com/jackc/pgx/v5"
)

// SeedChallengeDays inserts missing calendar days in one transaction. Days
// already stored are left as they are.
func (r *Repository) SeedChallengeDays(ctx context.Context, days []domain.ChallengeDay) error {
	if len(days) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning seed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO challenge_days (day_number, date, is_bonus_day)
		VALUES ($1, $2, $3)
		ON CONFLICT (day_number) DO NOTHING
	`
	for _, day := range days {
		if _, err := tx.Exec(ctx, query, day.DayNumber, day.Date, day.IsBonusDay); err != nil {
			return fmt.Errorf("seeding day %d: %w", day.DayNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}
	return nil
}

// ChallengeDays returns every day ascending
func (r *Repository) ChallengeDays(ctx context.Context) ([]domain.ChallengeDay, error) {
	return r.ChallengeDaysThrough(ctx, time.Time{})
}

// ChallengeDaysThrough returns days dated on or before through, ascending.
// A zero through returns every day.
func (r *Repository) ChallengeDaysThrough(ctx context.Context, through time.Time) ([]domain.ChallengeDay, error) {
	query := `
		SELECT id, day_number, date, is_bonus_day
		FROM challenge_days
		ORDER BY day_number ASC
	`
	args := []any{}
	if !through.IsZero() {
		query = `
			SELECT id, day_number, date, is_bonus_day
			FROM challenge_days
			WHERE date <= $1
			ORDER BY day_number ASC
		`
		args = append(args, through)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing challenge days: %w", err)
	}
	defer rows.Close()

	var days []domain.ChallengeDay
	for rows.Next() {
		var day domain.ChallengeDay
		if err := rows.Scan(&day.ID, &day.DayNumber, &day.Date, &day.IsBonusDay); err != nil {
			return nil, fmt.Errorf("scanning challenge day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing challenge days: %w", err)
	}
	return days, nil
}

// ChallengeDayByDate finds the day with the given date
func (r *Repository) ChallengeDayByDate(ctx context.Context, date time.Time) (*domain.ChallengeDay, error) {
	query := `
		SELECT id, day_number, date, is_bonus_day
		FROM challenge_days
		WHERE date = $1
	`
	var day domain.ChallengeDay
	err := r.db.QueryRow(ctx, query, date).Scan(&day.ID, &day.DayNumber, &day.Date, &day.IsBonusDay)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChallengeDayMissing
		}
		return nil, fmt.Errorf("getting challenge day: %w", err)
	}
	return &day, nil
}
