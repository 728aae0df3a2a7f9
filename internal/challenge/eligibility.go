package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/challenge75/internal/domain"
)

// Ineligibility reasons
const (
	ReasonOutsidePeriod    = "outside challenge period"
	ReasonAlreadySubmitted = "already submitted today"
)

// DayStore is the read side the eligibility rule needs
type DayStore interface {
	ChallengeDayByDate(ctx context.Context, date time.Time) (*domain.ChallengeDay, error)
	SubmissionExists(ctx context.Context, userID string, challengeDayID int) (bool, error)
}

// Eligibility decides whether a user may submit for the active day.
// Nothing is cached: the day and existing submissions are read on every call.
type Eligibility struct {
	calendar *Calendar
	store    DayStore
	now      func() time.Time
}

// NewEligibility creates the eligibility engine
func NewEligibility(calendar *Calendar, store DayStore, now func() time.Time) *Eligibility {
	if now == nil {
		now = time.Now
	}
	return &Eligibility{calendar: calendar, store: store, now: now}
}

// ActiveDay returns the challenge day for the current shifted date, or nil
// outside the challenge period
func (e *Eligibility) ActiveDay(ctx context.Context) (*domain.ChallengeDay, error) {
	day, err := e.store.ChallengeDayByDate(ctx, e.calendar.Today(e.now()))
	if err != nil {
		if errors.Is(err, domain.ErrChallengeDayMissing) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up active day: %w", err)
	}
	return day, nil
}

// Check evaluates the user's eligibility right now
func (e *Eligibility) Check(ctx context.Context, userID string) (domain.Eligibility, error) {
	day, err := e.ActiveDay(ctx)
	if err != nil {
		return domain.Eligibility{}, err
	}
	if day == nil {
		return domain.Eligibility{Reason: ReasonOutsidePeriod}, nil
	}

	exists, err := e.store.SubmissionExists(ctx, userID, day.ID)
	if err != nil {
		return domain.Eligibility{}, fmt.Errorf("checking existing submission: %w", err)
	}
	if exists {
		return domain.Eligibility{Reason: ReasonAlreadySubmitted, Day: day}, nil
	}

	return domain.Eligibility{Eligible: true, Day: day}, nil
}

// Today returns the current shifted date
func (e *Eligibility) Today() time.Time {
	return e.calendar.Today(e.now())
}
