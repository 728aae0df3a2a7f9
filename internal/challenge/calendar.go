// Package challenge holds the calendar of the challenge, the rule deciding
// whether a participant may submit right now, and submission validation.
package challenge

import (
	"fmt"
	"time"

	"github.com/challenge75/internal/config"
	"github.com/challenge75/internal/domain"
)

// Calendar maps wall-clock time onto challenge days
type Calendar struct {
	start  time.Time
	days   int
	offset time.Duration
	bonus  time.Weekday
}

// NewCalendar builds a calendar from configuration
func NewCalendar(cfg *config.ChallengeConfig) (*Calendar, error) {
	start, err := cfg.Start()
	if err != nil {
		return nil, err
	}
	bonus, err := cfg.Weekday()
	if err != nil {
		return nil, err
	}
	if cfg.Days <= 0 {
		return nil, fmt.Errorf("challenge must span at least one day, got %d", cfg.Days)
	}
	return &Calendar{
		start:  truncateDate(start),
		days:   cfg.Days,
		offset: cfg.UTCOffset,
		bonus:  bonus,
	}, nil
}

// Today shifts now by the challenge timezone offset and truncates it to a date
func (c *Calendar) Today(now time.Time) time.Time {
	return truncateDate(now.UTC().Add(c.offset))
}

// Days returns every challenge day in ascending order. IDs are left for the
// store to assign.
func (c *Calendar) Days() []domain.ChallengeDay {
	days := make([]domain.ChallengeDay, 0, c.days)
	for i := 0; i < c.days; i++ {
		date := c.start.AddDate(0, 0, i)
		days = append(days, domain.ChallengeDay{
			DayNumber:  i + 1,
			Date:       date,
			IsBonusDay: date.Weekday() == c.bonus,
		})
	}
	return days
}

// Start returns the date of day 1
func (c *Calendar) Start() time.Time {
	return c.start
}

// End returns the date of the last day
func (c *Calendar) End() time.Time {
	return c.start.AddDate(0, 0, c.days-1)
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
