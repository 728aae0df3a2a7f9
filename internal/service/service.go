package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/challenge75/internal/auth"
	"github.com/challenge75/internal/challenge"
	"github.com/challenge75/internal/domain"
	"github.com/challenge75/internal/metrics"
)

// Store is the persistence the tracker needs. Implementations must enforce
// unique emails and at most one submission per user and challenge day.
type Store interface {
	CreateUser(ctx context.Context, user *domain.User) error
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	UserByID(ctx context.Context, id string) (*domain.User, error)
	ListParticipants(ctx context.Context, name string) ([]domain.User, error)

	SeedChallengeDays(ctx context.Context, days []domain.ChallengeDay) error
	ChallengeDays(ctx context.Context) ([]domain.ChallengeDay, error)
	ChallengeDaysThrough(ctx context.Context, through time.Time) ([]domain.ChallengeDay, error)
	ChallengeDayByDate(ctx context.Context, date time.Time) (*domain.ChallengeDay, error)

	SubmissionExists(ctx context.Context, userID string, challengeDayID int) (bool, error)
	CreateSubmission(ctx context.Context, sub *domain.Submission) error
	SubmissionByID(ctx context.Context, id string) (*domain.Submission, error)
	ListSubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]domain.SubmissionDetail, error)
	UpsertScore(ctx context.Context, score *domain.Score) error
}

// EventPublisher forwards domain events to the event stream
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Notifier pushes domain events to live subscribers
type Notifier interface {
	BroadcastEvent(event domain.Event)
}

// AttemptLimiter throttles repeated login attempts for one key
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
	Remaining(ctx context.Context, key string) (int64, error)
}

// TrackerService provides the business logic of the challenge tracker
type TrackerService struct {
	store       Store
	creds       *auth.Service
	calendar    *challenge.Calendar
	eligibility *challenge.Eligibility
	publisher   EventPublisher
	notifier    Notifier
	limiter     AttemptLimiter
	metrics     *metrics.Metrics
	now         func() time.Time
	logger      *slog.Logger
}

// Option customises a TrackerService
type Option func(*TrackerService)

// WithPublisher sets the event stream publisher
func WithPublisher(p EventPublisher) Option {
	return func(s *TrackerService) { s.publisher = p }
}

// WithNotifier sets the live update notifier
func WithNotifier(n Notifier) Option {
	return func(s *TrackerService) { s.notifier = n }
}

// WithLimiter sets the failed login limiter
func WithLimiter(l AttemptLimiter) Option {
	return func(s *TrackerService) { s.limiter = l }
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *TrackerService) { s.metrics = m }
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *TrackerService) { s.now = now }
}

// NewTrackerService creates a new tracker service
func NewTrackerService(
	store Store,
	creds *auth.Service,
	calendar *challenge.Calendar,
	logger *slog.Logger,
	opts ...Option,
) *TrackerService {
	s := &TrackerService{
		store:    store,
		creds:    creds,
		calendar: calendar,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.eligibility = challenge.NewEligibility(calendar, store, s.now)
	return s
}

// EnsureChallengeDays seeds the challenge calendar. Safe to call on every start.
func (s *TrackerService) EnsureChallengeDays(ctx context.Context) error {
	days := s.calendar.Days()
	if err := s.store.SeedChallengeDays(ctx, days); err != nil {
		return err
	}
	s.logger.Info("challenge calendar ready",
		"days", len(days),
		"start", s.calendar.Start().Format(time.DateOnly),
		"end", s.calendar.End().Format(time.DateOnly),
	)
	return nil
}

// ChallengeDays returns the full calendar
func (s *TrackerService) ChallengeDays(ctx context.Context) ([]domain.ChallengeDay, error) {
	return s.store.ChallengeDays(ctx)
}

// today is the current date in the challenge timezone
func (s *TrackerService) today() time.Time {
	return s.calendar.Today(s.now())
}

// emit publishes and broadcasts an event. Failures never fail the request.
func (s *TrackerService) emit(ctx context.Context, event domain.Event) {
	event.OccurredAt = s.now()
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish event", "type", event.Type, "error", err)
		}
	}
	if s.notifier != nil {
		s.notifier.BroadcastEvent(event)
	}
}
