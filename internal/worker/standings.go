// Package worker runs background jobs of the tracker.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/challenge75/internal/config"
	"github.com/challenge75/internal/domain"
)

// StandingsSource computes the current leaderboard
type StandingsSource interface {
	Standings(ctx context.Context, name string) ([]domain.LeaderboardRow, error)
}

// StandingsSink receives each computed leaderboard
type StandingsSink interface {
	BroadcastStandings(rows []domain.LeaderboardRow)
}

// StandingsWorker periodically recomputes the leaderboard and pushes it to
// live dashboards
type StandingsWorker struct {
	source  StandingsSource
	sink    StandingsSink
	config  *config.StandingsConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewStandingsWorker creates a new standings worker
func NewStandingsWorker(
	source StandingsSource,
	sink StandingsSink,
	cfg *config.StandingsConfig,
	logger *slog.Logger,
) *StandingsWorker {
	return &StandingsWorker{
		source: source,
		sink:   sink,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background loop
func (w *StandingsWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("standings worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background loop and waits for it to exit
func (w *StandingsWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("standings worker stopped")
	return nil
}

// run is the main worker loop
func (w *StandingsWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce computes and broadcasts the standings a single time
func (w *StandingsWorker) RunOnce(ctx context.Context) {
	startTime := time.Now()

	rows, err := w.source.Standings(ctx, "")
	if err != nil {
		w.logger.Error("failed to compute standings", "error", err)
		return
	}
	w.sink.BroadcastStandings(rows)

	w.logger.Debug("standings broadcast",
		"duration", time.Since(startTime),
		"participants", len(rows),
	)
}

// IsRunning returns whether the worker is currently running
func (w *StandingsWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
