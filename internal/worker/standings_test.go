package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/challenge75/internal/config"
	"github.com/challenge75/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	rows []domain.LeaderboardRow
	err  error
}

func (f *fakeSource) Standings(context.Context, string) ([]domain.LeaderboardRow, error) {
	return f.rows, f.err
}

type fakeSink struct {
	mu    sync.Mutex
	sends [][]domain.LeaderboardRow
}

func (f *fakeSink) BroadcastStandings(rows []domain.LeaderboardRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, rows)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func newWorker(src StandingsSource, sink StandingsSink, interval time.Duration) *StandingsWorker {
	return NewStandingsWorker(src, sink, &config.StandingsConfig{Enabled: true, Interval: interval},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStandingsWorker_BroadcastsOnTick(t *testing.T) {
	src := &fakeSource{rows: []domain.LeaderboardRow{{UserID: "u1", TotalScore: 3}}}
	sink := &fakeSink{}
	w := newWorker(src, sink, 10*time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())

	assert.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}

func TestStandingsWorker_SkipsOnError(t *testing.T) {
	sink := &fakeSink{}
	w := newWorker(&fakeSource{err: errors.New("db down")}, sink, time.Hour)

	w.RunOnce(context.Background())
	assert.Zero(t, sink.count())
}

func TestStandingsWorker_StopsWithContext(t *testing.T) {
	sink := &fakeSink{}
	w := newWorker(&fakeSource{}, sink, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.doneCh:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after cancel")
	}
}
