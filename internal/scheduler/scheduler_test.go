package scheduler

import (
	"context"
	"testing"
	"time"

	aggregatedomain "github.com/marginlens/marginlens/internal/aggregate/domain"
	"github.com/marginlens/marginlens/internal/clock"
	insightdomain "github.com/marginlens/marginlens/internal/insight/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type aggregateStub struct {
	calls *[]string
	dates []time.Time
	err   error
}

func (s *aggregateStub) Materialize(ctx context.Context, req aggregatedomain.MaterializeRequest) (aggregatedomain.MaterializeResponse, error) {
	*s.calls = append(*s.calls, "materialize_aggregates")
	s.dates = append(s.dates, req.Date)
	if s.err != nil {
		return aggregatedomain.MaterializeResponse{}, s.err
	}
	return aggregatedomain.MaterializeResponse{Created: 2}, nil
}

type insightStub struct {
	calls *[]string
	err   error
}

func (s *insightStub) Compute(ctx context.Context) (insightdomain.ComputeResponse, error) {
	*s.calls = append(*s.calls, "compute_insights")
	if s.err != nil {
		return insightdomain.ComputeResponse{}, s.err
	}
	return insightdomain.ComputeResponse{Created: 1}, nil
}

func (s *insightStub) ListActive(ctx context.Context) ([]insightdomain.InsightFlag, error) {
	return nil, nil
}

func newTestScheduler(t *testing.T, cfg Config, agg *aggregateStub, ins *insightStub) (*Scheduler, *clock.FakeClock) {
	t.Helper()
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))
	sched, err := New(Params{
		Log:          zap.NewNop(),
		Clock:        fakeClock,
		AggregateSvc: agg,
		InsightSvc:   ins,
		Config:       cfg,
	})
	require.NoError(t, err)
	return sched, fakeClock
}

func TestRunOnceMaterializesBeforeComputing(t *testing.T) {
	var calls []string
	agg := &aggregateStub{calls: &calls}
	ins := &insightStub{calls: &calls}
	sched, _ := newTestScheduler(t, Config{}, agg, ins)

	err := sched.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"materialize_aggregates", "compute_insights"}, calls)
}

func TestMaterializeJobTargetsCompletedDays(t *testing.T) {
	var calls []string
	agg := &aggregateStub{calls: &calls}
	ins := &insightStub{calls: &calls}
	sched, _ := newTestScheduler(t, Config{LookbackDays: 2}, agg, ins)

	err := sched.RunOnce(context.Background())
	require.NoError(t, err)

	// Oldest day first, never the current (partial) day.
	require.Len(t, agg.dates, 2)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), agg.dates[0])
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), agg.dates[1])
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	var calls []string
	agg := &aggregateStub{calls: &calls}
	ins := &insightStub{calls: &calls}
	sched, _ := newTestScheduler(t, Config{EnabledJobs: []string{"compute_insights"}}, agg, ins)

	err := sched.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"compute_insights"}, calls)
}

func TestRunOnceCollectsJobErrors(t *testing.T) {
	var calls []string
	agg := &aggregateStub{calls: &calls, err: assert.AnError}
	ins := &insightStub{calls: &calls}
	sched, _ := newTestScheduler(t, Config{}, agg, ins)

	err := sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)

	// A failing materialize pass must not stop insight computation.
	assert.Contains(t, calls, "compute_insights")
}

func TestRunJobTreatsDeadlineAsSoftError(t *testing.T) {
	var calls []string
	agg := &aggregateStub{calls: &calls}
	ins := &insightStub{calls: &calls, err: context.DeadlineExceeded}
	sched, _ := newTestScheduler(t, Config{}, agg, ins)

	err := sched.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 10*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 1, cfg.LookbackDays)
}
