package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	aggregatedomain "github.com/marginlens/marginlens/internal/aggregate/domain"
	"github.com/marginlens/marginlens/internal/clock"
	insightdomain "github.com/marginlens/marginlens/internal/insight/domain"
	obsmetrics "github.com/marginlens/marginlens/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	AggregateSvc aggregatedomain.Service
	InsightSvc   insightdomain.Service
	Config       Config `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	aggregateSvc aggregatedomain.Service
	insightSvc   insightdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.AggregateSvc == nil || p.InsightSvc == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          cfg,
		clock:        p.Clock,
		aggregateSvc: p.AggregateSvc,
		insightSvc:   p.InsightSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	// deadline is a soft-timeout, not a failed run
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job in order. Aggregates for a day must be
// committed before insight rules read them, so materialize always runs first.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"materialize_aggregates", s.isJobEnabled("materialize_aggregates"), func(ctx context.Context) error {
			return s.runJob(ctx, "materialize_aggregates", s.cfg.JobTimeout, s.MaterializeAggregatesJob)
		}},
		{"compute_insights", s.isJobEnabled("compute_insights"), func(ctx context.Context) error {
			return s.runJob(ctx, "compute_insights", s.cfg.JobTimeout, s.ComputeInsightsJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs means every job runs (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// MaterializeAggregatesJob rebuilds daily aggregates for the most recent
// completed UTC days. The current (partial) day is never materialized.
func (s *Scheduler) MaterializeAggregatesJob(ctx context.Context) error {
	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	schedMetrics := obsmetrics.Scheduler()
	var jobErr error

	for offset := s.cfg.LookbackDays; offset >= 1; offset-- {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		date := today.AddDate(0, 0, -offset)
		resp, err := s.aggregateSvc.Materialize(ctx, aggregatedomain.MaterializeRequest{Date: date})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.log.Error("materialize aggregates failed",
				zap.String("job", "materialize_aggregates"),
				zap.Time("date", date),
				zap.String("error_type", obsmetrics.ClassifySchedulerJobReason(err)),
				zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
				zap.Error(err),
			)
			continue
		}
		schedMetrics.AddBatchProcessed("materialize_aggregates", "daily_aggregates", resp.Created)
	}

	return jobErr
}

func (s *Scheduler) ComputeInsightsJob(ctx context.Context) error {
	resp, err := s.insightSvc.Compute(ctx)
	if err != nil {
		s.log.Error("compute insights failed",
			zap.String("job", "compute_insights"),
			zap.String("error_type", obsmetrics.ClassifySchedulerJobReason(err)),
			zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
			zap.Error(err),
		)
		return err
	}
	obsmetrics.Scheduler().AddBatchProcessed("compute_insights", "insight_flags", resp.Created)
	return nil
}
