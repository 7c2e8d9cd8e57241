package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/marginlens/marginlens/internal/clock"
	insightdomain "github.com/marginlens/marginlens/internal/insight/domain"
	obsmetrics "github.com/marginlens/marginlens/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  insightdomain.Config
	Repo    insightdomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     insightdomain.Config
	repo    insightdomain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) insightdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("insight.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Config.WithDefaults(),
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Compute retires the entire active insight set and re-derives it from
// scratch. Deactivation and all inserts commit as one transaction so a
// mid-pass failure cannot leave retired flags without replacements.
func (s *Service) Compute(ctx context.Context) (insightdomain.ComputeResponse, error) {
	now := s.clock.Now()

	var created int
	var resolved int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		resolved, err = s.repo.DeactivateActive(ctx, tx, now)
		if err != nil {
			return err
		}

		flags, err := s.deriveFlags(ctx, tx, now)
		if err != nil {
			return err
		}
		for i := range flags {
			if err := s.repo.Insert(ctx, tx, &flags[i]); err != nil {
				return err
			}
		}
		created = len(flags)

		if s.metrics != nil {
			for i := range flags {
				s.metrics.RecordInsightRaised(ctx, string(flags[i].InsightType), string(flags[i].Severity))
			}
		}
		return nil
	})
	if err != nil {
		return insightdomain.ComputeResponse{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordInsightsResolved(ctx, resolved)
	}
	s.log.Info("insights computed",
		zap.Int("created", created),
		zap.Int64("resolved", resolved),
	)

	return insightdomain.ComputeResponse{Created: created}, nil
}

func (s *Service) ListActive(ctx context.Context) ([]insightdomain.InsightFlag, error) {
	return s.repo.ListActive(ctx, s.db)
}

func (s *Service) deriveFlags(ctx context.Context, tx *gorm.DB, now time.Time) ([]insightdomain.InsightFlag, error) {
	var flags []insightdomain.InsightFlag

	customers, err := s.repo.CustomerLifetimeTotals(ctx, tx, s.cfg.UsageThreshold, s.cfg.RevenueFloor)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		customerID := c.CustomerID
		unitRevenue := c.RevenueTotal / c.UsageTotal
		flags = append(flags, insightdomain.InsightFlag{
			ID:          s.genID.Generate(),
			CustomerID:  &customerID,
			InsightType: insightdomain.InsightTypeLowRevenue,
			Severity:    insightdomain.SeverityCritical,
			Category:    insightdomain.CategoryCustomer,
			Title:       "High Usage, Low Revenue",
			Message: fmt.Sprintf("%s has high usage (%s) but low revenue ($%.2f)",
				c.Name, formatThousands(int64(c.UsageTotal)), c.RevenueTotal),
			MetricValue: fmt.Sprintf("Revenue/Unit: $%.4f", unitRevenue),
			IsActive:    true,
			CreatedAt:   now,
		})
	}

	since := now.AddDate(0, 0, -s.cfg.FeatureWindowDays)
	features, err := s.repo.UnprofitableFeatures(ctx, tx, since)
	if err != nil {
		return nil, err
	}
	for _, f := range features {
		loss := f.CostTotal - f.RevenueTotal
		severity := insightdomain.SeverityWarning
		if loss > s.cfg.CriticalLossThreshold {
			severity = insightdomain.SeverityCritical
		}
		flags = append(flags, insightdomain.InsightFlag{
			ID:          s.genID.Generate(),
			InsightType: insightdomain.InsightTypeUnprofitableFeature,
			Severity:    severity,
			Category:    insightdomain.CategoryFeature,
			Title:       "Unprofitable Feature",
			Message: fmt.Sprintf("Feature %q costs $%.2f but generates $%.2f",
				f.Feature, f.CostTotal, f.RevenueTotal),
			MetricValue: fmt.Sprintf("Loss: $%.2f", loss),
			IsActive:    true,
			CreatedAt:   now,
		})
	}

	legacyCount, err := s.repo.CountLegacyCustomers(ctx, tx, s.cfg.LegacyPlanSubstring)
	if err != nil {
		return nil, err
	}
	if legacyCount > 0 {
		flags = append(flags, insightdomain.InsightFlag{
			ID:          s.genID.Generate(),
			InsightType: insightdomain.InsightTypeLegacyPlan,
			Severity:    insightdomain.SeverityWarning,
			Category:    insightdomain.CategoryUsage,
			Title:       "Legacy Plan Usage",
			Message:     fmt.Sprintf("%d customer(s) on legacy plans", legacyCount),
			MetricValue: fmt.Sprintf("%d customers", legacyCount),
			IsActive:    true,
			CreatedAt:   now,
		})
	}

	return flags, nil
}

// formatThousands renders n with comma separators, e.g. 15000 -> "15,000".
func formatThousands(n int64) string {
	value := strconv.FormatInt(n, 10)
	negative := false
	if len(value) > 0 && value[0] == '-' {
		negative = true
		value = value[1:]
	}

	var out []byte
	for i, digit := range []byte(value) {
		if i > 0 && (len(value)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digit)
	}
	if negative {
		return "-" + string(out)
	}
	return string(out)
}
