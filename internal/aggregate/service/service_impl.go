package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	aggregatedomain "github.com/marginlens/marginlens/internal/aggregate/domain"
	"github.com/marginlens/marginlens/internal/clock"
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
	Repo    aggregatedomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    aggregatedomain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) aggregatedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("aggregate.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Materialize rebuilds the daily aggregates for one UTC day in a single
// transaction and reports how many rows did not exist before.
func (s *Service) Materialize(ctx context.Context, req aggregatedomain.MaterializeRequest) (aggregatedomain.MaterializeResponse, error) {
	if req.Date.IsZero() {
		return aggregatedomain.MaterializeResponse{}, aggregatedomain.ErrInvalidDate
	}

	date := truncateToDay(req.Date)
	from := date
	to := date.Add(24 * time.Hour)

	var created int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customerGroups, err := s.repo.CustomerGroups(ctx, tx, from, to)
		if err != nil {
			return err
		}
		featureGroups, err := s.repo.FeatureGroups(ctx, tx, from, to)
		if err != nil {
			return err
		}
		existingCustomers, err := s.repo.ExistingCustomerIDs(ctx, tx, date)
		if err != nil {
			return err
		}
		existingFeatures, err := s.repo.ExistingFeatures(ctx, tx, date)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		for _, group := range customerGroups {
			customerID := group.CustomerID
			row := aggregatedomain.DailyAggregate{
				ID:           s.genID.Generate(),
				Date:         date,
				CustomerID:   &customerID,
				UsageTotal:   group.UsageTotal,
				UsageCount:   group.UsageCount,
				CostTotal:    group.CostTotal,
				RevenueTotal: group.RevenueTotal,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.repo.UpsertCustomerRow(ctx, tx, &row); err != nil {
				return err
			}
			if _, ok := existingCustomers[customerID]; !ok {
				created++
			}
		}

		for _, group := range featureGroups {
			feature := group.Feature
			row := aggregatedomain.DailyAggregate{
				ID:         s.genID.Generate(),
				Date:       date,
				Feature:    &feature,
				UsageTotal: group.UsageTotal,
				UsageCount: group.UsageCount,
				CostTotal:  group.CostTotal,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := s.repo.UpsertFeatureRow(ctx, tx, &row); err != nil {
				return err
			}
			if _, ok := existingFeatures[feature]; !ok {
				created++
			}
		}

		return nil
	})
	if err != nil {
		return aggregatedomain.MaterializeResponse{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordAggregateRows(ctx, int64(created))
	}
	s.log.Info("daily aggregates materialized",
		zap.Time("date", date),
		zap.Int("created", created),
	)

	return aggregatedomain.MaterializeResponse{Created: created}, nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
