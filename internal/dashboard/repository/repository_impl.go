package repository

import (
	"context"
	"time"

	"github.com/marginlens/marginlens/internal/dashboard/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) TimeSeries(ctx context.Context, db *gorm.DB, start, end time.Time) ([]domain.TimeSeriesRow, error) {
	var rows []domain.TimeSeriesRow
	err := db.WithContext(ctx).Raw(
		`SELECT date,
		        SUM(usage_total) AS usage_total,
		        SUM(cost_total) AS cost_total,
		        SUM(revenue_total) AS revenue_total
		 FROM daily_aggregates
		 WHERE date >= ? AND date <= ? AND customer_id IS NOT NULL
		 GROUP BY date
		 ORDER BY date`,
		start,
		end,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FeatureMetrics(ctx context.Context, db *gorm.DB, start, end time.Time) ([]domain.FeatureRow, error) {
	var rows []domain.FeatureRow
	err := db.WithContext(ctx).Raw(
		`SELECT feature,
		        SUM(usage_total) AS usage_total,
		        SUM(cost_total) AS cost_total,
		        SUM(revenue_total) AS revenue_total
		 FROM daily_aggregates
		 WHERE date >= ? AND date <= ? AND feature IS NOT NULL
		 GROUP BY feature
		 ORDER BY feature`,
		start,
		end,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
