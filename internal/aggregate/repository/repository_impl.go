package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/marginlens/marginlens/internal/aggregate/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CustomerGroups(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.CustomerGroup, error) {
	var groups []domain.CustomerGroup
	err := db.WithContext(ctx).Raw(
		`SELECT u.customer_id AS customer_id,
		        SUM(u.quantity) AS usage_total,
		        COUNT(*) AS usage_count,
		        SUM(u.quantity * u.unit_cost) AS cost_total,
		        COALESCE((
		            SELECT SUM(r.amount)
		            FROM revenue_events r
		            WHERE r.customer_id = u.customer_id
		              AND r.timestamp >= ? AND r.timestamp < ?
		        ), 0) AS revenue_total
		 FROM usage_events u
		 WHERE u.timestamp >= ? AND u.timestamp < ?
		 GROUP BY u.customer_id
		 ORDER BY u.customer_id`,
		from, to, from, to,
	).Scan(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *repo) FeatureGroups(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.FeatureGroup, error) {
	var groups []domain.FeatureGroup
	err := db.WithContext(ctx).Raw(
		`SELECT u.feature AS feature,
		        SUM(u.quantity) AS usage_total,
		        COUNT(*) AS usage_count,
		        SUM(u.quantity * u.unit_cost) AS cost_total
		 FROM usage_events u
		 WHERE u.timestamp >= ? AND u.timestamp < ?
		 GROUP BY u.feature
		 ORDER BY u.feature`,
		from, to,
	).Scan(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *repo) ExistingCustomerIDs(ctx context.Context, db *gorm.DB, date time.Time) (map[snowflake.ID]struct{}, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT customer_id FROM daily_aggregates
		 WHERE date = ? AND customer_id IS NOT NULL AND feature IS NULL`,
		date,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	existing := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		existing[id] = struct{}{}
	}
	return existing, nil
}

func (r *repo) ExistingFeatures(ctx context.Context, db *gorm.DB, date time.Time) (map[string]struct{}, error) {
	var features []string
	err := db.WithContext(ctx).Raw(
		`SELECT feature FROM daily_aggregates
		 WHERE date = ? AND feature IS NOT NULL AND customer_id IS NULL`,
		date,
	).Scan(&features).Error
	if err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(features))
	for _, feature := range features {
		existing[feature] = struct{}{}
	}
	return existing, nil
}

// UpsertCustomerRow fully replaces the metric fields on conflict so reruns
// are idempotent rather than additive.
func (r *repo) UpsertCustomerRow(ctx context.Context, db *gorm.DB, row *domain.DailyAggregate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO daily_aggregates (id, date, customer_id, feature, usage_total, usage_count, cost_total, revenue_total, created_at, updated_at)
		 VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (date, customer_id) WHERE feature IS NULL
		 DO UPDATE SET usage_total = EXCLUDED.usage_total,
		               usage_count = EXCLUDED.usage_count,
		               cost_total = EXCLUDED.cost_total,
		               revenue_total = EXCLUDED.revenue_total,
		               updated_at = EXCLUDED.updated_at`,
		row.ID,
		row.Date,
		row.CustomerID,
		row.UsageTotal,
		row.UsageCount,
		row.CostTotal,
		row.RevenueTotal,
		row.CreatedAt,
		row.UpdatedAt,
	).Error
}

func (r *repo) UpsertFeatureRow(ctx context.Context, db *gorm.DB, row *domain.DailyAggregate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO daily_aggregates (id, date, customer_id, feature, usage_total, usage_count, cost_total, revenue_total, created_at, updated_at)
		 VALUES (?, ?, NULL, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (date, feature) WHERE customer_id IS NULL
		 DO UPDATE SET usage_total = EXCLUDED.usage_total,
		               usage_count = EXCLUDED.usage_count,
		               cost_total = EXCLUDED.cost_total,
		               revenue_total = EXCLUDED.revenue_total,
		               updated_at = EXCLUDED.updated_at`,
		row.ID,
		row.Date,
		row.Feature,
		row.UsageTotal,
		row.UsageCount,
		row.CostTotal,
		row.RevenueTotal,
		row.CreatedAt,
		row.UpdatedAt,
	).Error
}
