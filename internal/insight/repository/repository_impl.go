package repository

import (
	"context"
	"strings"
	"time"

	"github.com/marginlens/marginlens/internal/insight/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) DeactivateActive(ctx context.Context, db *gorm.DB, resolvedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE insight_flags SET is_active = ?, resolved_at = ? WHERE is_active = ?`,
		false,
		resolvedAt,
		true,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, flag *domain.InsightFlag) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO insight_flags (id, customer_id, insight_type, severity, category, title, message, metric_value, is_active, created_at, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		flag.ID,
		flag.CustomerID,
		flag.InsightType,
		flag.Severity,
		flag.Category,
		flag.Title,
		flag.Message,
		flag.MetricValue,
		flag.IsActive,
		flag.CreatedAt,
		flag.ResolvedAt,
	).Error
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]domain.InsightFlag, error) {
	var flags []domain.InsightFlag
	err := db.WithContext(ctx).Raw(
		`SELECT id, customer_id, insight_type, severity, category, title, message, metric_value, is_active, created_at, resolved_at
		 FROM insight_flags
		 WHERE is_active = ?
		 ORDER BY CASE severity
		     WHEN 'critical' THEN 3
		     WHEN 'warning' THEN 2
		     WHEN 'info' THEN 1
		     ELSE 0
		 END DESC, created_at DESC`,
		true,
	).Scan(&flags).Error
	if err != nil {
		return nil, err
	}
	return flags, nil
}

func (r *repo) CustomerLifetimeTotals(ctx context.Context, db *gorm.DB, usageThreshold, revenueFloor float64) ([]domain.CustomerTotals, error) {
	var totals []domain.CustomerTotals
	err := db.WithContext(ctx).Raw(
		`SELECT c.id AS customer_id,
		        c.name AS name,
		        SUM(u.quantity) AS usage_total,
		        COALESCE((
		            SELECT SUM(r.amount) FROM revenue_events r WHERE r.customer_id = c.id
		        ), 0) AS revenue_total
		 FROM customers c
		 JOIN usage_events u ON u.customer_id = c.id
		 GROUP BY c.id, c.name
		 HAVING SUM(u.quantity) > ?
		    AND COALESCE((SELECT SUM(r.amount) FROM revenue_events r WHERE r.customer_id = c.id), 0) < ?
		 ORDER BY c.id`,
		usageThreshold,
		revenueFloor,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repo) UnprofitableFeatures(ctx context.Context, db *gorm.DB, since time.Time) ([]domain.FeatureTotals, error) {
	var totals []domain.FeatureTotals
	err := db.WithContext(ctx).Raw(
		`SELECT feature,
		        SUM(cost_total) AS cost_total,
		        SUM(revenue_total) AS revenue_total
		 FROM daily_aggregates
		 WHERE feature IS NOT NULL AND customer_id IS NULL AND date >= ?
		 GROUP BY feature
		 HAVING SUM(cost_total) > SUM(revenue_total)
		 ORDER BY feature`,
		since,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repo) CountLegacyCustomers(ctx context.Context, db *gorm.DB, substring string) (int64, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(substring)) + "%"
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM customers WHERE LOWER(plan) LIKE ?`,
		pattern,
	).Scan(&count).Error
	return count, err
}
