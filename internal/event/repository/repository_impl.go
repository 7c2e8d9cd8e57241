package repository

import (
	"context"
	"strings"
	"time"

	"github.com/marginlens/marginlens/internal/event/domain"
	pkgdb "github.com/marginlens/marginlens/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertUsageEvent(ctx context.Context, db *gorm.DB, event *domain.UsageEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_events (id, customer_id, feature, quantity, unit_cost, timestamp, source, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.CustomerID,
		event.Feature,
		event.Quantity,
		event.UnitCost,
		event.Timestamp,
		event.Source,
		event.Metadata,
		event.CreatedAt,
	).Error
}

func (r *repo) InsertRevenueEvent(ctx context.Context, db *gorm.DB, event *domain.RevenueEvent) (bool, error) {
	query := `INSERT INTO revenue_events (id, customer_id, amount, currency, event_type, external_id, timestamp, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if strings.EqualFold(db.Dialector.Name(), "mysql") {
		query = strings.Replace(query, "INSERT INTO", "INSERT IGNORE INTO", 1)
	} else {
		query += " ON CONFLICT (external_id) DO NOTHING"
	}

	result := db.WithContext(ctx).Exec(
		query,
		event.ID,
		event.CustomerID,
		event.Amount,
		event.Currency,
		event.EventType,
		event.ExternalID,
		event.Timestamp,
		event.CreatedAt,
	)
	if result.Error != nil {
		if pkgdb.IsDuplicateKeyErr(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CountUsageEvents(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM usage_events WHERE timestamp >= ? AND timestamp < ?`,
		from,
		to,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountRevenueEvents(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM revenue_events WHERE timestamp >= ? AND timestamp < ?`,
		from,
		to,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountCustomers(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM customers`).Scan(&count).Error
	return count, err
}
