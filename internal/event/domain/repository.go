package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	InsertUsageEvent(ctx context.Context, db *gorm.DB, event *UsageEvent) error
	// InsertRevenueEvent returns false when an event with the same external
	// identifier already exists.
	InsertRevenueEvent(ctx context.Context, db *gorm.DB, event *RevenueEvent) (bool, error)
	CountUsageEvents(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error)
	CountRevenueEvents(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error)
	CountCustomers(ctx context.Context, db *gorm.DB) (int64, error)
}
