package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// DeactivateActive retires every active flag, stamping the resolution
	// time, and returns how many were retired.
	DeactivateActive(ctx context.Context, db *gorm.DB, resolvedAt time.Time) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, flag *InsightFlag) error
	// ListActive returns active flags ordered severity descending, then
	// creation time descending.
	ListActive(ctx context.Context, db *gorm.DB) ([]InsightFlag, error)
	CustomerLifetimeTotals(ctx context.Context, db *gorm.DB, usageThreshold, revenueFloor float64) ([]CustomerTotals, error)
	UnprofitableFeatures(ctx context.Context, db *gorm.DB, since time.Time) ([]FeatureTotals, error)
	CountLegacyCustomers(ctx context.Context, db *gorm.DB, substring string) (int64, error)
}
