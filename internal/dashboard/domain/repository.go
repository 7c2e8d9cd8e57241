package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	TimeSeries(ctx context.Context, db *gorm.DB, start, end time.Time) ([]TimeSeriesRow, error)
	FeatureMetrics(ctx context.Context, db *gorm.DB, start, end time.Time) ([]FeatureRow, error)
}
