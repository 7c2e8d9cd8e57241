package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CustomerGroups(ctx context.Context, db *gorm.DB, from, to time.Time) ([]CustomerGroup, error)
	FeatureGroups(ctx context.Context, db *gorm.DB, from, to time.Time) ([]FeatureGroup, error)
	ExistingCustomerIDs(ctx context.Context, db *gorm.DB, date time.Time) (map[snowflake.ID]struct{}, error)
	ExistingFeatures(ctx context.Context, db *gorm.DB, date time.Time) (map[string]struct{}, error)
	UpsertCustomerRow(ctx context.Context, db *gorm.DB, row *DailyAggregate) error
	UpsertFeatureRow(ctx context.Context, db *gorm.DB, row *DailyAggregate) error
}
