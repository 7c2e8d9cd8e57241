package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DailyAggregate is one materialized summary row for a single UTC day.
// Customer-scoped rows have CustomerID set and Feature null; feature-scoped
// rows have Feature set and CustomerID null. Feature rows carry no revenue
// because revenue is not feature-scoped upstream.
type DailyAggregate struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	Date         time.Time     `gorm:"not null;index" json:"date"`
	CustomerID   *snowflake.ID `gorm:"index" json:"customer_id,omitempty"`
	Feature      *string       `gorm:"index" json:"feature,omitempty"`
	UsageTotal   float64       `gorm:"not null" json:"usage_total"`
	UsageCount   int64         `gorm:"not null" json:"usage_count"`
	CostTotal    float64       `gorm:"not null" json:"cost_total"`
	RevenueTotal float64       `gorm:"not null" json:"revenue_total"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// CustomerGroup is the per-customer rollup of one day's usage plus the
// windowed revenue sum.
type CustomerGroup struct {
	CustomerID   snowflake.ID `gorm:"column:customer_id"`
	UsageTotal   float64      `gorm:"column:usage_total"`
	UsageCount   int64        `gorm:"column:usage_count"`
	CostTotal    float64      `gorm:"column:cost_total"`
	RevenueTotal float64      `gorm:"column:revenue_total"`
}

// FeatureGroup is the per-feature rollup of one day's usage.
type FeatureGroup struct {
	Feature    string  `gorm:"column:feature"`
	UsageTotal float64 `gorm:"column:usage_total"`
	UsageCount int64   `gorm:"column:usage_count"`
	CostTotal  float64 `gorm:"column:cost_total"`
}
