package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type InsightType string

const (
	InsightTypeLowRevenue          InsightType = "low_revenue"
	InsightTypeUnprofitableFeature InsightType = "unprofitable_feature"
	InsightTypeLegacyPlan          InsightType = "legacy_plan"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities for retrieval, highest first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

const (
	CategoryCustomer = "customer"
	CategoryFeature  = "feature"
	CategoryUsage    = "usage"
)

// InsightFlag is one materialized rule violation. Flags are replaced
// wholesale on every compute pass rather than updated in place.
type InsightFlag struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	CustomerID  *snowflake.ID `gorm:"index" json:"customer_id,omitempty"`
	InsightType InsightType   `gorm:"not null" json:"insight_type"`
	Severity    Severity      `gorm:"not null" json:"severity"`
	Category    string        `gorm:"not null" json:"category"`
	Title       string        `gorm:"not null" json:"title"`
	Message     string        `gorm:"not null" json:"message"`
	MetricValue string        `json:"metric_value"`
	IsActive    bool          `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// CustomerTotals is a customer's lifetime usage and revenue rollup.
type CustomerTotals struct {
	CustomerID   snowflake.ID `gorm:"column:customer_id"`
	Name         string       `gorm:"column:name"`
	UsageTotal   float64      `gorm:"column:usage_total"`
	RevenueTotal float64      `gorm:"column:revenue_total"`
}

// FeatureTotals is a feature's cost and revenue over a trailing window of
// feature-scoped daily aggregates.
type FeatureTotals struct {
	Feature      string  `gorm:"column:feature"`
	CostTotal    float64 `gorm:"column:cost_total"`
	RevenueTotal float64 `gorm:"column:revenue_total"`
}
