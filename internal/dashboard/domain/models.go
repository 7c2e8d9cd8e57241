package domain

import "time"

// TimeSeriesRow is the per-date rollup of customer-scoped aggregates.
type TimeSeriesRow struct {
	Date         time.Time `gorm:"column:date"`
	UsageTotal   float64   `gorm:"column:usage_total"`
	CostTotal    float64   `gorm:"column:cost_total"`
	RevenueTotal float64   `gorm:"column:revenue_total"`
}

// FeatureRow is the per-feature rollup of feature-scoped aggregates.
type FeatureRow struct {
	Feature      string  `gorm:"column:feature"`
	UsageTotal   float64 `gorm:"column:usage_total"`
	CostTotal    float64 `gorm:"column:cost_total"`
	RevenueTotal float64 `gorm:"column:revenue_total"`
}

type TimeSeriesPoint struct {
	Date      string  `json:"date"`
	UsageCost float64 `json:"usage_cost"`
	Revenue   float64 `json:"revenue"`
	Profit    float64 `json:"profit"`
}

type FeatureMetric struct {
	FeatureName  string  `json:"feature_name"`
	UsageCount   int64   `json:"usage_count"`
	TotalCost    float64 `json:"total_cost"`
	Revenue      float64 `json:"revenue"`
	ProfitMargin float64 `json:"profit_margin"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Summary struct {
	TotalUsageCost         float64   `json:"total_usage_cost"`
	TotalRevenue           float64   `json:"total_revenue"`
	TotalProfit            float64   `json:"total_profit"`
	ProfitMarginPercentage float64   `json:"profit_margin_percentage"`
	DateRange              DateRange `json:"date_range"`
}

type DashboardData struct {
	Summary        Summary           `json:"summary"`
	TimeSeries     []TimeSeriesPoint `json:"time_series"`
	FeatureMetrics []FeatureMetric   `json:"feature_metrics"`
}
