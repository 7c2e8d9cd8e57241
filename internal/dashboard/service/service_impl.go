package service

import (
	"context"

	dashboarddomain "github.com/marginlens/marginlens/internal/dashboard/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo dashboarddomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo dashboarddomain.Repository
}

func New(p Params) dashboarddomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("dashboard.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetDashboardData(ctx context.Context, req dashboarddomain.DashboardRequest) (dashboarddomain.DashboardData, error) {
	if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
		return dashboarddomain.DashboardData{}, dashboarddomain.ErrInvalidRange
	}
	start := req.Start.UTC()
	end := req.End.UTC()

	rows, err := s.repo.TimeSeries(ctx, s.db, start, end)
	if err != nil {
		return dashboarddomain.DashboardData{}, err
	}
	featureRows, err := s.repo.FeatureMetrics(ctx, s.db, start, end)
	if err != nil {
		return dashboarddomain.DashboardData{}, err
	}

	timeSeries := make([]dashboarddomain.TimeSeriesPoint, 0, len(rows))
	var totalCost, totalRevenue float64
	for _, row := range rows {
		totalCost += row.CostTotal
		totalRevenue += row.RevenueTotal
		timeSeries = append(timeSeries, dashboarddomain.TimeSeriesPoint{
			Date:      row.Date.UTC().Format("2006-01-02"),
			UsageCost: row.CostTotal,
			Revenue:   row.RevenueTotal,
			Profit:    row.RevenueTotal - row.CostTotal,
		})
	}

	featureMetrics := make([]dashboarddomain.FeatureMetric, 0, len(featureRows))
	for _, row := range featureRows {
		// Revenue of zero falls back to a denominator of 1; a documented
		// approximation instead of a division error.
		denominator := row.RevenueTotal
		if denominator == 0 {
			denominator = 1
		}
		featureMetrics = append(featureMetrics, dashboarddomain.FeatureMetric{
			FeatureName:  row.Feature,
			UsageCount:   int64(row.UsageTotal),
			TotalCost:    row.CostTotal,
			Revenue:      row.RevenueTotal,
			ProfitMargin: (row.RevenueTotal - row.CostTotal) / denominator * 100,
		})
	}

	totalProfit := totalRevenue - totalCost
	marginPct := 0.0
	if totalRevenue > 0 {
		marginPct = totalProfit / totalRevenue * 100
	}

	return dashboarddomain.DashboardData{
		Summary: dashboarddomain.Summary{
			TotalUsageCost:         totalCost,
			TotalRevenue:           totalRevenue,
			TotalProfit:            totalProfit,
			ProfitMarginPercentage: marginPct,
			DateRange: dashboarddomain.DateRange{
				Start: start.Format("2006-01-02"),
				End:   end.Format("2006-01-02"),
			},
		},
		TimeSeries:     timeSeries,
		FeatureMetrics: featureMetrics,
	}, nil
}
