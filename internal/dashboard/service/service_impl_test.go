package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	aggregatedomain "github.com/marginlens/marginlens/internal/aggregate/domain"
	dashboarddomain "github.com/marginlens/marginlens/internal/dashboard/domain"
	"github.com/marginlens/marginlens/internal/dashboard/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDashboardTest(t *testing.T) (*gorm.DB, dashboarddomain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&aggregatedomain.DailyAggregate{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	})

	return db, svc, node
}

func seedCustomerAggregate(t *testing.T, db *gorm.DB, node *snowflake.Node, date time.Time, usage float64, cost, revenue float64) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO daily_aggregates (id, date, customer_id, feature, usage_total, usage_count, cost_total, revenue_total, created_at, updated_at)
		 VALUES (?, ?, ?, NULL, ?, 1, ?, ?, ?, ?)`,
		node.Generate(), date, node.Generate(), usage, cost, revenue, time.Now().UTC(), time.Now().UTC(),
	).Error)
}

func seedFeatureAggregate(t *testing.T, db *gorm.DB, node *snowflake.Node, date time.Time, feature string, usage, cost, revenue float64) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO daily_aggregates (id, date, customer_id, feature, usage_total, usage_count, cost_total, revenue_total, created_at, updated_at)
		 VALUES (?, ?, NULL, ?, ?, 1, ?, ?, ?, ?)`,
		node.Generate(), date, feature, usage, cost, revenue, time.Now().UTC(), time.Now().UTC(),
	).Error)
}

func TestGetDashboardDataShapesSeriesAndSummary(t *testing.T) {
	db, svc, node := setupDashboardTest(t)

	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// Two customers on day1 collapse into one point.
	seedCustomerAggregate(t, db, node, day1, 100, 40, 100)
	seedCustomerAggregate(t, db, node, day1, 50, 10, 20)
	seedCustomerAggregate(t, db, node, day2, 30, 30, 90)

	seedFeatureAggregate(t, db, node, day1, "api_calls", 150, 50, 120)

	resp, err := svc.GetDashboardData(context.Background(), dashboarddomain.DashboardRequest{
		Start: day1,
		End:   day2,
	})
	require.NoError(t, err)

	require.Len(t, resp.TimeSeries, 2)
	first := resp.TimeSeries[0]
	assert.Equal(t, "2026-03-01", first.Date)
	assert.Equal(t, float64(50), first.UsageCost)
	assert.Equal(t, float64(120), first.Revenue)
	assert.Equal(t, float64(70), first.Profit)

	assert.Equal(t, float64(80), resp.Summary.TotalUsageCost)
	assert.Equal(t, float64(210), resp.Summary.TotalRevenue)
	assert.Equal(t, float64(130), resp.Summary.TotalProfit)
	assert.InDelta(t, 61.904, resp.Summary.ProfitMarginPercentage, 0.01)
	assert.Equal(t, "2026-03-01", resp.Summary.DateRange.Start)
	assert.Equal(t, "2026-03-02", resp.Summary.DateRange.End)

	require.Len(t, resp.FeatureMetrics, 1)
	metric := resp.FeatureMetrics[0]
	assert.Equal(t, "api_calls", metric.FeatureName)
	assert.Equal(t, int64(150), metric.UsageCount)
	assert.Equal(t, float64(50), metric.TotalCost)
	assert.InDelta(t, (120.0-50.0)/120.0*100, metric.ProfitMargin, 0.001)
}

func TestGetDashboardDataZeroRevenueMargin(t *testing.T) {
	db, svc, node := setupDashboardTest(t)

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedFeatureAggregate(t, db, node, day, "exports", 10, 50, 0)
	seedCustomerAggregate(t, db, node, day, 10, 50, 0)

	resp, err := svc.GetDashboardData(context.Background(), dashboarddomain.DashboardRequest{
		Start: day,
		End:   day,
	})
	require.NoError(t, err)

	// Denominator falls back to 1, so cost 50 at zero revenue reads -5000%.
	require.Len(t, resp.FeatureMetrics, 1)
	assert.Equal(t, float64(-5000), resp.FeatureMetrics[0].ProfitMargin)

	// Summary margin is simply 0% when nothing was earned.
	assert.Equal(t, float64(0), resp.Summary.ProfitMarginPercentage)
	assert.Equal(t, float64(-50), resp.Summary.TotalProfit)
}

func TestGetDashboardDataEmptyRange(t *testing.T) {
	_, svc, _ := setupDashboardTest(t)

	resp, err := svc.GetDashboardData(context.Background(), dashboarddomain.DashboardRequest{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Empty(t, resp.TimeSeries)
	assert.Empty(t, resp.FeatureMetrics)
	assert.Equal(t, float64(0), resp.Summary.TotalRevenue)
	assert.Equal(t, float64(0), resp.Summary.ProfitMarginPercentage)
}

func TestGetDashboardDataRejectsInvertedRange(t *testing.T) {
	_, svc, _ := setupDashboardTest(t)

	_, err := svc.GetDashboardData(context.Background(), dashboarddomain.DashboardRequest{
		Start: time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, dashboarddomain.ErrInvalidRange)
}
