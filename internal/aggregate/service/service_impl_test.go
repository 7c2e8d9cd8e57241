package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	aggregatedomain "github.com/marginlens/marginlens/internal/aggregate/domain"
	"github.com/marginlens/marginlens/internal/aggregate/repository"
	"github.com/marginlens/marginlens/internal/clock"
	customerdomain "github.com/marginlens/marginlens/internal/customer/domain"
	eventdomain "github.com/marginlens/marginlens/internal/event/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAggregateTest(t *testing.T) (*gorm.DB, aggregatedomain.Service, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&customerdomain.Customer{},
		&eventdomain.UsageEvent{},
		&eventdomain.RevenueEvent{},
		&aggregatedomain.DailyAggregate{},
	)
	require.NoError(t, err)

	// Partial unique indexes backing the two upsert families.
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_daily_aggregates_customer
		 ON daily_aggregates (date, customer_id) WHERE feature IS NULL`,
	).Error)
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_daily_aggregates_feature
		 ON daily_aggregates (date, feature) WHERE customer_id IS NULL`,
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  repository.Provide(),
	})

	return db, svc, node, fakeClock
}

func seedCustomer(t *testing.T, db *gorm.DB, node *snowflake.Node, externalID string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	require.NoError(t, db.Exec(
		`INSERT INTO customers (id, external_id, name, plan, created_at, updated_at)
		 VALUES (?, ?, ?, 'standard', ?, ?)`,
		id, externalID, externalID, time.Now().UTC(), time.Now().UTC(),
	).Error)
	return id
}

func seedUsage(t *testing.T, db *gorm.DB, node *snowflake.Node, customerID snowflake.ID, feature string, quantity, unitCost float64, ts time.Time) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO usage_events (id, customer_id, feature, quantity, unit_cost, timestamp, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'test', ?)`,
		node.Generate(), customerID, feature, quantity, unitCost, ts, time.Now().UTC(),
	).Error)
}

func seedRevenue(t *testing.T, db *gorm.DB, node *snowflake.Node, customerID snowflake.ID, amount float64, externalID string, ts time.Time) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO revenue_events (id, customer_id, amount, currency, event_type, external_id, timestamp, created_at)
		 VALUES (?, ?, ?, 'USD', 'invoice', ?, ?, ?)`,
		node.Generate(), customerID, amount, externalID, ts, time.Now().UTC(),
	).Error)
}

func TestMaterializeBuildsCustomerAndFeatureRows(t *testing.T) {
	db, svc, node, _ := setupAggregateTest(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	customerA := seedCustomer(t, db, node, "acme")
	customerB := seedCustomer(t, db, node, "globex")

	seedUsage(t, db, node, customerA, "api_calls", 100, 0.5, day.Add(2*time.Hour))
	seedUsage(t, db, node, customerA, "api_calls", 50, 0.5, day.Add(3*time.Hour))
	seedUsage(t, db, node, customerA, "storage", 10, 2, day.Add(4*time.Hour))
	seedUsage(t, db, node, customerB, "api_calls", 20, 0.5, day.Add(5*time.Hour))
	seedRevenue(t, db, node, customerA, 500, "inv-1", day.Add(6*time.Hour))

	resp, err := svc.Materialize(ctx, aggregatedomain.MaterializeRequest{Date: day})
	require.NoError(t, err)
	// 2 customer rows + 2 feature rows.
	assert.Equal(t, 4, resp.Created)

	var customerRow aggregatedomain.DailyAggregate
	require.NoError(t, db.Raw(
		`SELECT * FROM daily_aggregates WHERE customer_id = ? AND feature IS NULL`, customerA,
	).Scan(&customerRow).Error)
	assert.Equal(t, float64(160), customerRow.UsageTotal)
	assert.Equal(t, int64(3), customerRow.UsageCount)
	assert.Equal(t, float64(95), customerRow.CostTotal) // 100*0.5 + 50*0.5 + 10*2
	assert.Equal(t, float64(500), customerRow.RevenueTotal)

	var featureRow aggregatedomain.DailyAggregate
	require.NoError(t, db.Raw(
		`SELECT * FROM daily_aggregates WHERE feature = 'api_calls' AND customer_id IS NULL`,
	).Scan(&featureRow).Error)
	assert.Equal(t, float64(170), featureRow.UsageTotal)
	assert.Equal(t, int64(3), featureRow.UsageCount)
	assert.Equal(t, float64(85), featureRow.CostTotal)
	// Feature rows never carry revenue.
	assert.Equal(t, float64(0), featureRow.RevenueTotal)
}

func TestMaterializeIsIdempotent(t *testing.T) {
	db, svc, node, _ := setupAggregateTest(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	customerID := seedCustomer(t, db, node, "acme")
	seedUsage(t, db, node, customerID, "api_calls", 100, 1, day.Add(time.Hour))
	seedRevenue(t, db, node, customerID, 75, "inv-1", day.Add(time.Hour))

	first, err := svc.Materialize(ctx, aggregatedomain.MaterializeRequest{Date: day})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := svc.Materialize(ctx, aggregatedomain.MaterializeRequest{Date: day})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM daily_aggregates`).Scan(&count).Error)
	assert.Equal(t, int64(2), count)

	var row aggregatedomain.DailyAggregate
	require.NoError(t, db.Raw(
		`SELECT * FROM daily_aggregates WHERE customer_id = ?`, customerID,
	).Scan(&row).Error)
	assert.Equal(t, float64(100), row.UsageTotal)
	assert.Equal(t, float64(75), row.RevenueTotal)
}

func TestMaterializeReplacesStaleTotals(t *testing.T) {
	db, svc, node, _ := setupAggregateTest(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	customerID := seedCustomer(t, db, node, "acme")
	seedUsage(t, db, node, customerID, "api_calls", 100, 1, day.Add(time.Hour))

	_, err := svc.Materialize(ctx, aggregatedomain.MaterializeRequest{Date: day})
	require.NoError(t, err)

	// A late-arriving event for the same day must replace, not add.
	seedUsage(t, db, node, customerID, "api_calls", 40, 1, day.Add(2*time.Hour))
	resp, err := svc.Materialize(ctx, aggregatedomain.MaterializeRequest{Date: day})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Created)

	var row aggregatedomain.DailyAggregate
	require.NoError(t, db.Raw(
		`SELECT * FROM daily_aggregates WHERE customer_id = ?`, customerID,
	).Scan(&row).Error)
	assert.Equal(t, float64(140), row.UsageTotal)
	assert.Equal(t, int64(2), row.UsageCount)
}

func TestMaterializeEmptyDayCreatesNothing(t *testing.T) {
	db, svc, node, _ := setupAggregateTest(t)
	ctx := context.Background()

	customerID := seedCustomer(t, db, node, "acme")
	seedUsage(t, db, node, customerID, "api_calls", 100, 1, time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC))

	resp, err := svc.Materialize(ctx, aggregatedomain.MaterializeRequest{
		Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Created)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM daily_aggregates`).Scan(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestMaterializeWindowIsHalfOpen(t *testing.T) {
	db, svc, node, _ := setupAggregateTest(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	customerID := seedCustomer(t, db, node, "acme")
	seedUsage(t, db, node, customerID, "api_calls", 10, 1, day)                               // included
	seedUsage(t, db, node, customerID, "api_calls", 20, 1, day.Add(24*time.Hour-time.Second)) // included
	seedUsage(t, db, node, customerID, "api_calls", 40, 1, day.Add(24*time.Hour))             // next day

	_, err := svc.Materialize(ctx, aggregatedomain.MaterializeRequest{Date: day})
	require.NoError(t, err)

	var row aggregatedomain.DailyAggregate
	require.NoError(t, db.Raw(
		`SELECT * FROM daily_aggregates WHERE customer_id = ?`, customerID,
	).Scan(&row).Error)
	assert.Equal(t, float64(30), row.UsageTotal)
}

func TestMaterializeRevenueOnlyCustomerGetsNoRow(t *testing.T) {
	db, svc, node, _ := setupAggregateTest(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	active := seedCustomer(t, db, node, "acme")
	payerOnly := seedCustomer(t, db, node, "globex")

	seedUsage(t, db, node, active, "api_calls", 10, 1, day.Add(time.Hour))
	seedRevenue(t, db, node, payerOnly, 900, "inv-1", day.Add(time.Hour))

	resp, err := svc.Materialize(ctx, aggregatedomain.MaterializeRequest{Date: day})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Created)

	var count int64
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM daily_aggregates WHERE customer_id = ?`, payerOnly,
	).Scan(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestMaterializeRejectsZeroDate(t *testing.T) {
	_, svc, _, _ := setupAggregateTest(t)

	_, err := svc.Materialize(context.Background(), aggregatedomain.MaterializeRequest{})
	assert.ErrorIs(t, err, aggregatedomain.ErrInvalidDate)
}
