package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/marginlens/marginlens/internal/clock"
	customerdomain "github.com/marginlens/marginlens/internal/customer/domain"
	customerrepository "github.com/marginlens/marginlens/internal/customer/repository"
	eventdomain "github.com/marginlens/marginlens/internal/event/domain"
	"github.com/marginlens/marginlens/internal/event/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupEventTest(t *testing.T) (*gorm.DB, eventdomain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&customerdomain.Customer{},
		&eventdomain.UsageEvent{},
		&eventdomain.RevenueEvent{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fakeClock,
		Repo:         repository.Provide(),
		CustomerRepo: customerrepository.Provide(),
	})

	return db, svc, fakeClock
}

func usageRecord(externalID string, quantity float64) eventdomain.IngestUsageRecord {
	return eventdomain.IngestUsageRecord{
		CustomerExternalID: externalID,
		CustomerName:       externalID,
		Feature:            "api_calls",
		Quantity:           quantity,
		UnitCost:           0.5,
		Timestamp:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:             "api",
	}
}

func revenueRecord(externalID, eventExternalID string, amount float64) eventdomain.IngestRevenueRecord {
	return eventdomain.IngestRevenueRecord{
		CustomerExternalID: externalID,
		CustomerName:       externalID,
		Amount:             amount,
		EventType:          "invoice",
		ExternalID:         eventExternalID,
		Timestamp:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestIngestUsageCreatesCustomerLazily(t *testing.T) {
	db, svc, _ := setupEventTest(t)
	ctx := context.Background()

	resp, err := svc.IngestUsage(ctx, eventdomain.IngestUsageRequest{
		Records: []eventdomain.IngestUsageRecord{
			usageRecord("acme", 10),
			usageRecord("acme", 20),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Ingested)
	assert.Equal(t, 0, resp.Skipped)

	// Both records share one lazily created customer.
	var customerCount int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM customers`).Scan(&customerCount).Error)
	assert.Equal(t, int64(1), customerCount)

	var plan string
	require.NoError(t, db.Raw(`SELECT plan FROM customers WHERE external_id = 'acme'`).Scan(&plan).Error)
	assert.Equal(t, "standard", plan)

	var eventCount int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM usage_events`).Scan(&eventCount).Error)
	assert.Equal(t, int64(2), eventCount)
}

func TestIngestUsageSkipsMalformedRecords(t *testing.T) {
	db, svc, _ := setupEventTest(t)
	ctx := context.Background()

	bad := usageRecord("acme", 0) // non-positive quantity
	missingFeature := usageRecord("acme", 5)
	missingFeature.Feature = " "
	noCustomer := usageRecord("", 5)

	resp, err := svc.IngestUsage(ctx, eventdomain.IngestUsageRequest{
		Records: []eventdomain.IngestUsageRecord{
			usageRecord("acme", 10),
			bad,
			missingFeature,
			noCustomer,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Ingested)
	assert.Equal(t, 3, resp.Skipped)

	var eventCount int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM usage_events`).Scan(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)
}

func TestIngestUsageRejectsEmptyBatch(t *testing.T) {
	_, svc, _ := setupEventTest(t)

	_, err := svc.IngestUsage(context.Background(), eventdomain.IngestUsageRequest{})
	assert.ErrorIs(t, err, eventdomain.ErrEmptyBatch)
}

func TestIngestRevenueSkipsDuplicateExternalID(t *testing.T) {
	db, svc, _ := setupEventTest(t)
	ctx := context.Background()

	first, err := svc.IngestRevenue(ctx, eventdomain.IngestRevenueRequest{
		Records: []eventdomain.IngestRevenueRecord{
			revenueRecord("acme", "inv-1", 100),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Ingested)

	// Replay of the same invoice is a silent skip, not an error.
	second, err := svc.IngestRevenue(ctx, eventdomain.IngestRevenueRequest{
		Records: []eventdomain.IngestRevenueRecord{
			revenueRecord("acme", "inv-1", 100),
			revenueRecord("acme", "inv-2", 40),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Ingested)
	assert.Equal(t, 1, second.Skipped)

	var total float64
	require.NoError(t, db.Raw(`SELECT SUM(amount) FROM revenue_events`).Scan(&total).Error)
	assert.Equal(t, float64(140), total)
}

func TestIngestRevenueValidatesEventType(t *testing.T) {
	_, svc, _ := setupEventTest(t)

	bad := revenueRecord("acme", "inv-1", 100)
	bad.EventType = "wire_transfer"

	resp, err := svc.IngestRevenue(context.Background(), eventdomain.IngestRevenueRequest{
		Records: []eventdomain.IngestRevenueRecord{bad},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Ingested)
	assert.Equal(t, 1, resp.Skipped)
}

func TestIngestRevenueDefaultsCurrency(t *testing.T) {
	db, svc, _ := setupEventTest(t)

	rec := revenueRecord("acme", "inv-1", 100)
	rec.Currency = ""

	_, err := svc.IngestRevenue(context.Background(), eventdomain.IngestRevenueRequest{
		Records: []eventdomain.IngestRevenueRecord{rec},
	})
	require.NoError(t, err)

	var currency string
	require.NoError(t, db.Raw(`SELECT currency FROM revenue_events WHERE external_id = 'inv-1'`).Scan(&currency).Error)
	assert.Equal(t, "USD", currency)
}

func TestStatisticsCountsWithinRange(t *testing.T) {
	_, svc, fakeClock := setupEventTest(t)
	ctx := context.Background()

	_, err := svc.IngestUsage(ctx, eventdomain.IngestUsageRequest{
		Records: []eventdomain.IngestUsageRecord{
			usageRecord("acme", 10),
			usageRecord("globex", 5),
		},
	})
	require.NoError(t, err)
	_, err = svc.IngestRevenue(ctx, eventdomain.IngestRevenueRequest{
		Records: []eventdomain.IngestRevenueRecord{
			revenueRecord("acme", "inv-1", 100),
		},
	})
	require.NoError(t, err)

	resp, err := svc.Statistics(ctx, eventdomain.StatisticsRequest{
		From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   fakeClock.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.UsageEvents)
	assert.Equal(t, int64(1), resp.RevenueEvents)
	assert.Equal(t, int64(2), resp.Customers)

	// Window that predates every event.
	empty, err := svc.Statistics(ctx, eventdomain.StatisticsRequest{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.UsageEvents)
	assert.Equal(t, int64(2), empty.Customers)
}

func TestStatisticsRejectsInvertedRange(t *testing.T) {
	_, svc, fakeClock := setupEventTest(t)

	_, err := svc.Statistics(context.Background(), eventdomain.StatisticsRequest{
		From: fakeClock.Now().Add(time.Hour),
		To:   fakeClock.Now(),
	})
	assert.ErrorIs(t, err, eventdomain.ErrInvalidRange)
}
