package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
)

type IngestUsageRecord struct {
	CustomerExternalID string            `json:"customer_id"`
	CustomerName       string            `json:"customer_name"`
	Plan               string            `json:"plan"`
	Feature            string            `json:"feature"`
	Quantity           float64           `json:"quantity"`
	UnitCost           float64           `json:"unit_cost"`
	Timestamp          time.Time         `json:"timestamp"`
	Source             string            `json:"source"`
	Metadata           datatypes.JSONMap `json:"metadata"`
}

type IngestRevenueRecord struct {
	CustomerExternalID string    `json:"customer_id"`
	CustomerName       string    `json:"customer_name"`
	Plan               string    `json:"plan"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	EventType          string    `json:"event_type"`
	ExternalID         string    `json:"external_id"`
	Timestamp          time.Time `json:"timestamp"`
}

type IngestUsageRequest struct {
	Records []IngestUsageRecord `json:"records"`
}

type IngestRevenueRequest struct {
	Records []IngestRevenueRecord `json:"records"`
}

// IngestResponse reports how many records were persisted versus skipped.
// Skips cover both malformed records and revenue duplicates.
type IngestResponse struct {
	Ingested int `json:"ingested"`
	Skipped  int `json:"skipped"`
}

type StatisticsRequest struct {
	From time.Time
	To   time.Time
}

type StatisticsResponse struct {
	UsageEvents   int64 `json:"usage_events"`
	RevenueEvents int64 `json:"revenue_events"`
	Customers     int64 `json:"customers"`
}

type Service interface {
	IngestUsage(context.Context, IngestUsageRequest) (IngestResponse, error)
	IngestRevenue(context.Context, IngestRevenueRequest) (IngestResponse, error)
	Statistics(context.Context, StatisticsRequest) (StatisticsResponse, error)
}

var (
	ErrEmptyBatch          = errors.New("empty_batch")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidFeature      = errors.New("invalid_feature")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidUnitCost     = errors.New("invalid_unit_cost")
	ErrInvalidTimestamp    = errors.New("invalid_timestamp")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidEventType    = errors.New("invalid_event_type")
	ErrInvalidExternalID   = errors.New("invalid_external_id")
	ErrInvalidRange        = errors.New("invalid_range")
	ErrDuplicateExternalID = errors.New("duplicate_external_id")
)
