package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventType string

const (
	EventTypeInvoice      EventType = "invoice"
	EventTypeCharge       EventType = "charge"
	EventTypeRefund       EventType = "refund"
	EventTypeSubscription EventType = "subscription"
	EventTypePayment      EventType = "payment"
)

func ParseEventType(value string) (EventType, bool) {
	switch EventType(strings.ToLower(strings.TrimSpace(value))) {
	case EventTypeInvoice:
		return EventTypeInvoice, true
	case EventTypeCharge:
		return EventTypeCharge, true
	case EventTypeRefund:
		return EventTypeRefund, true
	case EventTypeSubscription:
		return EventTypeSubscription, true
	case EventTypePayment:
		return EventTypePayment, true
	default:
		return "", false
	}
}

// UsageEvent records a single metered unit of product usage.
type UsageEvent struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	Feature    string            `gorm:"not null;index" json:"feature"`
	Quantity   float64           `gorm:"not null" json:"quantity"`
	UnitCost   float64           `gorm:"not null" json:"unit_cost"`
	Timestamp  time.Time         `gorm:"not null;index" json:"timestamp"`
	Source     string            `json:"source,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// RevenueEvent records money received from a customer. ExternalID carries the
// upstream billing system identifier and enforces ingest idempotency.
type RevenueEvent struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`
	Amount     float64      `gorm:"not null" json:"amount"`
	Currency   string       `gorm:"not null;default:USD" json:"currency"`
	EventType  EventType    `gorm:"not null" json:"event_type"`
	ExternalID string       `gorm:"not null;uniqueIndex" json:"external_id"`
	Timestamp  time.Time    `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}
