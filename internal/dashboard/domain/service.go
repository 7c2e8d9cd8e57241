package domain

import (
	"context"
	"errors"
	"time"
)

type DashboardRequest struct {
	Start time.Time
	End   time.Time
}

type Service interface {
	// GetDashboardData reads only materialized aggregate rows; it never
	// touches raw events.
	GetDashboardData(context.Context, DashboardRequest) (DashboardData, error)
}

var ErrInvalidRange = errors.New("invalid_range")
