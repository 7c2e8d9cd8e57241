package domain

import (
	"context"
	"errors"
	"time"
)

type MaterializeRequest struct {
	Date time.Time
}

type MaterializeResponse struct {
	// Created counts rows newly inserted; overwrites of existing rows do
	// not count, so a rerun over unchanged data reports 0.
	Created int `json:"created"`
}

type Service interface {
	Materialize(context.Context, MaterializeRequest) (MaterializeResponse, error)
}

var ErrInvalidDate = errors.New("invalid_date")
