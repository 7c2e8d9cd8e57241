package domain

import "context"

type ComputeResponse struct {
	Created int `json:"created"`
}

type Service interface {
	// Compute performs a full refresh of the active insight set.
	Compute(context.Context) (ComputeResponse, error)
	ListActive(context.Context) ([]InsightFlag, error)
}
