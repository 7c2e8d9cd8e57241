package domain

import "strings"

// Config carries the rule thresholds. Values are injected rather than
// hard-coded so operators can tune rules per deployment.
type Config struct {
	// UsageThreshold is the lifetime usage sum above which a customer is
	// eligible for the low-revenue rule.
	UsageThreshold float64
	// RevenueFloor is the lifetime revenue sum below which an eligible
	// customer is flagged.
	RevenueFloor float64
	// CriticalLossThreshold separates WARNING from CRITICAL unprofitable
	// features. A loss of exactly this value stays WARNING.
	CriticalLossThreshold float64
	// FeatureWindowDays is the trailing window for the unprofitable
	// feature rule.
	FeatureWindowDays int
	// LegacyPlanSubstring matches plan labels case-insensitively.
	LegacyPlanSubstring string
}

func (c Config) WithDefaults() Config {
	if c.UsageThreshold == 0 {
		c.UsageThreshold = 10000
	}
	if c.RevenueFloor == 0 {
		c.RevenueFloor = 100
	}
	if c.CriticalLossThreshold == 0 {
		c.CriticalLossThreshold = 1000
	}
	if c.FeatureWindowDays == 0 {
		c.FeatureWindowDays = 30
	}
	if strings.TrimSpace(c.LegacyPlanSubstring) == "" {
		c.LegacyPlanSubstring = "legacy"
	}
	return c
}
