package insight

import (
	"os"
	"strconv"
	"strings"

	"github.com/marginlens/marginlens/internal/insight/domain"
	"github.com/marginlens/marginlens/internal/insight/repository"
	"github.com/marginlens/marginlens/internal/insight/service"
	"go.uber.org/fx"
)

var Module = fx.Module("insight.service",
	fx.Provide(ConfigFromEnv),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

// ConfigFromEnv reads rule thresholds from the environment, falling back to
// the documented defaults.
func ConfigFromEnv() domain.Config {
	return domain.Config{
		UsageThreshold:        getenvFloat("INSIGHT_USAGE_THRESHOLD"),
		RevenueFloor:          getenvFloat("INSIGHT_REVENUE_FLOOR"),
		CriticalLossThreshold: getenvFloat("INSIGHT_CRITICAL_LOSS_THRESHOLD"),
		FeatureWindowDays:     getenvInt("INSIGHT_FEATURE_WINDOW_DAYS"),
		LegacyPlanSubstring:   strings.TrimSpace(os.Getenv("INSIGHT_LEGACY_PLAN_SUBSTRING")),
	}.WithDefaults()
}

func getenvFloat(key string) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func getenvInt(key string) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
