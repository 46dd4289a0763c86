// Package plans maps subscription tiers to usage ceilings and feature flags.
package plans

import (
	"errors"

	"github.com/releaselayer/backend/internal/models"
)

// ErrQuotaExceeded is returned when an operation would push usage past the plan ceiling.
var ErrQuotaExceeded = errors.New("plan quota exceeded")

// PlanLimits holds the ceilings of one tier. MAU, impressions and AI rewrites are monthly.
type PlanLimits struct {
	MaxMAU         int64 `json:"maxMau"`
	MaxImpressions int64 `json:"maxImpressions"`
	MaxProjects    int64 `json:"maxProjects"`
	MaxAIRewrites  int64 `json:"maxAiRewrites"`

	CustomDomain   bool `json:"customDomain"`
	CustomCSS      bool `json:"customCss"`
	RemoveBranding bool `json:"removeBranding"`
	Integrations   bool `json:"integrations"`
}

// Ordered lists the tiers from cheapest to most expensive.
var Ordered = []models.Plan{models.PlanFree, models.PlanStarter, models.PlanGrowth, models.PlanPro}

var table = map[models.Plan]PlanLimits{
	models.PlanFree: {
		MaxMAU:         1_000,
		MaxImpressions: 10_000,
		MaxProjects:    1,
		MaxAIRewrites:  5,
	},
	models.PlanStarter: {
		MaxMAU:         5_000,
		MaxImpressions: 100_000,
		MaxProjects:    3,
		MaxAIRewrites:  50,
		Integrations:   true,
	},
	models.PlanGrowth: {
		MaxMAU:         25_000,
		MaxImpressions: 500_000,
		MaxProjects:    10,
		MaxAIRewrites:  250,
		CustomDomain:   true,
		CustomCSS:      true,
		Integrations:   true,
	},
	models.PlanPro: {
		MaxMAU:         100_000,
		MaxImpressions: 2_500_000,
		MaxProjects:    50,
		MaxAIRewrites:  1_000,
		CustomDomain:   true,
		CustomCSS:      true,
		RemoveBranding: true,
		Integrations:   true,
	},
}

// Limits returns the limits for plan. ok is false for unknown plans.
func Limits(plan models.Plan) (PlanLimits, bool) {
	l, ok := table[plan]
	return l, ok
}

// For returns the limits for plan, falling back to the free tier for unknown values.
func For(plan models.Plan) PlanLimits {
	if l, ok := table[plan]; ok {
		return l
	}
	return table[models.PlanFree]
}

// Parse converts a string to a known plan.
func Parse(s string) (models.Plan, bool) {
	p := models.Plan(s)
	_, ok := table[p]
	return p, ok
}

// Within reports whether adding n more units to used stays inside limit.
func Within(limit, used, n int64) bool {
	return used+n <= limit
}

// Check returns ErrQuotaExceeded when adding n more units to used would exceed limit.
func Check(limit, used, n int64) error {
	if !Within(limit, used, n) {
		return ErrQuotaExceeded
	}
	return nil
}
