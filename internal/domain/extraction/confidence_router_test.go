package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultRouterConfig() RouterConfig {
	return RouterConfig{TAuto: 0.95, TQuick: 0.80}
}

func TestRouteConfidence_Tiers(t *testing.T) {
	cfg := defaultRouterConfig()
	assert.Equal(t, TierAuto, RouteConfidence(0.99, cfg))
	assert.Equal(t, TierQuickReview, RouteConfidence(0.85, cfg))
	assert.Equal(t, TierFullReview, RouteConfidence(0.50, cfg))
}

// Boundary behavior: confidence exactly equal to T_auto routes to AUTO;
// exactly equal to T_quick routes to QUICK_REVIEW; 0.0 routes to FULL_REVIEW.
func TestRouteConfidence_Boundaries(t *testing.T) {
	cfg := defaultRouterConfig()
	assert.Equal(t, TierAuto, RouteConfidence(cfg.TAuto, cfg))
	assert.Equal(t, TierQuickReview, RouteConfidence(cfg.TQuick, cfg))
	assert.Equal(t, TierFullReview, RouteConfidence(0.0, cfg))
}

func TestRouteConfidence_S3Scenario(t *testing.T) {
	// S3: llm confidence 0.85 with default thresholds routes to QUICK_REVIEW.
	assert.Equal(t, TierQuickReview, RouteConfidence(0.85, defaultRouterConfig()))
}

func TestRouteConfidence_S4Scenario(t *testing.T) {
	// S4: zero confidence routes to FULL_REVIEW.
	assert.Equal(t, TierFullReview, RouteConfidence(0.0, defaultRouterConfig()))
}
