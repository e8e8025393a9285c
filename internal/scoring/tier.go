package scoring

import "dropout-alerts/internal/models"

// RiskLevel is a tier plus the presentation metadata the dashboard shows.
type RiskLevel struct {
	Tier      models.RiskTier `json:"tier"`
	Icon      string          `json:"icon"`
	Color     string          `json:"color"`
	Highlight string          `json:"highlight"`
}

var riskLevels = map[models.RiskTier]RiskLevel{
	models.TierCritical: {Tier: models.TierCritical, Icon: "🔴", Color: "#ff0000", Highlight: "rgba(255, 0, 0, 0.25)"},
	models.TierHigh:     {Tier: models.TierHigh, Icon: "🟠", Color: "#ff8800", Highlight: "rgba(255, 136, 0, 0.25)"},
	models.TierModerate: {Tier: models.TierModerate, Icon: "🟡", Color: "#ffbb00", Highlight: "rgba(255, 187, 0, 0.25)"},
	models.TierLow:      {Tier: models.TierLow, Icon: "🟢", Color: "#00cc00", Highlight: "rgba(0, 204, 0, 0.25)"},
}

// ClassifyRisk maps a score to its level. Lower bounds are inclusive, so 0.70
// is critical and 0.30 is moderate.
func ClassifyRisk(score float64) RiskLevel {
	return riskLevels[models.TierFor(score)]
}

// LevelOf returns the presentation metadata of a tier.
func LevelOf(tier models.RiskTier) RiskLevel {
	return riskLevels[tier]
}
