// internal/models/assessment.go
package models

// RiskTier is the dashboard risk level derived from a risk score.
type RiskTier string

const (
	TierCritical RiskTier = "Critique"
	TierHigh     RiskTier = "Élevé"
	TierModerate RiskTier = "Modéré"
	TierLow      RiskTier = "Faible"
)

// Lower bounds of each tier; every bound is inclusive.
const (
	CriticalThreshold = 0.70
	HighThreshold     = 0.50
	ModerateThreshold = 0.30
)

// TierFor maps a score onto its tier.
func TierFor(score float64) RiskTier {
	switch {
	case score >= CriticalThreshold:
		return TierCritical
	case score >= HighThreshold:
		return TierHigh
	case score >= ModerateThreshold:
		return TierModerate
	default:
		return TierLow
	}
}

// RiskAssessment is the model output for one student.
type RiskAssessment struct {
	StudentID          string  `json:"id_etudiant"`
	DropoutLabel       int     `json:"decrochage_pred"`
	DropoutProbability float64 `json:"decrochage_proba"`
	RiskScore          float64 `json:"risque_score"`
}

// Tier returns the tier of the assessment's risk score.
func (a RiskAssessment) Tier() RiskTier {
	return TierFor(a.RiskScore)
}

// AtRisk reports whether the student belongs in the alerting view.
func (a RiskAssessment) AtRisk() bool {
	return a.RiskScore >= ModerateThreshold
}

// ScoredStudent pairs a record with its assessment.
type ScoredStudent struct {
	Student    StudentRecord  `json:"student"`
	Assessment RiskAssessment `json:"assessment"`
}
