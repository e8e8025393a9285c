package scorestudents

import (
	"context"

	"dropout-alerts/internal/models"
)

// Input narrows the population the summary is computed on. Zero values mean
// "everyone".
type Input struct {
	Refresh  bool     `json:"refresh,omitempty"`
	Students []string `json:"students,omitempty"`
	Program  string   `json:"program,omitempty"`
	Year     int      `json:"year,omitempty"`
	Tier     string   `json:"tier,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Index    bool     `json:"index,omitempty"`
}

type StudentSummary struct {
	ID        string  `json:"id"`
	Program   string  `json:"program"`
	Year      int     `json:"year,omitempty"`
	RiskScore float64 `json:"riskScore"`
	Tier      string  `json:"tier"`
}

type Output struct {
	TotalStudents     int              `json:"totalStudents"`
	AtRisk            int              `json:"atRisk"`
	Critical          int              `json:"critical"`
	High              int              `json:"high"`
	Moderate          int              `json:"moderate"`
	Low               int              `json:"low"`
	PredictedDropouts int              `json:"predictedDropouts"`
	MeanRiskPercent   float64          `json:"meanRiskPercent"`
	TopStudents       []StudentSummary `json:"topStudents"`
	FailedStudents    []string         `json:"failedStudents"`
	Indexed           bool             `json:"indexed"`
}

// PopulationCache serves the scored population; *alerting.PredictionCache
// satisfies it.
type PopulationCache interface {
	All(ctx context.Context) ([]models.ScoredStudent, error)
	Failures() []string
	Invalidate(ctx context.Context)
}

// Indexer mirrors scored students elsewhere; *search.AssessmentIndex
// satisfies it.
type Indexer interface {
	Index(ctx context.Context, students []models.ScoredStudent) error
}
