package alerting

import (
	"errors"
	"fmt"

	"dropout-alerts/internal/models"
	"dropout-alerts/internal/scoring"
)

var (
	ErrNoStudentsSelected = errors.New("no students selected")
	ErrInvalidSelection   = errors.New("invalid selection mode")
)

// SelectTargets picks the alert targets from a scored population, highest
// risk first. Manual selection only keeps ids that are in the at-risk view.
func SelectTargets(students []models.ScoredStudent, mode models.SelectionMode, ids []string) ([]models.ScoredStudent, error) {
	var keep func(models.ScoredStudent) bool

	switch mode {
	case models.SelectAllAtRisk:
		keep = func(s models.ScoredStudent) bool { return s.Assessment.AtRisk() }
	case models.SelectCriticalOnly:
		keep = func(s models.ScoredStudent) bool { return s.Assessment.Tier() == models.TierCritical }
	case models.SelectManual:
		wanted := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			wanted[id] = struct{}{}
		}
		keep = func(s models.ScoredStudent) bool {
			_, ok := wanted[s.Student.ID]
			return ok && s.Assessment.AtRisk()
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, mode)
	}

	var out []models.ScoredStudent
	for _, s := range students {
		if keep(s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoStudentsSelected
	}
	scoring.SortByRisk(out)
	return out, nil
}
