package scoring

import (
	"sort"

	"dropout-alerts/internal/models"
)

// Criteria narrows a scored population. Zero values mean "all".
type Criteria struct {
	Program string
	Year    int
	Tier    models.RiskTier
}

// Filter keeps the students matching every set criterion, preserving order.
func Filter(students []models.ScoredStudent, c Criteria) []models.ScoredStudent {
	out := make([]models.ScoredStudent, 0, len(students))
	for _, s := range students {
		if c.Program != "" && s.Student.Program != c.Program {
			continue
		}
		if c.Year != 0 && s.Student.Year != float64(c.Year) {
			continue
		}
		if c.Tier != "" && s.Assessment.Tier() != c.Tier {
			continue
		}
		out = append(out, s)
	}
	return out
}

// GroupStat is the mean risk of one program or year.
type GroupStat struct {
	Key      string  `json:"key"`
	Count    int     `json:"count"`
	MeanRisk float64 `json:"meanRisk"`
}

// Summary holds the headline figures of a population.
type Summary struct {
	Total             int         `json:"total"`
	PredictedDropouts int         `json:"predictedDropouts"`
	Critical          int         `json:"critical"`
	High              int         `json:"high"`
	Moderate          int         `json:"moderate"`
	Low               int         `json:"low"`
	MeanRiskPercent   float64     `json:"meanRiskPercent"`
	ByProgram         []GroupStat `json:"byProgram"`
	ByYear            []GroupStat `json:"byYear"`
}

// AtRisk is the number of students in the alerting view.
func (s Summary) AtRisk() int {
	return s.Critical + s.High + s.Moderate
}

func Summarize(students []models.ScoredStudent) Summary {
	sum := Summary{Total: len(students)}
	if len(students) == 0 {
		return sum
	}

	type acc struct {
		n     int
		total float64
	}
	programs := map[string]*acc{}
	years := map[string]*acc{}
	add := func(m map[string]*acc, key string, score float64) {
		a, ok := m[key]
		if !ok {
			a = &acc{}
			m[key] = a
		}
		a.n++
		a.total += score
	}

	var totalRisk float64
	for _, s := range students {
		a := s.Assessment
		sum.PredictedDropouts += a.DropoutLabel
		totalRisk += a.RiskScore
		switch a.Tier() {
		case models.TierCritical:
			sum.Critical++
		case models.TierHigh:
			sum.High++
		case models.TierModerate:
			sum.Moderate++
		default:
			sum.Low++
		}
		add(programs, s.Student.Program, a.RiskScore)
		if v, ok := s.Student.Field("annee_etude"); ok {
			add(years, v.String(), a.RiskScore)
		}
	}
	sum.MeanRiskPercent = totalRisk / float64(len(students)) * 100

	flatten := func(m map[string]*acc) []GroupStat {
		out := make([]GroupStat, 0, len(m))
		for k, a := range m {
			out = append(out, GroupStat{Key: k, Count: a.n, MeanRisk: a.total / float64(a.n)})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return out
	}
	sum.ByProgram = flatten(programs)
	sum.ByYear = flatten(years)
	return sum
}

// StudentDetail is everything the per-student view shows.
type StudentDetail struct {
	Student         models.StudentRecord  `json:"-"`
	Assessment      models.RiskAssessment `json:"assessment"`
	Level           RiskLevel             `json:"level"`
	Recommendations []string              `json:"recommendations"`
}

func Detail(s models.ScoredStudent) StudentDetail {
	return StudentDetail{
		Student:         s.Student,
		Assessment:      s.Assessment,
		Level:           ClassifyRisk(s.Assessment.RiskScore),
		Recommendations: Recommend(s.Student, s.Assessment.RiskScore, s.Assessment.DropoutLabel),
	}
}

// SortByRisk orders students by descending risk score. Ties keep input order.
func SortByRisk(students []models.ScoredStudent) {
	sort.SliceStable(students, func(i, j int) bool {
		return students[i].Assessment.RiskScore > students[j].Assessment.RiskScore
	})
}
