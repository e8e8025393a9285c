package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/models"
)

type stubClassifier struct {
	label    int
	proba    float64
	err      error
	received FeatureVector
}

func (s *stubClassifier) Predict(x FeatureVector) (int, error) {
	s.received = x
	return s.label, s.err
}

func (s *stubClassifier) PredictProba(x FeatureVector) (float64, error) {
	s.received = x
	return s.proba, s.err
}

type stubRegressor struct {
	score    float64
	err      error
	received FeatureVector
}

func (s *stubRegressor) Predict(x FeatureVector) (float64, error) {
	s.received = x
	return s.score, s.err
}

type doublingScaler struct{}

func (doublingScaler) Transform(x FeatureVector) (FeatureVector, error) {
	out := make(FeatureVector, len(x))
	for i, v := range x {
		out[i] = v * 2
	}
	return out, nil
}

func createValidRecord() models.StudentRecord {
	r := models.NewStudentRecord("EPI-BDX-00001")
	r.Program = "Bachelor"
	r.Year = 2
	r.AverageGrade = 12.5
	r.AbsenceRate = 5
	r.ProjectParticipation = 0.8
	r.LateProjects = 0
	r.PedagogicalMeetings = 2
	r.Satisfaction = 0.8
	return r
}

func createArtifacts(c Classifier, r Regressor) *Artifacts {
	return &Artifacts{
		Classifier:   c,
		Regressor:    r,
		Encoders:     map[string]CategoryEncoder{"programme": NewLabelEncoder("Bachelor", "MSc", "Programme Grande École")},
		FeatureNames: []string{"note_moyenne", "programme", "annee_etude"},
	}
}

func TestClassifyRisk_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		tier  models.RiskTier
		icon  string
		color string
	}{
		{1.0, models.TierCritical, "🔴", "#ff0000"},
		{0.70, models.TierCritical, "🔴", "#ff0000"},
		{0.699, models.TierHigh, "🟠", "#ff8800"},
		{0.50, models.TierHigh, "🟠", "#ff8800"},
		{0.4999, models.TierModerate, "🟡", "#ffbb00"},
		{0.30, models.TierModerate, "🟡", "#ffbb00"},
		{0.2999, models.TierLow, "🟢", "#00cc00"},
		{0, models.TierLow, "🟢", "#00cc00"},
	}
	for _, tt := range tests {
		level := ClassifyRisk(tt.score)
		assert.Equal(t, tt.tier, level.Tier, "score %v", tt.score)
		assert.Equal(t, tt.icon, level.Icon, "score %v", tt.score)
		assert.Equal(t, tt.color, level.Color, "score %v", tt.score)
		assert.NotEmpty(t, level.Highlight)
	}
}

func TestPrepareFeatures(t *testing.T) {
	encoders := map[string]CategoryEncoder{
		"programme": NewLabelEncoder("Bachelor", "MSc"),
	}

	t.Run("preserves order and length", func(t *testing.T) {
		r := createValidRecord()
		vec := PrepareFeatures(r, encoders, []string{"annee_etude", "programme", "note_moyenne"})
		assert.Equal(t, FeatureVector{2, 0, 12.5}, vec)

		vec = PrepareFeatures(r, encoders, []string{"note_moyenne", "annee_etude"})
		assert.Equal(t, FeatureVector{12.5, 2}, vec)
	})

	t.Run("unseen category encodes to zero", func(t *testing.T) {
		r := createValidRecord()
		r.Program = "Doctorat"
		vec := PrepareFeatures(r, encoders, []string{"programme", "annee_etude"})
		assert.Equal(t, FeatureVector{0, 2}, vec)
	})

	t.Run("missing and unknown fields encode to zero", func(t *testing.T) {
		r := createValidRecord()
		r.SetField("taux_absences", "n/a")
		vec := PrepareFeatures(r, encoders, []string{"taux_absences", "colonne_inconnue", "note_moyenne"})
		assert.Equal(t, FeatureVector{0, 0, 12.5}, vec)
	})

	t.Run("encoded known category", func(t *testing.T) {
		r := createValidRecord()
		r.Program = "MSc"
		vec := PrepareFeatures(r, encoders, []string{"programme"})
		assert.Equal(t, FeatureVector{1}, vec)
	})

	t.Run("categorical without encoder", func(t *testing.T) {
		r := createValidRecord()
		r.ClassSize = "Petite (<25)"
		vec := PrepareFeatures(r, nil, []string{"taille_classe"})
		assert.Equal(t, FeatureVector{0}, vec)
	})

	t.Run("empty order", func(t *testing.T) {
		assert.Empty(t, PrepareFeatures(createValidRecord(), encoders, nil))
	})
}

func TestPredictor_ClampsRiskScore(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"below zero", -0.5, 0},
		{"above one", 1.5, 1},
		{"in range", 0.42, 0.42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPredictor(createArtifacts(&stubClassifier{proba: 0.3}, &stubRegressor{score: tt.raw}), logger.NewTestLogger(t))
			require.NoError(t, err)

			a, err := p.Predict(createValidRecord())
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.RiskScore)
			assert.Equal(t, 0.3, a.DropoutProbability)
			assert.Equal(t, "EPI-BDX-00001", a.StudentID)
		})
	}
}

func TestPredictor_ScalerFeedsClassifierOnly(t *testing.T) {
	c := &stubClassifier{label: 1, proba: 0.9}
	r := &stubRegressor{score: 0.8}
	artifacts := createArtifacts(c, r)
	artifacts.Scaler = doublingScaler{}

	p, err := NewPredictor(artifacts, logger.NewNoOpLogger())
	require.NoError(t, err)

	a, err := p.Predict(createValidRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, a.DropoutLabel)
	assert.Equal(t, FeatureVector{25, 0, 4}, c.received)
	assert.Equal(t, FeatureVector{12.5, 0, 2}, r.received)
}

func TestPredictor_ModelErrorFailsWholePrediction(t *testing.T) {
	boom := errors.New("boom")

	t.Run("classifier", func(t *testing.T) {
		p, err := NewPredictor(createArtifacts(&stubClassifier{err: boom}, &stubRegressor{score: 0.5}), logger.NewNoOpLogger())
		require.NoError(t, err)
		_, err = p.Predict(createValidRecord())
		assert.ErrorIs(t, err, ErrPredictionFailed)
	})

	t.Run("regressor", func(t *testing.T) {
		p, err := NewPredictor(createArtifacts(&stubClassifier{}, &stubRegressor{err: boom}), logger.NewNoOpLogger())
		require.NoError(t, err)
		a, err := p.Predict(createValidRecord())
		assert.ErrorIs(t, err, ErrPredictionFailed)
		assert.Equal(t, models.RiskAssessment{}, a)
	})
}

func TestNewPredictor_RequiresModels(t *testing.T) {
	_, err := NewPredictor(nil, nil)
	assert.ErrorIs(t, err, ErrArtifactsUnavailable)

	_, err = NewPredictor(&Artifacts{Classifier: &stubClassifier{}}, nil)
	assert.ErrorIs(t, err, ErrArtifactsUnavailable)

	_, err = NewPredictor(&Artifacts{Classifier: &stubClassifier{}, Regressor: &stubRegressor{}}, nil)
	assert.ErrorIs(t, err, ErrArtifactsUnavailable)
}

func TestRecommend(t *testing.T) {
	t.Run("struggling first year student", func(t *testing.T) {
		r := models.NewStudentRecord("S1")
		r.AverageGrade = 8
		r.AbsenceRate = 20
		r.ProjectParticipation = 0.2
		r.LateProjects = 3
		r.PedagogicalMeetings = 0
		r.Year = 1
		r.Satisfaction = 0.3

		got := Recommend(r, 0.8, 1)
		assert.Equal(t, []string{
			RecommendImmediateAction,
			RecommendAcademicSupport,
			RecommendUrgentContact,
			RecommendProjectReview,
			RecommendTimeManagement,
			RecommendOnboarding,
			RecommendSurvey,
		}, got)
	})

	t.Run("only some rules fire", func(t *testing.T) {
		r := models.NewStudentRecord("S5")
		r.AverageGrade = 8
		r.AbsenceRate = 20
		r.ProjectParticipation = 0.5
		r.LateProjects = 1
		r.PedagogicalMeetings = 0
		r.Year = 2
		r.Satisfaction = 0.6

		assert.Equal(t, []string{RecommendAcademicSupport, RecommendUrgentContact}, Recommend(r, 0.6, 0))
	})

	t.Run("stable student", func(t *testing.T) {
		r := models.NewStudentRecord("S2")
		r.AverageGrade = 15
		r.AbsenceRate = 2
		r.ProjectParticipation = 0.9
		r.LateProjects = 0
		r.PedagogicalMeetings = 1
		r.Year = 2
		r.Satisfaction = 0.8

		assert.Equal(t, []string{RecommendStableProfile}, Recommend(r, 0.1, 0))
	})

	t.Run("every rule fires", func(t *testing.T) {
		r := models.NewStudentRecord("S3")
		r.AverageGrade = 6
		r.AbsenceRate = 30
		r.ProjectParticipation = 0.1
		r.LateProjects = 4
		r.PedagogicalMeetings = 0
		r.Year = 1
		r.Satisfaction = 0.2

		got := Recommend(r, 0.2, 0)
		assert.Len(t, got, 6)
		assert.Equal(t, RecommendSurvey, got[5])
	})

	t.Run("missing fields fail silently", func(t *testing.T) {
		r := models.NewStudentRecord("S4")
		assert.Equal(t, []string{RecommendStableProfile}, Recommend(r, 0.1, 0))
		assert.Equal(t, []string{RecommendImmediateAction}, Recommend(r, 0.7, 1))
	})
}

func scored(id, program string, year float64, score float64, label int) models.ScoredStudent {
	r := models.NewStudentRecord(id)
	r.Program = program
	r.Year = year
	return models.ScoredStudent{
		Student:    r,
		Assessment: models.RiskAssessment{StudentID: id, RiskScore: score, DropoutLabel: label},
	}
}

func TestFilterAndSummarize(t *testing.T) {
	pop := []models.ScoredStudent{
		scored("A", "Bachelor", 1, 0.9, 1),
		scored("B", "Bachelor", 2, 0.55, 1),
		scored("C", "MSc", 1, 0.35, 0),
		scored("D", "MSc", 2, 0.1, 0),
	}

	assert.Len(t, Filter(pop, Criteria{}), 4)
	assert.Len(t, Filter(pop, Criteria{Program: "MSc"}), 2)
	assert.Len(t, Filter(pop, Criteria{Year: 1}), 2)
	got := Filter(pop, Criteria{Program: "Bachelor", Tier: models.TierHigh})
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Student.ID)

	sum := Summarize(pop)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.PredictedDropouts)
	assert.Equal(t, 1, sum.Critical)
	assert.Equal(t, 1, sum.High)
	assert.Equal(t, 1, sum.Moderate)
	assert.Equal(t, 1, sum.Low)
	assert.Equal(t, 3, sum.AtRisk())
	assert.InDelta(t, 47.5, sum.MeanRiskPercent, 1e-9)
	require.Len(t, sum.ByProgram, 2)
	assert.Equal(t, "Bachelor", sum.ByProgram[0].Key)
	assert.InDelta(t, 0.725, sum.ByProgram[0].MeanRisk, 1e-9)
	require.Len(t, sum.ByYear, 2)
	assert.Equal(t, "1", sum.ByYear[0].Key)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSortByRiskAndDetail(t *testing.T) {
	pop := []models.ScoredStudent{
		scored("A", "Bachelor", 1, 0.4, 0),
		scored("B", "Bachelor", 1, 0.8, 1),
		scored("C", "Bachelor", 1, 0.6, 0),
	}
	SortByRisk(pop)
	assert.Equal(t, "B", pop[0].Student.ID)
	assert.Equal(t, "C", pop[1].Student.ID)
	assert.Equal(t, "A", pop[2].Student.ID)

	d := Detail(pop[0])
	assert.Equal(t, models.TierCritical, d.Level.Tier)
	assert.Equal(t, RecommendImmediateAction, d.Recommendations[0])
}
