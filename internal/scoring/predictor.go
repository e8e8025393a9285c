package scoring

import (
	"errors"
	"fmt"

	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/models"
)

var ErrPredictionFailed = errors.New("PREDICTION_FAILED")

// Classifier is the dropout model: a hard label plus the probability of the
// positive class.
type Classifier interface {
	Predict(x FeatureVector) (int, error)
	PredictProba(x FeatureVector) (float64, error)
}

// Regressor is the continuous risk model.
type Regressor interface {
	Predict(x FeatureVector) (float64, error)
}

// Scaler normalizes classifier input.
type Scaler interface {
	Transform(x FeatureVector) (FeatureVector, error)
}

// Predictor scores one student at a time against the loaded artifacts.
type Predictor struct {
	classifier   Classifier
	regressor    Regressor
	scaler       Scaler
	encoders     map[string]CategoryEncoder
	featureNames []string
	logger       logger.Logger
}

func NewPredictor(artifacts *Artifacts, log logger.Logger) (*Predictor, error) {
	if artifacts == nil {
		return nil, fmt.Errorf("%w: no artifacts loaded", ErrArtifactsUnavailable)
	}
	if artifacts.Classifier == nil || artifacts.Regressor == nil {
		return nil, fmt.Errorf("%w: dropout and risk models are required", ErrArtifactsUnavailable)
	}
	if len(artifacts.FeatureNames) == 0 {
		return nil, fmt.Errorf("%w: feature names are required", ErrArtifactsUnavailable)
	}
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	encoders := artifacts.Encoders
	if encoders == nil {
		encoders = map[string]CategoryEncoder{}
	}

	return &Predictor{
		classifier:   artifacts.Classifier,
		regressor:    artifacts.Regressor,
		scaler:       artifacts.Scaler,
		encoders:     encoders,
		featureNames: artifacts.FeatureNames,
		logger:       log,
	}, nil
}

// FeatureNames returns the model input order.
func (p *Predictor) FeatureNames() []string {
	return p.featureNames
}

// Predict returns the label, the dropout probability and the clamped risk
// score. The scaler only feeds the classifier; the regressor was trained on
// raw features.
func (p *Predictor) Predict(record models.StudentRecord) (models.RiskAssessment, error) {
	features := PrepareFeatures(record, p.encoders, p.featureNames)

	classifierInput := features
	if p.scaler != nil {
		scaled, err := p.scaler.Transform(features)
		if err != nil {
			return models.RiskAssessment{}, p.fail(record.ID, "scale features", err)
		}
		classifierInput = scaled
	}

	label, err := p.classifier.Predict(classifierInput)
	if err != nil {
		return models.RiskAssessment{}, p.fail(record.ID, "predict dropout label", err)
	}

	probability, err := p.classifier.PredictProba(classifierInput)
	if err != nil {
		return models.RiskAssessment{}, p.fail(record.ID, "predict dropout probability", err)
	}

	score, err := p.regressor.Predict(features)
	if err != nil {
		return models.RiskAssessment{}, p.fail(record.ID, "predict risk score", err)
	}

	return models.RiskAssessment{
		StudentID:          record.ID,
		DropoutLabel:       label,
		DropoutProbability: probability,
		RiskScore:          clamp01(score),
	}, nil
}

func (p *Predictor) fail(studentID, step string, err error) error {
	p.logger.Warn("prediction failed", map[string]interface{}{
		"studentId": studentID,
		"step":      step,
		"error":     err.Error(),
	})
	return fmt.Errorf("%w: %s for %s: %v", ErrPredictionFailed, step, studentID, err)
}

func clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
