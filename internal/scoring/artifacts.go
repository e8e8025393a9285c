package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Artifact file names inside the artifacts directory.
const (
	DropoutModelFile = "dropout_model.json"
	RiskModelFile    = "risk_model.json"
	EncodersFile     = "label_encoders.json"
	FeatureNamesFile = "feature_names.json"
	ScalerFile       = "scaler.json"
)

const defaultThreshold = 0.5

var (
	ErrArtifactsUnavailable = errors.New("MODEL_ARTIFACTS_UNAVAILABLE")
	ErrUnseenCategory       = errors.New("unseen category")
	ErrDimensionMismatch    = errors.New("feature dimension mismatch")
)

// Artifacts bundles the trained objects the predictor needs.
type Artifacts struct {
	Classifier   Classifier
	Regressor    Regressor
	Encoders     map[string]CategoryEncoder
	FeatureNames []string
	Scaler       Scaler // optional
}

// LogisticClassifier is a binary logistic regression exported as JSON.
type LogisticClassifier struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold,omitempty"`
}

func (m *LogisticClassifier) PredictProba(x FeatureVector) (float64, error) {
	z, err := dot(m.Coefficients, x)
	if err != nil {
		return 0, err
	}
	return 1 / (1 + math.Exp(-(z + m.Intercept))), nil
}

func (m *LogisticClassifier) Predict(x FeatureVector) (int, error) {
	p, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	threshold := m.Threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	if p >= threshold {
		return 1, nil
	}
	return 0, nil
}

// LinearRegressor is an ordinary linear model; its output is unbounded.
type LinearRegressor struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func (m *LinearRegressor) Predict(x FeatureVector) (float64, error) {
	z, err := dot(m.Coefficients, x)
	if err != nil {
		return 0, err
	}
	return z + m.Intercept, nil
}

// StandardScaler centers and scales each feature.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *StandardScaler) Transform(x FeatureVector) (FeatureVector, error) {
	if len(s.Mean) != len(x) || len(s.Scale) != len(x) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrDimensionMismatch, len(s.Mean), len(x))
	}
	out := make(FeatureVector, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// LabelEncoder maps each known class to its index.
type LabelEncoder struct {
	Classes []string `json:"classes"`
	index   map[string]int
}

func NewLabelEncoder(classes ...string) *LabelEncoder {
	e := &LabelEncoder{Classes: classes}
	e.buildIndex()
	return e
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}

func (e *LabelEncoder) Transform(value string) (float64, error) {
	if e.index == nil {
		e.buildIndex()
	}
	i, ok := e.index[value]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnseenCategory, value)
	}
	return float64(i), nil
}

func dot(coef []float64, x FeatureVector) (float64, error) {
	if len(coef) != len(x) {
		return 0, fmt.Errorf("%w: model expects %d features, got %d", ErrDimensionMismatch, len(coef), len(x))
	}
	var sum float64
	for i := range coef {
		sum += coef[i] * x[i]
	}
	return sum, nil
}

// LoadArtifacts reads every artifact from dir. A missing required file is
// reported as ErrArtifactsUnavailable; the scaler is optional.
func LoadArtifacts(dir string) (*Artifacts, error) {
	var classifier LogisticClassifier
	if err := readArtifact(dir, DropoutModelFile, &classifier); err != nil {
		return nil, err
	}

	var regressor LinearRegressor
	if err := readArtifact(dir, RiskModelFile, &regressor); err != nil {
		return nil, err
	}

	var rawEncoders map[string][]string
	if err := readArtifact(dir, EncodersFile, &rawEncoders); err != nil {
		return nil, err
	}

	var featureNames []string
	if err := readArtifact(dir, FeatureNamesFile, &featureNames); err != nil {
		return nil, err
	}
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrArtifactsUnavailable, FeatureNamesFile)
	}

	encoders := make(map[string]CategoryEncoder, len(rawEncoders))
	for field, classes := range rawEncoders {
		encoders[field] = NewLabelEncoder(classes...)
	}

	artifacts := &Artifacts{
		Classifier:   &classifier,
		Regressor:    &regressor,
		Encoders:     encoders,
		FeatureNames: featureNames,
	}

	var scaler StandardScaler
	err := readArtifact(dir, ScalerFile, &scaler)
	switch {
	case err == nil:
		artifacts.Scaler = &scaler
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	return artifacts, nil
}

func readArtifact(dir, name string, target interface{}) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && name == ScalerFile {
			return err
		}
		return fmt.Errorf("%w: read %s: %v", ErrArtifactsUnavailable, path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrArtifactsUnavailable, path, err)
	}
	return nil
}

// Digest hashes the artifact files in dir. Two directories holding the same
// models produce the same digest; an absent scaler is part of the hash.
func Digest(dir string) (string, error) {
	h := sha256.New()
	for _, name := range []string{DropoutModelFile, RiskModelFile, EncodersFile, FeatureNamesFile, ScalerFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist) && name == ScalerFile:
			data = nil
		default:
			return "", fmt.Errorf("%w: digest %s: %v", ErrArtifactsUnavailable, name, err)
		}
		fmt.Fprintf(h, "%s:%d\n", name, len(data))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
