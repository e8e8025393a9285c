package scoring

import (
	"strconv"

	"dropout-alerts/internal/models"
)

// FeatureVector is the ordered model input for one student.
type FeatureVector []float64

// CategoryEncoder maps a categorical value onto its trained numeric code.
type CategoryEncoder interface {
	Transform(value string) (float64, error)
}

// PrepareFeatures builds the model input in exactly featureOrder. Unseen
// categories and missing fields both become 0; it never fails.
func PrepareFeatures(record models.StudentRecord, encoders map[string]CategoryEncoder, featureOrder []string) FeatureVector {
	vec := make(FeatureVector, len(featureOrder))
	for i, name := range featureOrder {
		value, ok := record.Field(name)
		if !ok {
			continue
		}
		if enc, registered := encoders[name]; registered && enc != nil {
			code, err := enc.Transform(value.String())
			if err != nil {
				continue
			}
			vec[i] = code
			continue
		}
		vec[i] = rawNumber(value)
	}
	return vec
}

// rawNumber passes numeric values through. Text without an encoder has no
// numeric meaning unless it parses as a number.
func rawNumber(v models.FieldValue) float64 {
	if !v.Categorical {
		return v.Number
	}
	n, err := strconv.ParseFloat(v.Text, 64)
	if err != nil {
		return 0
	}
	return n
}
