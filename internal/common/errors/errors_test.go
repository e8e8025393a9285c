package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		wantCode  string
		wantRetry int
	}{
		{"schedule persistence retries", NewSchedulePersistFailedError(stderrors.New("disk full")), "SCHEDULE_PERSIST_FAILED", 3},
		{"delivery failure retries twice", NewChannelDeliveryFailedError("all channels failed"), "ALERT_DELIVERY_FAILED", 2},
		{"artifacts never retry", NewModelArtifactsUnavailableError(stderrors.New("missing")), "MODEL_ARTIFACTS_UNAVAILABLE", 0},
		{"parsing maps to validation", NewInputParsingError(stderrors.New("bad json")), "VALIDATION_FAILED", 0},
		{"unmapped code passes through", NewInternalError(stderrors.New("x")), "INTERNAL_ERROR", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetry, bpmn.Retries)
			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
			assert.Equal(t, tt.wantCode, vars["errorCode"])
		})
	}
}

func TestStandardError_Chain(t *testing.T) {
	cause := stderrors.New("connection refused")
	wrapped := fmt.Errorf("save schedule: %w", NewSchedulePersistFailedError(cause))

	stdErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeSchedulePersistFailed, stdErr.Code)
	assert.Equal(t, "connection refused", stdErr.Details)
	assert.ErrorIs(t, wrapped, cause)

	_, ok = As(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestMetadataReachesErrorVariables(t *testing.T) {
	e := NewChannelConfigIncompleteError("teams").WithMetadata("channel", "teams")
	vars := ConvertToBPMNError(e).ToErrorVariables()
	assert.Equal(t, "teams", vars["channel"])
	assert.Equal(t, "channel: teams", e.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SCORING", GetErrorCategory(ErrCodePredictionFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeChannelDeliveryFailed))
	assert.Equal(t, "SCHEDULE", GetErrorCategory(ErrCodeSchedulePersistFailed))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeCacheUnavailable))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInputParsingFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeIndexingFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeValidationFailed))
}
