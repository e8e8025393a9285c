package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestZapAdapter_FieldsAndNames(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).Named("alerting").WithFields(map[string]interface{}{"alertId": "a-1"})

	log.Warn("channel failed", map[string]interface{}{
		"channel": "teams",
		"cause":   errors.New("timeout"),
	})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		e := entries[0]
		assert.Equal(t, "alerting", e.LoggerName)
		assert.Equal(t, zapcore.WarnLevel, e.Level)
		ctx := e.ContextMap()
		assert.Equal(t, "a-1", ctx["alertId"])
		assert.Equal(t, "teams", ctx["channel"])
		assert.Equal(t, "timeout", ctx["cause"])
	}
}

func TestOrDefault(t *testing.T) {
	assert.NotNil(t, OrDefault(nil))

	l := NewNoOpLogger()
	assert.Same(t, l, OrDefault(l))
}
