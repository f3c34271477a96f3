package logging

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerVerbosity(t *testing.T) {
	logger := NewLogger(Options{Verbosity: VERBOSE})

	assert.True(t, logger.V(DEFAULT).Enabled())
	assert.True(t, logger.V(VERBOSE).Enabled())
	assert.False(t, logger.V(DEBUG).Enabled())
	assert.False(t, logger.V(TRACE).Enabled())
}

func TestNewTestLoggerEnablesTrace(t *testing.T) {
	logger := NewTestLogger()
	assert.True(t, logger.V(TRACE).Enabled())
}

func TestContextRoundTrip(t *testing.T) {
	logger := NewTestLogger().WithName("ctx")
	ctx := IntoContext(context.Background(), logger)

	got := FromContext(ctx)
	assert.True(t, got.V(TRACE).Enabled())
}

func TestFromContextWithoutLogger(t *testing.T) {
	got := FromContext(context.Background())
	assert.Equal(t, logr.Discard().GetSink(), got.GetSink())
}
