package tracing

import (
	"context"
	"errors"
	"testing"

	"qqbridge/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestManagerDisabledIsNoop(t *testing.T) {
	m := NewManager(models.TracingConfig{Enabled: false}, testLogger())
	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManagerStdoutExporter(t *testing.T) {
	m := NewManager(models.TracingConfig{
		Enabled:     true,
		ServiceName: "qqbridge-test",
		SampleRate:  1.0,
		UseStdout:   true,
	}, testLogger())

	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestSpanHelpersWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.operation",
		attribute.String("key", "value"),
	)
	require.NotNil(t, span)
	assert.NotNil(t, ctx)

	// all helpers must be safe with the default noop provider
	AddSpanAttributes(ctx, attribute.Int("count", 1))
	RecordError(ctx, errors.New("boom"))
	span.End()
}
