package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_WritesSpansToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.json")
	ctx := context.Background()

	shutdown, err := Init(ctx, Config{Enabled: true, ServiceName: "workflow-engine", OutputPath: path}, zap.NewNop())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "approval.approve")
	span.End()

	require.NoError(t, shutdown(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "approval.approve")
	assert.Contains(t, string(data), "workflow-engine")
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, sampleRatio(0))
	assert.Equal(t, 1.0, sampleRatio(3))
	assert.Equal(t, 0.25, sampleRatio(0.25))
}
