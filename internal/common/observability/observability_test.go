package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_ExportsRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := New(Options{ServiceName: "disease-predictor", ServiceVersion: "test", Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	obs.RecordRequest(context.Background(), "/predict", 200, 12*time.Millisecond)
	obs.RecordRequest(context.Background(), "/predict", 400, 3*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "http_server_requests")
	assert.Contains(t, joined, "http_server_duration")
}

func TestNew_Tracing(t *testing.T) {
	tests := []struct {
		name      string
		tracing   bool
		wantEnded int
	}{
		{name: "enabled spans reach processors", tracing: true, wantEnded: 1},
		{name: "disabled spans are dropped", tracing: false, wantEnded: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			obs, err := New(Options{
				ServiceName:    "disease-predictor",
				Tracing:        tt.tracing,
				Registerer:     prometheus.NewRegistry(),
				SpanProcessors: []sdktrace.SpanProcessor{recorder},
			})
			require.NoError(t, err)

			_, span := obs.Tracer().Start(context.Background(), "POST /predict")
			assert.Equal(t, tt.tracing, span.SpanContext().IsValid())
			span.End()

			ended := recorder.Ended()
			require.Len(t, ended, tt.wantEnded)
			if tt.wantEnded > 0 {
				assert.Equal(t, "POST /predict", ended[0].Name())
			}

			require.NoError(t, obs.Shutdown(context.Background()))
		})
	}
}
