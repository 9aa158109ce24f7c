package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"disease-predictor/internal/common/logger"
	"disease-predictor/internal/common/observability"
)

// RouterOptions configure NewRouter. MetricsPath "" leaves /metrics unrouted.
type RouterOptions struct {
	Logger        logger.Logger
	Observability *observability.Observability
	MetricsPath   string
	Gatherer      prometheus.Gatherer
}

func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	r := gin.New()
	// Telemetry wraps Recovery so recovered panics are still recorded as 500s.
	r.Use(RequestID(), RequestLogger(log), Telemetry(opts.Observability), Recovery(log))

	r.POST("/predict", h.Predict)
	r.POST("/predict/batch", h.PredictBatch)
	r.GET("/valid_values", h.ValidValues)
	r.GET("/features", h.Features)
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	if opts.MetricsPath != "" {
		gatherer := opts.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.GET(opts.MetricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
