package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "fraudwatch"

// Metrics holds all fraudwatch metric instruments.
type Metrics struct {
	ReviewsStarted   metric.Int64Counter
	ReviewsCompleted metric.Int64Counter
	ReviewsFailed    metric.Int64Counter
	ToolCalls        metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	RiskScore        metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ReviewsStarted, err = meter.Int64Counter("fraudwatch.reviews.started",
		metric.WithDescription("Number of fraud reviews started"))
	if err != nil {
		return nil, err
	}

	m.ReviewsCompleted, err = meter.Int64Counter("fraudwatch.reviews.completed",
		metric.WithDescription("Number of fraud reviews completed"))
	if err != nil {
		return nil, err
	}

	m.ReviewsFailed, err = meter.Int64Counter("fraudwatch.reviews.failed",
		metric.WithDescription("Number of fraud reviews failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("fraudwatch.toolcalls",
		metric.WithDescription("Number of CRM tool calls"))
	if err != nil {
		return nil, err
	}

	m.AnalysisDuration, err = meter.Float64Histogram("fraudwatch.analysis.duration_seconds",
		metric.WithDescription("Specialist analysis duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.RiskScore, err = meter.Float64Histogram("fraudwatch.risk.score",
		metric.WithDescription("Aggregated risk score distribution"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
