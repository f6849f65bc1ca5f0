package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "gridsage"

// Metrics holds all GridSage metric instruments.
type Metrics struct {
	QueriesStarted   metric.Int64Counter
	QueriesCompleted metric.Int64Counter
	QueriesFailed    metric.Int64Counter
	ToolCalls        metric.Int64Counter
	RoundTrips       metric.Int64Histogram
	QueryDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.QueriesStarted, err = meter.Int64Counter("gridsage.queries.started",
		metric.WithDescription("Number of queries started"))
	if err != nil {
		return nil, err
	}

	m.QueriesCompleted, err = meter.Int64Counter("gridsage.queries.completed",
		metric.WithDescription("Number of queries answered"))
	if err != nil {
		return nil, err
	}

	m.QueriesFailed, err = meter.Int64Counter("gridsage.queries.failed",
		metric.WithDescription("Number of queries that reached the failed state"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("gridsage.toolcalls",
		metric.WithDescription("Number of tool calls dispatched"))
	if err != nil {
		return nil, err
	}

	m.RoundTrips, err = meter.Int64Histogram("gridsage.query.round_trips",
		metric.WithDescription("Reasoning round trips per query"))
	if err != nil {
		return nil, err
	}

	m.QueryDuration, err = meter.Float64Histogram("gridsage.query.duration_seconds",
		metric.WithDescription("Query duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
