// Package observe holds the OpenTelemetry metric instruments of the tracker
// and the Prometheus bridge that exposes them on /metrics.
//
// Tests should build their own instance with NewMetrics and a ManualReader
// rather than use the global provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/alexhamidi/typing-tracker"

// Metrics holds every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Keystrokes counts decided key-downs by outcome kind.
	Keystrokes metric.Int64Counter

	// ClassifyDuration is the latency of one classifier round trip.
	ClassifyDuration metric.Float64Histogram

	// ClassifyErrors counts failed classifier calls by mode.
	ClassifyErrors metric.Int64Counter

	// Corrections counts corrective actions by action and status.
	Corrections metric.Int64Counter

	// FrameAge is the age of the frame used for a keystroke, by source.
	FrameAge metric.Float64Histogram

	// FramesStored counts frames written to the frame store by producer.
	FramesStored metric.Int64Counter

	// SessionTransitions counts transport session state changes by state.
	SessionTransitions metric.Int64Counter

	// ActiveSessions is the number of signaling connections currently open.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration is the latency of the local HTTP API.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are sized for a classification call on a LAN.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Keystrokes, err = m.Int64Counter("typing.keystrokes",
		metric.WithDescription("Key-downs processed, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("typing.classify.duration",
		metric.WithDescription("Latency of finger classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifyErrors, err = m.Int64Counter("typing.classify.errors",
		metric.WithDescription("Failed classification calls, by mode."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("typing.corrections",
		metric.WithDescription("Corrective actions issued, by action and status."),
	); err != nil {
		return nil, err
	}
	if met.FrameAge, err = m.Float64Histogram("typing.frame.age",
		metric.WithDescription("Age of the frame classified for a keystroke."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesStored, err = m.Int64Counter("typing.frames.stored",
		metric.WithDescription("Frames written to the frame store, by producer."),
	); err != nil {
		return nil, err
	}
	if met.SessionTransitions, err = m.Int64Counter("typing.session.transitions",
		metric.WithDescription("Transport session state changes, by new state."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("typing.session.active",
		metric.WithDescription("Open signaling connections."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("typing.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Attr is a shorthand for attribute.String.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordKeystroke counts one decided key-down.
func (m *Metrics) RecordKeystroke(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Keystrokes.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordClassify records one classifier call.
func (m *Metrics) RecordClassify(ctx context.Context, mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ClassifyDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("mode", mode)))
	if err != nil {
		m.ClassifyErrors.Add(ctx, 1, metric.WithAttributes(Attr("mode", mode)))
	}
}

// RecordCorrection counts one corrective action.
func (m *Metrics) RecordCorrection(ctx context.Context, action string, err error) {
	if m == nil {
		return
	}
	m.Corrections.Add(ctx, 1, metric.WithAttributes(Attr("action", action), Attr("status", status(err))))
}

// RecordFrameAge records how old the classified frame was.
func (m *Metrics) RecordFrameAge(ctx context.Context, age time.Duration) {
	if m == nil {
		return
	}
	m.FrameAge.Record(ctx, age.Seconds())
}

// RecordFrameStored counts a frame written by producer ("camera", "remote").
func (m *Metrics) RecordFrameStored(ctx context.Context, producer string) {
	if m == nil {
		return
	}
	m.FramesStored.Add(ctx, 1, metric.WithAttributes(Attr("producer", producer)))
}

// RecordSessionState counts a session entering state.
func (m *Metrics) RecordSessionState(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.SessionTransitions.Add(ctx, 1, metric.WithAttributes(Attr("state", state)))
}

// SessionOpened and SessionClosed track open signaling connections.
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

func (m *Metrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}
