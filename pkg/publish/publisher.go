// Package publish sends sampled state to the ingestion backend.
//
// A publish is at-most-once and best-effort: the outcome is logged and
// counted, never retried or queued.
package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/itohio/gosense/pkg/link"
	"github.com/itohio/gosense/pkg/metrics"
	"github.com/itohio/gosense/pkg/sample"
)

// Response is what a transport got back for one send.
type Response struct {
	Status   int    // HTTP status code or MQTT reason code
	Accepted bool   // Status signals success for this transport
	Body     []byte // Response body, possibly truncated; empty if none
}

// Transport delivers one encoded record. It may block on network I/O.
type Transport interface {
	Send(ctx context.Context, body []byte) (Response, error)
}

// Publisher builds records from sampled state and hands them to a Transport.
type Publisher struct {
	deviceID  string
	link      link.Link
	transport Transport
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Publisher. m may be nil.
func New(deviceID string, l link.Link, t Transport, m *metrics.Metrics, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		deviceID:  deviceID,
		link:      l,
		transport: t,
		metrics:   m,
		logger:    logger,
	}
}

// Publish sends one snapshot of s. When the link is down nothing is sent.
// It returns the outcome, one of the metrics.Outcome* values.
func (p *Publisher) Publish(ctx context.Context, s *sample.State) string {
	if !p.link.IsConnected() {
		p.logger.Warn("network not connected, skipping publish")
		p.metrics.ObservePublish(metrics.OutcomeSkipped, 0, 0)
		return metrics.OutcomeSkipped
	}

	record := NewRecord(p.deviceID, s)
	body, err := record.Marshal()
	if err != nil {
		p.logger.Error("encoding record", "error", err)
		p.metrics.ObservePublish(metrics.OutcomeFailed, 0, 0)
		return metrics.OutcomeFailed
	}

	start := time.Now()
	resp, err := p.transport.Send(ctx, body)
	elapsed := time.Since(start)

	if err != nil {
		p.logger.Error("publish failed", "error", err, "elapsed", elapsed)
		p.metrics.ObservePublish(metrics.OutcomeFailed, 0, elapsed)
		return metrics.OutcomeFailed
	}

	outcome := metrics.OutcomeSent
	level := slog.LevelInfo
	if !resp.Accepted {
		outcome = metrics.OutcomeRejected
		level = slog.LevelWarn
	}

	attrs := []any{
		"status", resp.Status,
		"event_count", record.EventCount,
		"gas_status", record.GasStatus.String(),
		"elapsed", elapsed,
	}
	if len(resp.Body) > 0 {
		attrs = append(attrs, "body", string(resp.Body))
	}
	p.logger.Log(ctx, level, "publish", attrs...)
	p.metrics.ObservePublish(outcome, resp.Status, elapsed)

	return outcome
}
