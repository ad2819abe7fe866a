// Package metrics exposes loop and publish counters to Prometheus.
//
// All methods are safe to call on a nil *Metrics, which disables collection.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/itohio/gosense/pkg/sample"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Publish outcomes used as the "outcome" label.
const (
	OutcomeSent     = "sent"     // 2xx response
	OutcomeRejected = "rejected" // Non-2xx response
	OutcomeFailed   = "failed"   // Transport-level error
	OutcomeSkipped  = "skipped"  // Network not connected
)

// Metrics holds the collectors.
type Metrics struct {
	samples    prometheus.Counter
	events     prometheus.Gauge
	gasRaw     prometheus.Gauge
	gasStatus  prometheus.Gauge
	publishes  *prometheus.CounterVec
	latency    prometheus.Histogram
	lastStatus prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gosense_samples_total",
			Help: "Sensor samples taken by the loop.",
		}),
		events: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gosense_vibration_events",
			Help: "Vibration rising edges counted since start.",
		}),
		gasRaw: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gosense_gas_raw",
			Help: "Latest raw gas ADC reading.",
		}),
		gasStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gosense_gas_status",
			Help: "Latest gas tier (0=MEDIUM, 1=WARNING, 2=RISK).",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gosense_publishes_total",
			Help: "Publish attempts by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gosense_publish_latency_seconds",
			Help:    "Time spent in the transport for one publish.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		lastStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gosense_publish_last_status_code",
			Help: "Status code of the last publish response (0 if none).",
		}),
	}

	reg.MustRegister(m.samples, m.events, m.gasRaw, m.gasStatus, m.publishes, m.latency, m.lastStatus)

	return m
}

// ObserveSample records the state after a sample.
func (m *Metrics) ObserveSample(s *sample.State) {
	if m == nil {
		return
	}
	m.samples.Inc()
	m.events.Set(float64(s.EventCount))
	m.gasRaw.Set(float64(s.GasRaw))
	m.gasStatus.Set(float64(s.GasStatus))
}

// ObservePublish records one publish attempt. status is the response code,
// or 0 when no response was received.
func (m *Metrics) ObservePublish(outcome string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSkipped {
		return
	}
	m.latency.Observe(elapsed.Seconds())
	m.lastStatus.Set(float64(status))
}

// Listen binds addr for the metrics endpoint. It is separate from Serve so a
// busy port fails startup instead of a background goroutine.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve runs a /metrics endpoint on ln until ctx is cancelled.
func Serve(ctx context.Context, ln net.Listener, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	logger.Info("metrics listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
