package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sdu-escience/gridgate/pkg/command"
)

// commandMetrics is the Prometheus implementation of command.Metrics.
type commandMetrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
}

// NewCommandMetrics creates a Prometheus-backed command.Metrics.
//
// Returns nil if metrics are not enabled, which makes the gateway skip
// metrics collection.
func NewCommandMetrics() command.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &commandMetrics{
		commandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridgate_commands_total",
				Help: "Total number of gateway commands by name and status",
			},
			// status: success, expected (documented failure), error
			[]string{"command", "status"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gridgate_command_duration_milliseconds",
				Help: "Duration of gateway commands in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					5,     // 5ms
					10,    // 10ms
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s
					30000, // 30s
				},
			},
			[]string{"command"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridgate_command_errors_total",
				Help: "Total number of unexpected gateway command failures by error type",
			},
			[]string{"command", "error_type"},
		),
	}
}

// ObserveCommand implements command.Metrics.
func (m *commandMetrics) ObserveCommand(name string, duration time.Duration, err error, expected bool) {
	status := "success"
	switch {
	case err != nil && expected:
		status = "expected"
	case err != nil:
		status = "error"
		m.errorsTotal.WithLabelValues(name, command.ErrorTypeName(err)).Inc()
	}

	m.commandsTotal.WithLabelValues(name, status).Inc()
	m.commandDuration.WithLabelValues(name).Observe(float64(duration.Microseconds()) / 1000)
}
