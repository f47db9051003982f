package config

import (
	"sync"

	"github.com/sdu-escience/gridgate/pkg/command"
	contents3 "github.com/sdu-escience/gridgate/pkg/content/s3"
	"github.com/sdu-escience/gridgate/pkg/metrics"
)

// MetricsResult contains the metrics collectors handed to the gateway and the
// content store.
type MetricsResult struct {
	// Command observes gateway commands (nil if disabled)
	Command command.Metrics

	// S3 observes S3 content store operations (nil if disabled)
	S3 contents3.S3Metrics
}

// InitializeMetrics creates the metrics collectors.
//
// If enabled:
//   - Initializes the global Prometheus registry
//   - Creates Prometheus-backed collectors for commands and S3
//
// If disabled, both collectors are nil and nothing is recorded. Enabled
// results are created once per process and shared.
func InitializeMetrics(enabled bool) *MetricsResult {
	if !enabled {
		return &MetricsResult{}
	}

	enabledOnce.Do(func() {
		metrics.InitRegistry()
		enabledResult = &MetricsResult{
			Command: metrics.NewCommandMetrics(),
			S3:      metrics.NewS3Metrics(),
		}
	})
	return enabledResult
}

var (
	enabledOnce   sync.Once
	enabledResult *MetricsResult
)
