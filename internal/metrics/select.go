package metrics

import (
	"net/http"

	"github.com/imrishuroy/go-canteen-orderflow/internal/aws"
	"github.com/imrishuroy/go-canteen-orderflow/internal/config"
	"go.uber.org/zap"
)

// FromConfig picks the configured backend. The handler is non-nil only for Prometheus,
// which is scraped rather than pushed.
func FromConfig(cfg config.MetricsConfig, cloudwatch aws.CloudWatchAPI, log *zap.Logger) (Recorder, http.Handler) {
	switch cfg.Backend {
	case config.MetricsCloudWatch:
		return NewCloudWatch(cloudwatch, cfg.Namespace, log), nil
	case config.MetricsPrometheus:
		p := NewPrometheus(cfg.Namespace, log)
		return p, p.Handler()
	default:
		return Nop{}, nil
	}
}
