package observability

import (
	"applysharp/internal/config"
)

// GetObservabilityConfig creates observability config from the loaded config
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	obsConfig := cfg.Observability

	// Use app version if service version not specified
	serviceVersion := obsConfig.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	return ObservabilityConfig{
		ServiceName:     obsConfig.ServiceName,
		ServiceVersion:  serviceVersion,
		ServiceInstance: obsConfig.ServiceInstance,
		Enabled:         obsConfig.Enabled,
		ConsoleOutput:   obsConfig.ConsoleOutput,
		TracingEnabled:  obsConfig.Tracing.Enabled,
		MetricsEnabled:  obsConfig.Metrics.Enabled,
		SampleRate:      obsConfig.Tracing.SampleRate,
		Interval:        obsConfig.Metrics.CollectionInterval,
		Prometheus: PrometheusConfig{
			Enabled:  obsConfig.Prometheus.Enabled,
			Endpoint: obsConfig.Prometheus.Endpoint,
			Port:     obsConfig.Prometheus.Port,
		},
		OTLP: obsConfig.OTLP,
	}
}
