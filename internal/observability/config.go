package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/oceandata/internal/config"
)

// Config is the logging and telemetry view of the service configuration.
// Identity comes from config.Config; exporter settings use the standard
// OTEL_* variable names so collectors can be configured the usual way.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:          firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), cfg.AppName, "oceandata"),
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             strings.ToLower(firstNonEmpty(os.Getenv("LOG_LEVEL"), defaultLogLevel(cfg))),
		LogFormat:            strings.ToLower(firstNonEmpty(os.Getenv("LOG_FORMAT"), "json")),
		OtelExporterEndpoint: firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(firstNonEmpty(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"), "grpc")),
		OtelSamplingRatio:    0.1,
	}
	if enabled, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("OTEL_ENABLED"))); err == nil {
		out.OtelEnabled = enabled
	}
	if ratio, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("OTEL_TRACES_SAMPLER_ARG")), 64); err == nil && ratio >= 0 && ratio <= 1 {
		out.OtelSamplingRatio = ratio
	}
	return out
}

// Debug turns on verbose logging and gin debug mode.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func defaultLogLevel(cfg config.Config) string {
	if cfg.IsProduction() {
		return "info"
	}
	return "debug"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
