package instrumentation

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName defaults to insuratask.
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID defaults to the hostname.
	ServiceInstanceID string

	// Enabled turns metrics and tracing on. When false every recorder is a no-op.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp, stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout, none.
	TracingExporter string

	// OTLPEndpoint is host:port without scheme, e.g. localhost:4318.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP export. Local development only.
	OTLPInsecure bool

	// TraceSamplingRate is between 0.0 and 1.0.
	TraceSamplingRate float64

	// AuditEnabled controls audit log output for task mutations and tool calls.
	AuditEnabled bool
}

// DefaultConfig returns a Config populated from environment variables.
func DefaultConfig() Config {
	return Config{
		ServiceName:       getEnvOrDefault("OTEL_SERVICE_NAME", "insuratask"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:           getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   getEnvOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		AuditEnabled:      getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", true),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using an OTLP exporter")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// Sources of a task mutation.
	SourceAPI       = "api"
	SourceMCP       = "mcp"
	SourceTemplate  = "template"
	SourceSync      = "sync"
	SourceScheduler = "scheduler"

	// Calendar API operations.
	OperationList   = "list"
	OperationGet    = "get"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationToggle = "toggle"
)
