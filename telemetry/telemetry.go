// Package telemetry installs the OpenTelemetry trace and log providers used
// by fsm tooling. Machines create spans through the global tracer provider,
// so installing one here is all it takes to export them.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const defaultServiceName = "fsm"

var (
	tracerProvider *sdktrace.TracerProvider //nolint:gochecknoglobals
	loggerProvider *sdklog.LoggerProvider   //nolint:gochecknoglobals
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string        `env:"OTEL_SERVICE_NAME"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION"        envDefault:"1.0.0"`
	Environment    string        `env:"OTEL_ENVIRONMENT"            envDefault:"local"`
	Endpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Enabled        bool          `env:"OTEL_ENABLED"                envDefault:"false"`
	Logs           bool          `env:"OTEL_LOGS_ENABLED"           envDefault:"false"`
	Timeout        time.Duration `env:"OTEL_EXPORTER_OTLP_TIMEOUT"  envDefault:"5s"`
	SampleRatio    float64       `env:"OTEL_TRACES_SAMPLER_ARG"     envDefault:"1"`
}

// LoadConfigFromEnv loads the OpenTelemetry configuration from environment
// variables. serviceName is used when OTEL_SERVICE_NAME is unset.
func LoadConfigFromEnv(serviceName string) (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse telemetry environment: %w", err)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}

	return &cfg, nil
}

// Initialize sets up OpenTelemetry tracing, and log export when Logs is set.
func Initialize(ctx context.Context, config *Config) error {
	if !config.Enabled {
		slog.Debug("OpenTelemetry is disabled")

		return nil
	}

	if config.Endpoint == "" {
		slog.Warn("OpenTelemetry endpoint not configured, telemetry will be disabled")

		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.Endpoint),
		otlptracehttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRatio))),
	)

	otel.SetTracerProvider(tracerProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.Logs {
		logExporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(config.Endpoint),
			otlploghttp.WithTimeout(config.Timeout),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}

		loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)

		global.SetLoggerProvider(loggerProvider)
	}

	slog.Info("OpenTelemetry initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"endpoint", config.Endpoint,
		"logs", config.Logs,
	)

	return nil
}

// Shutdown flushes and stops the providers installed by Initialize.
func Shutdown(ctx context.Context) error {
	var errs []error

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}

		tracerProvider = nil
	}

	if loggerProvider != nil {
		if err := loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider: %w", err))
		}

		loggerProvider = nil
	}

	return errors.Join(errs...)
}
