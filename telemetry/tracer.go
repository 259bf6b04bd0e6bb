package telemetry

import (
	"context"
	"os"
	"strings"

	"github.com/flanksource/commons/collections"
	"github.com/flanksource/commons/logger"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// Config selects where traces and profiles are sent. Empty endpoints
// disable the corresponding exporter.
type Config struct {
	ServiceName      string
	CollectorURL     string
	Insecure         bool
	PyroscopeAddress string
}

func (c *Config) BindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.CollectorURL, "otel-collector-url", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OpenTelemetry gRPC collector in host:port format")
	flags.StringVar(&c.ServiceName, "otel-service-name", "gid-seminars", "OpenTelemetry service name for the resource")
	flags.BoolVar(&c.Insecure, "otel-insecure", true, "Connect to the collector without TLS")
	flags.StringVar(&c.PyroscopeAddress, "pyroscope-address", os.Getenv("PYROSCOPE_ADDRESS"), "Pyroscope server to send continuous profiles to")
}

// Start enables the configured exporters and returns a shutdown hook.
func (c Config) Start() func(context.Context) error {
	shutdown := func(context.Context) error { return nil }
	if c.CollectorURL != "" {
		logger.Infof("Sending traces to %s", c.CollectorURL)
		shutdown = InitTracer(c.ServiceName, c.CollectorURL, c.Insecure)
	}
	if c.PyroscopeAddress != "" {
		StartPyroscope(c.ServiceName, c.PyroscopeAddress)
	}
	return shutdown
}

// resourceAttributes adds OTEL_LABELS (k=v,k=v) to the service name.
func resourceAttributes(serviceName string) []attribute.KeyValue {
	attributes := []attribute.KeyValue{attribute.String("service.name", serviceName)}
	if val, ok := os.LookupEnv("OTEL_LABELS"); ok {
		for k, v := range collections.KeyValueSliceToMap(strings.Split(val, ",")) {
			attributes = append(attributes, attribute.String(k, v))
		}
	}
	return attributes
}

func InitTracer(serviceName, collectorURL string, insecure bool) func(context.Context) error {
	noop := func(context.Context) error { return nil }

	secureOption := otlptracegrpc.WithInsecure()
	if !insecure {
		secureOption = otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, ""))
	}

	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(
		secureOption,
		otlptracegrpc.WithEndpoint(collectorURL),
	))
	if err != nil {
		logger.Errorf("failed to create opentelemetry exporter: %v", err)
		return noop
	}

	resources, err := resource.New(context.Background(), resource.WithAttributes(resourceAttributes(serviceName)...))
	if err != nil {
		logger.Errorf("could not set opentelemetry resources: %v", err)
		return noop
	}

	otel.SetTracerProvider(sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resources),
	))
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return exporter.Shutdown
}
