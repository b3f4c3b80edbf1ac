package otel

import (
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// NewMeterProvider creates a meter provider for serviceName that feeds every
// reader given. Tests pass a manual reader to collect what was recorded.
func NewMeterProvider(serviceName string, readers ...sdkmetric.Reader) *sdkmetric.MeterProvider {
	return newMeterProvider(NewResource(serviceName, nil), readers...)
}

func newMeterProvider(res *resource.Resource, readers ...sdkmetric.Reader) *sdkmetric.MeterProvider {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	return sdkmetric.NewMeterProvider(opts...)
}

// NewResource creates a new OpenTelemetry resource with service name and any
// extra attributes.
func NewResource(serviceName string, extra map[string]string) *resource.Resource {
	attrs := append(
		[]attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)},
		attributesFromMap(extra)...,
	)
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}
