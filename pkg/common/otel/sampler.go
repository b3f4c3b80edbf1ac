package otel

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// endpointExcluder drops spans for noisy routes such as health probes and
// delegates everything else to a ratio based sampler.
type endpointExcluder struct {
	endpoints map[string]struct{}
	sampler   sdktrace.Sampler
}

func newEndpointExcluder(endpoints map[string]struct{}, probability float64) endpointExcluder {
	return endpointExcluder{
		endpoints: endpoints,
		sampler:   sdktrace.ParentBased(sdktrace.TraceIDRatioBased(probability)),
	}
}

// ShouldSample implements the sampler interface.
func (ee endpointExcluder) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if _, exists := ee.endpoints[p.Name]; exists {
		return sdktrace.SamplingResult{
			Decision:   sdktrace.Drop,
			Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
		}
	}
	return ee.sampler.ShouldSample(p)
}

// Description implements the sampler interface.
func (ee endpointExcluder) Description() string {
	return "customSampler"
}
