// Package observability wires logging, metrics, and tracing for the
// permission engine.
//
// Logging is logrus; NewLogger builds a configured instance that the services
// accept in their constructors. Metrics are prometheus collectors registered
// on a caller-supplied registry so embedding applications can expose them on
// their existing /metrics endpoint. Tracing is OpenTelemetry with an OTLP/gRPC
// exporter; the resolver creates a span per resolution when a global tracer
// provider is installed.
package observability
