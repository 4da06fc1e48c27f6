// Package telemetry initializes the OpenTelemetry SDK (OTLP gRPC traces and
// metrics) and hands out the module tracer. With telemetry disabled the
// global providers stay noop and no exporter connects anywhere.
package telemetry
