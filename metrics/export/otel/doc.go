// Package otel publishes engine metrics through OpenTelemetry
// observable instruments.
package otel
