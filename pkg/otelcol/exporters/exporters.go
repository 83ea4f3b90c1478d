package exporters

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

const dialTimeout = 10 * time.Second

// New builds an OTLP span exporter for the collector at endpoint.
func New(ctx context.Context, protocol, endpoint string) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var client otlptrace.Client
	switch protocol {
	case ProtocolGRPC:
		client = otlptracegrpc.NewClient(
			otlptracegrpc.WithCompressor("gzip"),
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
	case ProtocolHTTP, "":
		client = otlptracehttp.NewClient(
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otel protocol %q", protocol)
	}

	return otlptrace.New(ctx, client)
}
