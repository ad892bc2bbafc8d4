package telemetry

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Block authoring event types written to the event stream.
const (
	Telemetry_Authoring        = "authoring"
	Telemetry_Authoring_Failed = "authoring_failed"
	Telemetry_Authored         = "authored"
	Telemetry_Tx_Rejected      = "tx_rejected"
)

// BlockOutline summarizes an authored block.
type BlockOutline struct {
	Number       uint64      `json:"number"`
	HeaderHash   common.Hash `json:"header_hash"`
	StateRoot    common.Hash `json:"state_root"`
	NumTxs       int         `json:"num_txs"`
	NumRejected  int         `json:"num_rejected"`
	GasUsed      uint64      `json:"gas_used"`
	ResolveSteps int         `json:"resolve_steps"`
}

// TxRejection describes a transaction left out of a block.
type TxRejection struct {
	TxHash common.Hash `json:"tx_hash"`
	Reason string      `json:"reason"`
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// InitTracer installs a global tracer provider exporting spans over OTLP/HTTP
// to endpoint (host:port). An empty endpoint leaves the no-op provider in place.
func InitTracer(ctx context.Context, endpoint, service string) (ShutdownFunc, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.version", common.Version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
