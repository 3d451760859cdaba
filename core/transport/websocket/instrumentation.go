package websocket

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-duplex/core/transport/websocket"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	framesSentCounter, _ = meter.Int64Counter("transport.frames.sent",
		metric.WithDescription("Audio frames written to the duplex channel"))
	framesDroppedCounter, _ = meter.Int64Counter("transport.frames.dropped",
		metric.WithDescription("Audio frames dropped because the channel was not open"))
	protocolErrorCounter, _ = meter.Int64Counter("transport.protocol_errors",
		metric.WithDescription("Inbound messages that could not be classified"))
	reconnectCounter, _ = meter.Int64Counter("transport.reconnects",
		metric.WithDescription("Reconnect attempts after a dropped or failed connection"))
)
