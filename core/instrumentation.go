package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-duplex/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	turnCounter, _ = meter.Int64Counter("conversation.turns",
		metric.WithDescription("Turns retired, by outcome"))
	bargeInCounter, _ = meter.Int64Counter("conversation.barge_ins",
		metric.WithDescription("Times the user spoke over playback"))
)
