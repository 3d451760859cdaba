package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging routes every package logger to a rotated file. The terminal
// UI owns stdout, so nothing is written there.
func setupLogging(cfg LogConfig) (func(context.Context) error, error) {
	minSeverity, err := parseSeverity(cfg.Level)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	exporter, err := stdoutlog.New(stdoutlog.WithWriter(writer))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(severityFilter{
			Processor: sdklog.NewBatchProcessor(exporter),
			min:       minSeverity,
		}),
	)
	global.SetLoggerProvider(provider)

	return func(ctx context.Context) error {
		err := provider.Shutdown(ctx)
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		return err
	}, nil
}

// severityFilter drops records below min before they reach the batch queue.
type severityFilter struct {
	sdklog.Processor
	min otellog.Severity
}

func (f severityFilter) OnEmit(ctx context.Context, record *sdklog.Record) error {
	if record.Severity() < f.min {
		return nil
	}
	return f.Processor.OnEmit(ctx, record)
}

func parseSeverity(level string) (otellog.Severity, error) {
	switch strings.ToLower(level) {
	case "debug":
		return otellog.SeverityDebug, nil
	case "", "info":
		return otellog.SeverityInfo, nil
	case "warn", "warning":
		return otellog.SeverityWarn, nil
	case "error":
		return otellog.SeverityError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
