package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logScope names the instrumentation scope of bridged zap records
const logScope = "github.com/hospital/billing"

func newLogs(ctx context.Context, cfg Config, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp)
	return lp, nil
}

// LogsEnabled reports whether zap records are also shipped over OTLP.
func (p *Provider) LogsEnabled() bool {
	return p.logs != nil
}

// Bridge returns base teed into the OTLP log pipeline. Records reach the
// collector only at the levels base itself writes. Without a log provider
// base is returned unchanged.
func (p *Provider) Bridge(base *zap.Logger) *zap.Logger {
	if p.logs == nil || base == nil {
		return base
	}
	otelCore := otelzap.NewCore(logScope, otelzap.WithLoggerProvider(p.logs))
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, &levelGate{Core: otelCore, enabler: c})
	}))
}

// levelGate holds the bridge core to the level of the core it sits beside
type levelGate struct {
	zapcore.Core
	enabler zapcore.LevelEnabler
}

func (g *levelGate) Enabled(lvl zapcore.Level) bool {
	return g.enabler.Enabled(lvl) && g.Core.Enabled(lvl)
}

func (g *levelGate) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !g.Enabled(entry.Level) {
		return ce
	}
	return g.Core.Check(entry, ce)
}

func (g *levelGate) With(fields []zapcore.Field) zapcore.Core {
	return &levelGate{Core: g.Core.With(fields), enabler: g.enabler}
}
