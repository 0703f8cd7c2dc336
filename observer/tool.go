package observer

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/catalyst"
)

// ObservedTool wraps a catalyst.Tool with OTEL instrumentation.
type ObservedTool struct {
	inner catalyst.Tool
	inst  *Instruments
}

var (
	_ catalyst.Tool             = (*ObservedTool)(nil)
	_ catalyst.RecoveryProvider = (*ObservedTool)(nil)
)

// WrapTool returns an instrumented tool.
func WrapTool(inner catalyst.Tool, inst *Instruments) *ObservedTool {
	return &ObservedTool{inner: inner, inst: inst}
}

func (o *ObservedTool) Name() string            { return o.inner.Name() }
func (o *ObservedTool) Description() string     { return o.inner.Description() }
func (o *ObservedTool) Schema() catalyst.Schema { return o.inner.Schema() }

// RecoveryRules forwards the inner tool's recovery rules so wrapping
// does not hide them from the registry.
func (o *ObservedTool) RecoveryRules() []catalyst.RecoveryRule {
	if rp, ok := o.inner.(catalyst.RecoveryProvider); ok {
		return rp.RecoveryRules()
	}
	return nil
}

func (o *ObservedTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	name := o.inner.Name()
	ctx, span := o.inst.Tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		AttrToolName.String(name),
	))
	defer span.End()
	start := time.Now()

	result, err := o.inner.Execute(ctx, args)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	length := resultLength(result)

	span.SetAttributes(
		AttrToolStatus.String(status),
		AttrToolResultLength.Int(length),
	)

	o.inst.ToolExecutions.Add(ctx, 1, metric.WithAttributes(
		AttrToolName.String(name),
		attribute.String("status", status),
	))
	o.inst.ToolDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrToolName.String(name),
	))

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("tool executed"))
	rec.AddAttributes(
		otellog.String("tool.name", name),
		otellog.String("tool.status", status),
		otellog.Int("tool.result_length", length),
		otellog.Float64("tool.duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return result, err
}

// resultLength reports the size of a tool result in bytes: string
// results directly, everything else as JSON.
func resultLength(result any) int {
	switch v := result.(type) {
	case nil:
		return 0
	case string:
		return len(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return len(b)
	}
}
