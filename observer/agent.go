package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/catalyst"
)

// ObservedAgent wraps an Agent to emit a lifecycle span, metrics, and a
// log record for every processed message. The span is the parent of all
// inner LLM and tool spans via context propagation. The embedded Agent
// keeps the rest of the surface (Bus, Registry, CanAccomplish) intact.
type ObservedAgent struct {
	*catalyst.Agent
	inst *Instruments
}

// WrapAgent returns an instrumented agent.
func WrapAgent(inner *catalyst.Agent, inst *Instruments) *ObservedAgent {
	return &ObservedAgent{Agent: inner, inst: inst}
}

// ProcessMessage wraps the inner agent's ProcessMessage with an
// agent.process_message span covering the full plan-execute-respond
// lifecycle.
func (o *ObservedAgent) ProcessMessage(ctx context.Context, message string, opts ...catalyst.ProcessOption) (string, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "agent.process_message", trace.WithAttributes(
		AttrLLMModel.String(o.Agent.ModelName()),
		AttrAgentMessageLength.Int(len(message)),
	))
	defer span.End()
	start := time.Now()

	span.AddEvent("agent.started")

	response, err := o.Agent.ProcessMessage(ctx, message, opts...)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"

	if ctx.Err() != nil && err != nil {
		status = "cancelled"
		span.AddEvent("agent.cancelled")
		span.SetStatus(codes.Error, "cancelled")
	} else if err != nil {
		status = "error"
		span.AddEvent("agent.failed", trace.WithAttributes(
			attribute.String("error", err.Error()),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.AddEvent("agent.completed")
	}

	span.SetAttributes(
		AttrAgentStatus.String(status),
		AttrAgentResponseLength.Int(len(response)),
	)

	// Metrics
	o.inst.AgentRuns.Add(ctx, 1, metric.WithAttributes(
		AttrLLMModel.String(o.Agent.ModelName()),
		attribute.String("status", status),
	))
	o.inst.AgentDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrLLMModel.String(o.Agent.ModelName()),
	))

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("message processed"))
	rec.AddAttributes(
		otellog.String("agent.status", status),
		otellog.Int("agent.message_length", len(message)),
		otellog.Int("agent.response_length", len(response)),
		otellog.Float64("duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return response, err
}
