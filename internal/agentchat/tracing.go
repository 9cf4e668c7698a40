package agentchat

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startSpan starts a span for one hosted assistant reply.
func startSpan(ctx context.Context, name, agent, assistantID string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, name)
	span.SetAttributes(
		attribute.String("agent.name", agent),
		attribute.String("assistant.id", assistantID),
	)
	return ctx, span
}

// startToolSpan starts a span for a function call.
func startToolSpan(ctx context.Context, agent, tool string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "tool."+tool)
	span.SetAttributes(
		attribute.String("agent.name", agent),
		attribute.String("tool.name", tool),
	)
	return ctx, span
}

// startChatSpan starts a span for a group chat.
func startChatSpan(ctx context.Context, manager string, agents, maxRound int) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "groupchat.run")
	span.SetAttributes(
		attribute.String("manager.name", manager),
		attribute.Int("groupchat.agents", agents),
		attribute.Int("groupchat.max_round", maxRound),
	)
	return ctx, span
}

// endChatSpan records the outcome of a group chat.
func endChatSpan(span trace.Span, rounds int, reason string, err error) {
	span.SetAttributes(
		attribute.Int("groupchat.rounds", rounds),
		attribute.String("groupchat.end_reason", reason),
	)
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
