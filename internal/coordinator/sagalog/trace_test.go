package sagalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestNewEntry_StampsTrace(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	e := NewEntry(ctx, "o-1", "Started", "fulfillment.start", OutcomeApplied, "{}", "")

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", e.TraceID)
	assert.Equal(t, "00f067aa0ba902b7", e.SpanID)
	assert.False(t, e.RecordedAt.IsZero())
}

func TestNewEntry_WithoutSpan(t *testing.T) {
	e := NewEntry(context.Background(), "o-1", "", "payment.result", OutcomeRejected, "", "no saga")
	assert.Empty(t, e.TraceID)
	assert.Empty(t, e.SpanID)
}
