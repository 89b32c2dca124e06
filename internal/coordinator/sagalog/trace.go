package sagalog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	TraceID string
	SpanID  string
}

// ExtractTraceInfo reads the active span from ctx. Both fields are empty
// when there is none, e.g. in unit tests.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NewEntry builds an Entry stamped with the trace of ctx and the current time.
func NewEntry(ctx context.Context, orderID, phase, messageType string, outcome Outcome, payload, note string) *Entry {
	ti := ExtractTraceInfo(ctx)
	return &Entry{
		OrderID:     orderID,
		Phase:       phase,
		MessageType: messageType,
		Outcome:     outcome,
		Payload:     payload,
		Note:        note,
		TraceID:     ti.TraceID,
		SpanID:      ti.SpanID,
		RecordedAt:  time.Now().UTC(),
	}
}
