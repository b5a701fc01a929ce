package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	return sr
}

func attributesOf(span sdktrace.ReadOnlySpan) map[string]any {
	out := make(map[string]any)
	for _, attr := range span.Attributes() {
		out[string(attr.Key)] = attr.Value.AsInterface()
	}
	return out
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "invoicing.generate_recurring",
		telemetry.WithAttribute(telemetry.SpanAttrProcessed, 3),
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "invoicing.generate_recurring", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, int64(3), attributesOf(spans[0])[telemetry.SpanAttrProcessed])
}

func TestStartSpan_DefaultsToInternal(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test.operation")
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, trace.SpanKindInternal, sr.Ended()[0].SpanKind())
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "invoicing", "publish_invoice")
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, "invoicing.publish_invoice", sr.Ended()[0].Name())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	invoiceID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "test.operation")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoiceID,
		telemetry.SpanAttrLineItems, 2,
		telemetry.SpanAttrFinalize, true,
		42, "non-string key is skipped",
		"dangling",
	)
	telemetry.SetAttribute(span, telemetry.SpanAttrExternalStatus, "paid")
	span.End()

	attrs := attributesOf(sr.Ended()[0])
	assert.Equal(t, invoiceID.String(), attrs[telemetry.SpanAttrInvoiceID])
	assert.Equal(t, int64(2), attrs[telemetry.SpanAttrLineItems])
	assert.Equal(t, true, attrs[telemetry.SpanAttrFinalize])
	assert.Equal(t, "paid", attrs[telemetry.SpanAttrExternalStatus])
	assert.NotContains(t, attrs, "dangling")
	assert.Len(t, attrs, 4)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test.operation")
	telemetry.RecordError(span, errors.New("platform unavailable"))
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "platform unavailable", ended.Status().Description)
	require.Len(t, ended.Events(), 1)
	assert.Equal(t, "exception", ended.Events()[0].Name)
}

func TestRecordError_NilError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test.operation")
	telemetry.RecordError(span, nil)
	span.End()

	assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)
	scheduleID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "test.operation")
	telemetry.AddEvent(span, "schedule_deactivated", telemetry.SpanAttrScheduleID, scheduleID.String())
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "schedule_deactivated", events[0].Name)
	require.Len(t, events[0].Attributes, 1)
	assert.Equal(t, scheduleID.String(), events[0].Attributes[0].Value.AsString())
}

func TestSpanFromContext(t *testing.T) {
	setupTestTracer(t)

	assert.False(t, telemetry.SpanFromContext(context.Background()).SpanContext().IsValid())

	ctx, span := telemetry.StartSpan(context.Background(), "parent")
	defer span.End()

	assert.Equal(t, span, telemetry.SpanFromContext(ctx))
}

func TestNestedSpans_ShareTrace(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, parent := telemetry.StartSpan(context.Background(), "invoicing.reconcile_status")
	_, child := telemetry.StartSpan(ctx, "accounting.get_invoice")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestNilSpanHelpers(t *testing.T) {
	// Should not panic
	telemetry.SetAttributes(nil, "key", "value")
	telemetry.SetAttribute(nil, "key", "value")
	telemetry.RecordError(nil, errors.New("boom"))
	telemetry.AddEvent(nil, "event")
}
