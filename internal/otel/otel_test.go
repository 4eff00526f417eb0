package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/gqlpath/internal/eventbus"
	"github.com/hanpama/gqlpath/internal/events"
	"github.com/hanpama/gqlpath/internal/reqid"
)

func recorder(t *testing.T) (*eventbus.Bus, *tracetest.SpanRecorder, func()) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	bus := eventbus.New()
	unregister := Register(bus, tp.Tracer("test"))
	return bus, rec, unregister
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(eventbus.New(), "", "gqlpath")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestEvaluationSpanUnderHTTPSpan(t *testing.T) {
	bus, rec, _ := recorder(t)
	ctx, _ := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/query", nil)

	eventbus.Publish(ctx, bus, events.HTTPStart{Request: req})
	eventbus.Publish(ctx, bus, events.EvaluationStart{ID: "e1", Mode: events.ModeLazy, DocumentID: "doc", Expression: "//a"})
	eventbus.Publish(ctx, bus, events.SectionParsed{EvaluationID: "e1", DocumentID: "doc", Type: "operation", Name: "Q", Size: 12})
	eventbus.Publish(ctx, bus, events.EvaluationFinish{ID: "e1", Mode: events.ModeLazy, Matches: 2, Sections: 1})
	eventbus.Publish(ctx, bus, events.HTTPFinish{Request: req, Status: 200})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	eval, http := spans[0], spans[1]
	require.Equal(t, "gqlpath.evaluate", eval.Name())
	require.Equal(t, "http.request", http.Name())
	require.Equal(t, http.SpanContext().SpanID(), eval.Parent().SpanID())
	require.Equal(t, http.SpanContext().TraceID(), eval.SpanContext().TraceID())

	require.Len(t, eval.Events(), 1)
	require.Equal(t, "section.parsed", eval.Events()[0].Name)

	attrs := map[string]any{}
	for _, kv := range eval.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, "lazy", attrs["gqlpath.mode"])
	require.Equal(t, "//a", attrs["gqlpath.expression"])
	require.Equal(t, int64(2), attrs["gqlpath.matches"])
	require.Equal(t, false, attrs["gqlpath.cached"])
}

func TestFailedEvaluationSetsErrorStatus(t *testing.T) {
	bus, rec, _ := recorder(t)
	ctx := context.Background()

	eventbus.Publish(ctx, bus, events.EvaluationStart{ID: "e2", Mode: events.ModeFull})
	eventbus.Publish(ctx, bus, events.EvaluationFinish{ID: "e2", Mode: events.ModeFull, Err: errors.New("boom")})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)
	require.False(t, spans[0].Parent().IsValid())
}

func TestUnmatchedEventsAreIgnored(t *testing.T) {
	bus, rec, unregister := recorder(t)
	ctx := context.Background()

	eventbus.Publish(ctx, bus, events.SectionParsed{EvaluationID: "none"})
	eventbus.Publish(ctx, bus, events.EvaluationFinish{ID: "none"})
	require.Empty(t, rec.Ended())

	unregister()
	eventbus.Publish(ctx, bus, events.EvaluationStart{ID: "e3"})
	eventbus.Publish(ctx, bus, events.EvaluationFinish{ID: "e3"})
	require.Empty(t, rec.Started())
}
