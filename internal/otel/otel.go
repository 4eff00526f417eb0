package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/gqlpath/internal/eventbus"
	events "github.com/hanpama/gqlpath/internal/events"
	reqid "github.com/hanpama/gqlpath/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches subscribers to bus.
// If endpoint is empty, no telemetry is configured.
func Setup(bus *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	Register(bus, otel.Tracer("gqlpath"))

	return tp.Shutdown, nil
}

// Register turns HTTP and evaluation events published on bus into spans of
// tracer. Evaluations started inside a traced HTTP request become children
// of its span; parsed sections are recorded as span events.
func Register(bus *eventbus.Bus, tracer trace.Tracer) (unregister func()) {
	s := &subscriber{tracer: tracer}
	return s.register(bus)
}

type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // rid -> trace.Span
	evalSpans sync.Map // evaluation id -> trace.Span
}

func (s *subscriber) register(bus *eventbus.Bus) func() {
	unsubs := []func(){
		eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
			)
			s.httpSpans.Store(rid, span)
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.httpSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			span.End()
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.EvaluationStart) {
			parent := ctx
			if rid, ok := reqid.FromContext(ctx); ok {
				if v, ok := s.httpSpans.Load(rid); ok {
					parent = trace.ContextWithSpan(ctx, v.(trace.Span))
				}
			}
			_, span := s.tracer.Start(parent, "gqlpath.evaluate")
			span.SetAttributes(
				attribute.String("gqlpath.mode", e.Mode),
				attribute.String("gqlpath.document", e.DocumentID),
				attribute.String("gqlpath.expression", e.Expression),
			)
			s.evalSpans.Store(e.ID, span)
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.SectionParsed) {
			v, ok := s.evalSpans.Load(e.EvaluationID)
			if !ok {
				return
			}
			v.(trace.Span).AddEvent("section.parsed", trace.WithAttributes(
				attribute.String("gqlpath.section.type", e.Type),
				attribute.String("gqlpath.section.name", e.Name),
				attribute.Int("gqlpath.section.size", e.Size),
				attribute.Int64("gqlpath.section.parse_nanos", e.Duration.Nanoseconds()),
			))
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.EvaluationFinish) {
			v, ok := s.evalSpans.LoadAndDelete(e.ID)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				attribute.Int("gqlpath.matches", e.Matches),
				attribute.Int("gqlpath.sections", e.Sections),
				attribute.Bool("gqlpath.cached", e.Cached),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
