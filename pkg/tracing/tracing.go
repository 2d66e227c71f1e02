package tracing

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "minikern/pkg/kernel"

// Tracer starts spans for kernel events.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	output   io.Closer
}

// Noop returns a Tracer whose spans are discarded.
func Noop() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(instrumentationName)}
}

// New builds a Tracer exporting synchronously through exporter.
func New(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (*Tracer, error) {
	if exporter == nil {
		return Noop(), nil
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	return &Tracer{tracer: tp.Tracer(instrumentationName), provider: tp}, nil
}

// NewStdout builds a Tracer using the stdout exporter. If outputFile is
// empty spans are written to os.Stdout; otherwise to the named file.
func NewStdout(serviceName, serviceVersion, outputFile string) (*Tracer, error) {
	var w io.Writer = os.Stdout
	var f *os.File
	if outputFile != "" {
		var err error
		if f, err = os.Create(outputFile); err != nil {
			return nil, err
		}
		w = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, errors.Join(err, closeFile(f))
	}
	t, err := New(serviceName, serviceVersion, exporter)
	if err != nil {
		return nil, errors.Join(err, closeFile(f))
	}
	if f != nil {
		t.output = f
	}
	return t, nil
}

func closeFile(f *os.File) error {
	if f == nil {
		return nil
	}
	return f.Close()
}

// Shutdown flushes pending spans and closes the output file.
func (t *Tracer) Shutdown(ctx context.Context) error {
	var err error
	if t.provider != nil {
		err = t.provider.Shutdown(ctx)
	}
	if t.output != nil {
		err = errors.Join(err, t.output.Close())
	}
	return err
}

// Span is one traced operation.
type Span struct {
	span trace.Span
}

// StartSyscall starts a span for system call name issued by pid.
func (t *Tracer) StartSyscall(ctx context.Context, name string, pid int) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, "syscall."+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("syscall.name", name),
			attribute.Int("process.pid", pid),
		),
	)
	return ctx, &Span{span: span}
}

// SetAttributes attaches integer attributes to the span.
func (s *Span) SetAttributes(attrs map[string]int) *Span {
	if s == nil || len(attrs) == 0 {
		return s
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.Int(k, v))
	}
	s.span.SetAttributes(kvs...)
	return s
}

// SetStatus records err on the span, or an OK status when err is nil.
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

// End finishes the span.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.span.End()
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span *Span, err error) {
	span.SetStatus(err)
	span.End()
}
