package observability

import "context"

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type field struct {
	key string
	val interface{}
}

func (f field) Key() string        { return f.key }
func (f field) Value() interface{} { return f.val }

func String(key, value string) Field          { return field{key, value} }
func Int(key string, value int) Field         { return field{key, value} }
func Int64(key string, value int64) Field     { return field{key, value} }
func Float64(key string, value float64) Field { return field{key, value} }
func Bool(key string, value bool) Field       { return field{key, value} }
func Error(key string, err error) Field       { return field{key, err} }

// Strings copies values so later mutation by the caller does not leak into
// buffered log records.
func Strings(key string, values []string) Field {
	return field{key, append([]string(nil), values...)}
}

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// Tracer provides distributed tracing hooks for library operations.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// Standard span and metric names emitted by the library.
const (
	SpanValidate  = "pptx.validate"
	SpanHidden    = "pptx.hidden"
	SpanPrune     = "pptx.prune"
	SpanImages    = "pptx.images"
	SpanSerialize = "pptx.serialize"

	MetricMediaFound  = "pptx.media.count"
	MetricMediaSaved  = "pptx.media.saved.bytes"
	MetricPartsPruned = "pptx.parts.pruned"
)
