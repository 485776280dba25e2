package middleware

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for wiki instances.
const defaultTracerName = "cnlwiki"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "cnlwiki").
	TracerName string

	// InstanceName is recorded on every span.
	InstanceName string

	// Filter determines which requests to trace.
	// Return true to trace the request, false to skip.
	// If nil, all requests are traced.
	Filter func(r *http.Request) bool

	// AttributeExtractor extracts custom attributes from the request.
	AttributeExtractor func(r *http.Request) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithInstanceName sets the instance attribute recorded on spans.
func WithInstanceName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.InstanceName = name
	}
}

// WithFilter sets a filter that skips tracing for some requests.
func WithFilter(filter func(r *http.Request) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor adds attributes computed from the request.
func WithAttributeExtractor(extractor func(r *http.Request) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry returns middleware that starts one server span per request.
// The span carries the request ID, the instance and, once set on the
// request's Correlation, the session ID. Responses with status 500 and above
// and panics mark the span as failed.
//
// The tracer is resolved from the global provider, so configure it first:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) func(http.Handler) http.Handler {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.Filter != nil && !config.Filter(r) {
				next.ServeHTTP(w, r)
				return
			}

			attrs := []attribute.KeyValue{
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.RequestURI()),
			}
			if config.InstanceName != "" {
				attrs = append(attrs, attribute.String("cnlwiki.instance", config.InstanceName))
			}
			if id := RequestIDFrom(r.Context()); id != "" {
				attrs = append(attrs, attribute.String("cnlwiki.request_id", id))
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(r)...)
			}

			ctx, span := otel.Tracer(config.TracerName).Start(
				r.Context(),
				r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			rec := wrapWriter(w)
			defer func() {
				if sid := CorrelationFrom(ctx).SessionID(); sid != "" {
					span.SetAttributes(attribute.String("cnlwiki.session_id", sid))
				}
				if v := recover(); v != nil {
					span.SetStatus(codes.Error, fmt.Sprint(v))
					span.SetAttributes(attribute.Bool("cnlwiki.panic", true))
					panic(v)
				}
				span.SetAttributes(attribute.Int("http.status_code", rec.status))
				if rec.status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(rec.status))
				} else {
					span.SetStatus(codes.Ok, "")
				}
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}

// TraceID returns the trace ID of the span in r's context, or "".
func TraceID(r *http.Request) string {
	sc := trace.SpanContextFromContext(r.Context())
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
