package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// Instrument wraps each request in a server span, records HTTP metrics and
// writes one access log line. Tracing and Metrics are optional.
//
// It must be mounted with Router.Use so the chi route context is shared: the
// matched pattern is only known once routing has finished.
type Instrument struct {
	Logger  zerolog.Logger
	Metrics *HTTPMetrics
	Tracing bool
}

// Handler implements chi middleware.
func (in Instrument) Handler(next http.Handler) http.Handler {
	tracer := otel.Tracer("toko-pricing/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var span trace.Span
		if in.Tracing {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span = tracer.Start(ctx, r.Method, trace.WithSpanKind(trace.SpanKindServer))
			r = r.WithContext(ctx)
		}
		if in.Metrics != nil {
			in.Metrics.InFlight.Inc()
		}
		rec := &recorder{ResponseWriter: w}

		defer func() {
			p := recover()
			status := rec.statusCode()
			if p != nil {
				status = http.StatusInternalServerError
			}
			in.finish(r, rec, status, time.Since(start), span)
			if p != nil {
				panic(p)
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

func (in Instrument) finish(r *http.Request, rec *recorder, status int, elapsed time.Duration, span trace.Span) {
	route := Route(r)
	if span != nil {
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		span.End()
	}
	if in.Metrics != nil {
		in.Metrics.InFlight.Dec()
		label := route
		if !matched(r) {
			label = "unmatched"
		}
		in.Metrics.ReqTotal.WithLabelValues(r.Method, label, strconv.Itoa(status)).Inc()
		in.Metrics.ReqDur.WithLabelValues(r.Method, label).Observe(float64(elapsed) / float64(time.Millisecond))
	}

	evt := in.Logger.Info()
	if status >= http.StatusInternalServerError {
		evt = in.Logger.Error()
	}
	evt = evt.Str("method", r.Method).
		Str("route", route).
		Str("path", r.URL.Path).
		Int("status", status).
		Dur("duration", elapsed).
		Int64("bytes", rec.bytes).
		Str("request_id", middleware.GetReqID(r.Context()))
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	if strings.Contains(route, "/carts/{id}") {
		evt = evt.Str("cart_id", chi.URLParam(r, "id"))
	}
	if ip := common.ClientIP(r); ip != "" {
		evt = evt.Str("client_ip", ip)
	}
	if ua := r.UserAgent(); ua != "" {
		evt = evt.Str("user_agent", ua)
	}
	evt.Msg("http_request")
}

// Route returns the chi pattern matched for r, or the raw path when the
// request never reached a route.
func Route(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func matched(r *http.Request) bool {
	rc := chi.RouteContext(r.Context())
	return rc != nil && rc.RoutePattern() != ""
}

type recorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *recorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(p []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += int64(n)
	return n, err
}

func (rw *recorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *recorder) statusCode() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}
