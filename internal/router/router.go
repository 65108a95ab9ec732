package router

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/shaibs3/canvascache/internal/telemetry"
)

const RequestIDHeader = "X-Request-ID"

const unmatchedRoute = "unmatched"

type contextKey string

const requestIDKey contextKey = "request_id"

// Handler is anything that can mount its routes on the router
type Handler interface {
	RegisterRoutes(router *mux.Router, logger *zap.Logger)
}

// Router wraps a mux router with request ids, access logs and HTTP metrics
type Router struct {
	router          *mux.Router
	logger          *zap.Logger
	requestCounter  metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewRouter mounts every handler. A nil telemetry disables /metrics and request metrics.
func NewRouter(tel *telemetry.Telemetry, logger *zap.Logger, handlers []Handler) *Router {
	r := &Router{
		router: mux.NewRouter(),
		logger: logger.Named("http"),
	}

	if tel != nil {
		var err error
		r.requestCounter, err = tel.Meter.Int64Counter("canvascache_http_requests",
			metric.WithDescription("HTTP requests by route, method and status"))
		if err != nil {
			r.logger.Error("failed to create request counter", zap.Error(err))
		}
		r.requestDuration, err = tel.Meter.Float64Histogram("canvascache_http_request_duration_seconds",
			metric.WithDescription("HTTP request duration"),
			metric.WithUnit("s"))
		if err != nil {
			r.logger.Error("failed to create request duration histogram", zap.Error(err))
		}
		r.router.Handle("/metrics", tel.Handler()).Methods(http.MethodGet)
	}

	r.router.Use(r.requestIDMiddleware, r.loggingMiddleware)
	// mux skips Use middleware when nothing matched, so those handlers get the chain explicitly
	r.router.NotFoundHandler = r.chain(http.NotFoundHandler())
	r.router.MethodNotAllowedHandler = r.chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	for _, h := range handlers {
		h.RegisterRoutes(r.router, logger)
	}
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// CreateServer builds the server. Registration walks a whole course inside one
// request, so the write timeout has to cover that.
func (r *Router) CreateServer(addr string, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

// RequestID returns the id assigned to the request carrying ctx
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func (r *Router) chain(h http.Handler) http.Handler {
	return r.requestIDMiddleware(r.loggingMiddleware(h))
}

func (r *Router) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs the path only: query strings carry API keys and passwords
func (r *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		elapsed := time.Since(start)

		// raw paths of unmatched requests would make the route label unbounded
		route := unmatchedRoute
		if current := mux.CurrentRoute(req); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		attrs := metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("method", req.Method),
			attribute.Int("status", rec.status),
		)
		if r.requestCounter != nil {
			r.requestCounter.Add(req.Context(), 1, attrs)
		}
		if r.requestDuration != nil {
			r.requestDuration.Record(req.Context(), elapsed.Seconds(), attrs)
		}

		r.logger.Info("request handled",
			zap.String("request_id", RequestID(req.Context())),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed))
	})
}
