package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shaibs3/canvascache/internal/telemetry"
)

type echoHandler struct{}

func (echoHandler) RegisterRoutes(router *mux.Router, _ *zap.Logger) {
	router.HandleFunc("/echo", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(RequestID(req.Context())))
	}).Methods(http.MethodGet)
	router.HandleFunc("/teapot", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)
}

func TestRouter_RequestID(t *testing.T) {
	r := NewRouter(nil, zap.NewNop(), []Handler{echoHandler{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/echo", nil))
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)
	require.Equal(t, id, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "upstream-id", w.Header().Get(RequestIDHeader))
	require.Equal(t, "upstream-id", w.Body.String())
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	tel, err := telemetry.NewTelemetry(zap.NewNop())
	require.NoError(t, err)
	r := NewRouter(tel, zap.NewNop(), []Handler{echoHandler{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "canvascache_http_requests"))
}

func TestRouter_NoMetricsWithoutTelemetry(t *testing.T) {
	r := NewRouter(nil, zap.NewNop(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CreateServer(t *testing.T) {
	r := NewRouter(nil, zap.NewNop(), nil)
	srv := r.CreateServer(":3001", 5*time.Minute)
	require.Equal(t, ":3001", srv.Addr)
	require.Equal(t, 5*time.Minute, srv.WriteTimeout)
	require.NotNil(t, srv.Handler)
}

func TestRouter_UnmatchedRequestsGetTheChain(t *testing.T) {
	tel, err := telemetry.NewTelemetry(zap.NewNop())
	require.NoError(t, err)
	r := NewRouter(tel, zap.NewNop(), []Handler{echoHandler{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	require.Contains(t, body, `route="unmatched"`)
	require.Contains(t, body, `status="404"`)
	require.Contains(t, body, `status="405"`)
	require.NotContains(t, body, "/nope/123")
}
