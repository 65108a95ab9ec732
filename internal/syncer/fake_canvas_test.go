package syncer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shaibs3/canvascache/internal/canvas"
	"github.com/shaibs3/canvascache/internal/store"
)

const courseID = "42"

// fakeCanvas serves canned JSON bodies. "{{base}}" in a body is replaced by the server URL.
type fakeCanvas struct {
	server *httptest.Server

	mu          sync.Mutex
	modules     string
	failModules bool
	responses   map[string]string
	hits        map[string]int
}

func newFakeCanvas(t *testing.T) *fakeCanvas {
	t.Helper()
	fc := &fakeCanvas{
		responses: make(map[string]string),
		hits:      make(map[string]int),
	}
	fc.server = httptest.NewServer(http.HandlerFunc(fc.serve))
	t.Cleanup(fc.server.Close)
	return fc
}

func (fc *fakeCanvas) serve(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.hits[r.URL.Path]++

	if r.Header.Get("Authorization") != "Bearer test-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/api/v1/courses/"+courseID+"/modules" {
		if fc.failModules {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(fc.expand(fc.modules)))
		return
	}
	body, ok := fc.responses[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(fc.expand(body)))
}

func (fc *fakeCanvas) expand(s string) string {
	return strings.ReplaceAll(s, "{{base}}", fc.server.URL)
}

func (fc *fakeCanvas) setModules(body string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.modules = body
}

func (fc *fakeCanvas) setFailModules(fail bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.failModules = fail
}

func (fc *fakeCanvas) respond(path, body string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.responses[path] = body
}

func (fc *fakeCanvas) hitCount(path string) int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.hits[path]
}

func (fc *fakeCanvas) registerRequest(teacher, course string) RegisterRequest {
	return RegisterRequest{
		Teacher:    teacher,
		CourseName: course,
		CanvasURL:  fc.server.URL,
		CourseID:   courseID,
		APIKey:     "test-key",
	}
}

func newTestEngine(t *testing.T, st store.SnapshotStore, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(st, canvas.NewClientFactory(5*time.Second), zap.NewNop(), nil, opts...)
	require.NoError(t, err)
	return e
}
