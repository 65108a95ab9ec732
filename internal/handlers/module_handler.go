package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shaibs3/canvascache/internal/apperrors"
	"github.com/shaibs3/canvascache/internal/auth"
	"github.com/shaibs3/canvascache/internal/db_model"
	"github.com/shaibs3/canvascache/internal/syncer"
)

// ModuleEngine is the part of the sync engine the HTTP layer drives
type ModuleEngine interface {
	RegisterCourse(ctx context.Context, req syncer.RegisterRequest) ([]byte, error)
	RefreshCourse(ctx context.Context, id int64) (string, error)
	DeleteCourse(ctx context.Context, id int64) error
	GetSnapshot(ctx context.Context, id int64) (*db_model.ModuleSnapshot, error)
	ListPages(ctx context.Context, itemID int64) ([]db_model.PageRecord, error)
	ListFiles(ctx context.Context, itemID int64) ([]db_model.FileRecord, error)
}

// ModuleHandler serves the module viewer's routes
type ModuleHandler struct {
	engine   ModuleEngine
	verifier auth.Verifier
	logger   *zap.Logger
}

func NewModuleHandler(engine ModuleEngine, verifier auth.Verifier, logger *zap.Logger) *ModuleHandler {
	return &ModuleHandler{engine: engine, verifier: verifier, logger: logger.Named("modules")}
}

// RegisterRoutes registers the routes for this handler
func (h *ModuleHandler) RegisterRoutes(router *mux.Router, _ *zap.Logger) {
	router.HandleFunc("/newmodule", h.handleNewModule).Methods(http.MethodGet)
	router.HandleFunc("/moduledata", h.handleModuleData).Methods(http.MethodGet)
	router.HandleFunc("/modulepage", h.handleModulePage).Methods(http.MethodGet)
	router.HandleFunc("/modulefiles", h.handleModuleFiles).Methods(http.MethodGet)
	router.HandleFunc("/updatemodules", h.handleUpdateModules).Methods(http.MethodPut)
	router.HandleFunc("/deletemodule", h.handleDeleteModule).Methods(http.MethodDelete)
}

type moduleDataResponse struct {
	Teacher   string          `json:"teacher"`
	Course    string          `json:"course"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *ModuleHandler) handleNewModule(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	raw, err := h.engine.RegisterCourse(req.Context(), syncer.RegisterRequest{
		Teacher:    q.Get("teacher"),
		CourseName: q.Get("courseName"),
		CanvasURL:  q.Get("canvasURL"),
		CourseID:   q.Get("courseID"),
		APIKey:     q.Get("canvasAPIkey"),
	})
	if err != nil {
		h.writeError(w, err, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *ModuleHandler) handleModuleData(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		h.writeError(w, err, http.StatusNotFound)
		return
	}
	snapshot, err := h.engine.GetSnapshot(req.Context(), id)
	if err != nil {
		h.writeError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, moduleDataResponse{
		Teacher:   snapshot.Teacher,
		Course:    snapshot.Course,
		Content:   json.RawMessage(snapshot.Content),
		CreatedAt: snapshot.CreatedAt,
		UpdatedAt: snapshot.UpdatedAt,
	})
}

func (h *ModuleHandler) handleModulePage(w http.ResponseWriter, req *http.Request) {
	itemID, err := parseID(req, "module_id")
	if err != nil {
		h.writeError(w, err, http.StatusNotFound)
		return
	}
	pages, err := h.engine.ListPages(req.Context(), itemID)
	if err != nil {
		h.writeError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (h *ModuleHandler) handleModuleFiles(w http.ResponseWriter, req *http.Request) {
	itemID, err := parseID(req, "page_id")
	if err != nil {
		h.writeError(w, err, http.StatusNotFound)
		return
	}
	files, err := h.engine.ListFiles(req.Context(), itemID)
	if err != nil {
		h.writeError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *ModuleHandler) handleUpdateModules(w http.ResponseWriter, req *http.Request) {
	if !h.authorized(req) {
		h.writeError(w, apperrors.NewAuthError("Invalid password"), http.StatusNotFound)
		return
	}
	id, err := parseID(req, "id")
	if err != nil {
		h.writeError(w, err, http.StatusNotFound)
		return
	}
	status, err := h.engine.RefreshCourse(req.Context(), id)
	if err != nil {
		h.writeError(w, err, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(status))
}

func (h *ModuleHandler) handleDeleteModule(w http.ResponseWriter, req *http.Request) {
	if !h.authorized(req) {
		h.writeError(w, apperrors.NewAuthError("Invalid password"), http.StatusBadRequest)
		return
	}
	id, err := parseID(req, "id")
	if err != nil {
		h.writeError(w, err, http.StatusBadRequest)
		return
	}
	if err := h.engine.DeleteCourse(req.Context(), id); err != nil {
		h.writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		Success: true,
		Message: fmt.Sprintf("Module with id %d deleted.", id),
	})
}

func (h *ModuleHandler) authorized(req *http.Request) bool {
	return h.verifier.Verify(req.URL.Query().Get("password"))
}

// parseID reads a positive integer query parameter
func parseID(req *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(req.URL.Query().Get(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("Invalid or missing %s parameter.", name))
	}
	return id, nil
}

// writeError maps an error to its status. notFoundStatus lets delete keep answering
// an unknown id with 400.
func (h *ModuleHandler) writeError(w http.ResponseWriter, err error, notFoundStatus int) {
	status, kind := errorStatus(err, notFoundStatus)
	switch {
	case apperrors.IsClientError(err):
		h.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	case status == http.StatusBadGateway:
		h.logger.Warn("upstream request failed", zap.Error(err))
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, status, errorResponse{Error: kind, Message: "An unexpected error occurred."})
		return
	}
	writeJSON(w, status, errorResponse{Error: kind, Message: err.Error()})
}

func errorStatus(err error, notFoundStatus int) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrDuplicate):
		return http.StatusBadRequest, "Bad Request"
	case errors.Is(err, apperrors.ErrNotFound):
		return notFoundStatus, "Not Found"
	case errors.Is(err, apperrors.ErrAuth):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, apperrors.ErrUpstream):
		return http.StatusBadGateway, "Bad Gateway"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
