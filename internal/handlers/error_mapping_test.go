package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shaibs3/canvascache/internal/apperrors"
	"github.com/shaibs3/canvascache/internal/db_model"
	"github.com/shaibs3/canvascache/internal/syncer"
)

// failingEngine answers every snapshot read with err
type failingEngine struct {
	err error
}

func (f failingEngine) RegisterCourse(context.Context, syncer.RegisterRequest) ([]byte, error) {
	return nil, f.err
}

func (f failingEngine) RefreshCourse(context.Context, int64) (string, error) { return "", f.err }

func (f failingEngine) DeleteCourse(context.Context, int64) error { return f.err }

func (f failingEngine) GetSnapshot(context.Context, int64) (*db_model.ModuleSnapshot, error) {
	return nil, f.err
}

func (f failingEngine) ListPages(context.Context, int64) ([]db_model.PageRecord, error) {
	return nil, f.err
}

func (f failingEngine) ListFiles(context.Context, int64) ([]db_model.FileRecord, error) {
	return nil, f.err
}

func TestModuleHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantLevel  zapcore.Level
		wantMsg    string
	}{
		{
			name:       "not found is a client error",
			err:        apperrors.NewNotFoundError("No module found with this id."),
			wantStatus: http.StatusNotFound,
			wantLevel:  zapcore.DebugLevel,
			wantMsg:    "No module found with this id.",
		},
		{
			name:       "upstream failure",
			err:        apperrors.NewUpstreamError("failed to list course modules", errors.New("timeout")),
			wantStatus: http.StatusBadGateway,
			wantLevel:  zapcore.WarnLevel,
			wantMsg:    "failed to list course modules",
		},
		{
			name:       "anything else is internal",
			err:        errors.New("disk I/O error at /var/lib/canvascache"),
			wantStatus: http.StatusInternalServerError,
			wantLevel:  zapcore.ErrorLevel,
			wantMsg:    "An unexpected error occurred.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			r := mux.NewRouter()
			NewModuleHandler(failingEngine{err: tt.err}, nil, zap.New(core)).RegisterRoutes(r, zap.NewNop())

			w := serve(r, http.MethodGet, "/moduledata?id=1")
			require.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, tt.wantMsg, decodeError(t, w).Message)

			entries := logs.All()
			require.Len(t, entries, 1)
			require.Equal(t, tt.wantLevel, entries[0].Level)
		})
	}
}
