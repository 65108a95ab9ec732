package syncer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/shaibs3/canvascache/internal/apperrors"
	"github.com/shaibs3/canvascache/internal/canvas"
	"github.com/shaibs3/canvascache/internal/db_model"
	"github.com/shaibs3/canvascache/internal/store"
)

// RefreshedStatus is what a successful refresh reports
const RefreshedStatus = "Module updated"

const defaultConcurrency = 4

// RegisterRequest names a course to start tracking. The param tags are the
// query parameter names reported back in validation errors.
type RegisterRequest struct {
	Teacher    string `param:"teacher" validate:"required"`
	CourseName string `param:"courseName" validate:"required"`
	CanvasURL  string `param:"canvasURL" validate:"required,http_url"`
	CourseID   string `param:"courseID" validate:"required"`
	APIKey     string `param:"canvasAPIkey" validate:"required"`
}

func (r *RegisterRequest) normalize() {
	r.Teacher = strings.TrimSpace(r.Teacher)
	r.CourseName = strings.TrimSpace(r.CourseName)
	r.CanvasURL = strings.TrimSuffix(strings.TrimSpace(r.CanvasURL), "/")
	r.CourseID = strings.TrimSpace(r.CourseID)
	r.APIKey = strings.TrimSpace(r.APIKey)
}

// Engine keeps module snapshots and their page and file rows in step with Canvas
type Engine struct {
	store         store.SnapshotStore
	newClient     canvas.ClientFactory
	logger        *zap.Logger
	validate      *validator.Validate
	metrics       *syncMetrics
	courseLocks   *keyedMutex
	snapshotLocks *keyedMutex
	concurrency   int
}

type Option func(*Engine)

// WithConcurrency bounds how many items one walk fetches at once; 1 walks strictly in order
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine wires the engine. A nil meter disables metrics.
func NewEngine(st store.SnapshotStore, newClient canvas.ClientFactory, logger *zap.Logger, meter metric.Meter, opts ...Option) (*Engine, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("syncer")
	}
	m, err := newSyncMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("param")
	})

	e := &Engine{
		store:         st,
		newClient:     newClient,
		logger:        logger.Named("syncer"),
		validate:      validate,
		metrics:       m,
		courseLocks:   newKeyedMutex(),
		snapshotLocks: newKeyedMutex(),
		concurrency:   defaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RegisterCourse fetches a course's module tree for the first time, stores it and
// walks its items. It returns the raw tree.
func (e *Engine) RegisterCourse(ctx context.Context, req RegisterRequest) ([]byte, error) {
	start := time.Now()
	raw, err := e.registerCourse(ctx, req)
	e.metrics.recordOperation(ctx, "register", start, err)
	return raw, err
}

func (e *Engine) registerCourse(ctx context.Context, req RegisterRequest) ([]byte, error) {
	req.normalize()
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	// held across create and walk so refresh and delete of the new id wait for both
	unlock := e.courseLocks.Lock(courseKey(req.Teacher, req.CourseName))
	defer unlock()

	existing, err := e.store.FindSnapshotByTeacherAndCourse(ctx, req.Teacher, req.CourseName)
	if err != nil {
		return nil, fmt.Errorf("failed to check for an existing module: %w", err)
	}
	if existing != nil {
		return nil, apperrors.NewDuplicateError("Module already exists for this teacher and course.")
	}

	client := e.newClient(req.CanvasURL, req.APIKey)
	tree, err := listModules(ctx, client, req.CourseID)
	if err != nil {
		e.logger.Warn("failed to list course modules",
			zap.String("teacher", req.Teacher),
			zap.String("course", req.CourseName),
			zap.Error(err))
		return nil, err
	}

	id, err := e.store.CreateSnapshot(ctx, &db_model.ModuleSnapshot{
		Course:    req.CourseName,
		Teacher:   req.Teacher,
		Content:   tree.Raw,
		APIKey:    req.APIKey,
		CanvasURL: req.CanvasURL,
		CourseID:  req.CourseID,
	})
	if err != nil {
		return nil, err
	}

	unlockSnapshot := e.snapshotLocks.Lock(snapshotKey(id))
	defer unlockSnapshot()

	stats, err := e.walk(ctx, id, client, tree)
	if err != nil {
		return nil, fmt.Errorf("failed to store pages and files for module %d: %w", id, err)
	}

	e.logger.Info("course registered",
		zap.Int64("snapshot_id", id),
		zap.String("teacher", req.Teacher),
		zap.String("course", req.CourseName),
		zap.Int("modules", len(tree.Modules)),
		zap.Object("walk", stats))
	return tree.Raw, nil
}

// RefreshCourse re-fetches a snapshot's tree, purges the rows of the items it used to
// reference and walks the new tree.
func (e *Engine) RefreshCourse(ctx context.Context, id int64) (string, error) {
	start := time.Now()
	err := e.refreshCourse(ctx, id)
	e.metrics.recordOperation(ctx, "refresh", start, err)
	if err != nil {
		return "", err
	}
	return RefreshedStatus, nil
}

func (e *Engine) refreshCourse(ctx context.Context, id int64) error {
	snapshot, err := e.loadSnapshot(ctx, id)
	if err != nil {
		return err
	}

	client := e.newClient(snapshot.CanvasURL, snapshot.APIKey)
	tree, err := listModules(ctx, client, snapshot.CourseID)
	if err != nil {
		e.logger.Warn("failed to list course modules", zap.Int64("snapshot_id", id), zap.Error(err))
		return err
	}

	// stale ids come from the content as stored right now, before it is overwritten
	current, unlock, err := e.lockSnapshot(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	staleIDs, err := canvas.ItemIDs(current.Content)
	if err != nil {
		e.logger.Warn("stored module tree is unreadable; purging new item ids only",
			zap.Int64("snapshot_id", id), zap.Error(err))
		staleIDs = nil
	}

	if err := e.store.UpdateSnapshotContent(ctx, id, tree.Raw); err != nil {
		return err
	}

	purgeIDs := unionIDs(staleIDs, treeItemIDs(tree))
	if err := e.store.DeletePagesAndFilesByItemIDs(ctx, purgeIDs); err != nil {
		return err
	}

	stats, err := e.walk(ctx, id, client, tree)
	if err != nil {
		return fmt.Errorf("failed to store pages and files for module %d: %w", id, err)
	}

	e.logger.Info("course refreshed",
		zap.Int64("snapshot_id", id),
		zap.Int("purged_items", len(purgeIDs)),
		zap.Object("walk", stats))
	return nil
}

// DeleteCourse removes a snapshot together with every page and file row its stored tree reaches
func (e *Engine) DeleteCourse(ctx context.Context, id int64) error {
	start := time.Now()
	err := e.deleteCourse(ctx, id)
	e.metrics.recordOperation(ctx, "delete", start, err)
	return err
}

func (e *Engine) deleteCourse(ctx context.Context, id int64) error {
	snapshot, unlock, err := e.lockSnapshot(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	itemIDs, err := canvas.ItemIDs(snapshot.Content)
	if err != nil {
		return fmt.Errorf("failed to read stored module tree of module %d: %w", id, err)
	}
	if err := e.store.DeletePagesAndFilesByItemIDs(ctx, itemIDs); err != nil {
		return err
	}
	if err := e.store.DeleteSnapshot(ctx, id); err != nil {
		return err
	}

	e.logger.Info("course deleted", zap.Int64("snapshot_id", id), zap.Int("purged_items", len(itemIDs)))
	return nil
}

// GetSnapshot returns a stored snapshot or ErrNotFound
func (e *Engine) GetSnapshot(ctx context.Context, id int64) (*db_model.ModuleSnapshot, error) {
	return e.loadSnapshot(ctx, id)
}

func (e *Engine) ListPages(ctx context.Context, itemID int64) ([]db_model.PageRecord, error) {
	return e.store.ListPagesByItemID(ctx, itemID)
}

func (e *Engine) ListFiles(ctx context.Context, itemID int64) ([]db_model.FileRecord, error) {
	return e.store.ListFilesByItemID(ctx, itemID)
}

func (e *Engine) loadSnapshot(ctx context.Context, id int64) (*db_model.ModuleSnapshot, error) {
	snapshot, err := e.store.GetSnapshotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, apperrors.NewNotFoundError("No module found with this id.")
	}
	return snapshot, nil
}

// lockSnapshot takes the snapshot's course lock and then its id lock, the same order
// registration uses, and returns the snapshot as stored once both are held.
func (e *Engine) lockSnapshot(ctx context.Context, id int64) (*db_model.ModuleSnapshot, func(), error) {
	snapshot, err := e.loadSnapshot(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	unlockCourse := e.courseLocks.Lock(courseKey(snapshot.Teacher, snapshot.Course))
	unlockSnapshot := e.snapshotLocks.Lock(snapshotKey(id))
	unlock := func() {
		unlockSnapshot()
		unlockCourse()
	}

	current, err := e.loadSnapshot(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return current, unlock, nil
}

func (e *Engine) validateRequest(req RegisterRequest) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return apperrors.NewValidationError("Invalid or missing parameters: " + strings.Join(fields, ", "))
}

// listModules makes sure every top-level failure reads as an upstream error
func listModules(ctx context.Context, client canvas.API, courseID string) (canvas.Tree, error) {
	tree, err := client.ListModules(ctx, courseID)
	if err != nil && !errors.Is(err, apperrors.ErrUpstream) {
		return canvas.Tree{}, apperrors.NewUpstreamError("failed to list course modules", err)
	}
	return tree, err
}

func courseKey(teacher, course string) string {
	return teacher + "\x00" + course
}

func snapshotKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func treeItemIDs(tree canvas.Tree) []int64 {
	items := tree.Items()
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func unionIDs(a, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, list := range [][]int64{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
