package gormdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shaibs3/canvascache/internal/apperrors"
	"github.com/shaibs3/canvascache/internal/db_model"
	"github.com/shaibs3/canvascache/internal/store/shared"
)

const (
	defaultSQLitePath = "database.db"
	// stays well under SQLite's bound-variable limit
	purgeChunkSize = 500
)

// Provider is a gorm-backed snapshot store. Every call goes through a circuit
// breaker and is retried on transient failures.
type Provider struct {
	db     *gorm.DB
	logger *zap.Logger
	cb     *gobreaker.CircuitBreaker
}

// NewSQLiteProvider opens (creating if needed) the SQLite file named by extra_details.path
func NewSQLiteProvider(config shared.DbProviderConfig, logger *zap.Logger) (*Provider, error) {
	sqliteLogger := logger.Named("sqlite")

	path := config.StringDetail("path", defaultSQLitePath)
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	sqliteLogger.Info("initializing SQLite provider", zap.String("path", path))

	gormDB, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQLite handle: %w", err)
	}
	// a single writer connection avoids "database is locked" under concurrent requests
	sqlDB.SetMaxOpenConns(1)

	return newProvider(gormDB, sqliteLogger)
}

// NewPostgresProvider connects with extra_details.conn_str
func NewPostgresProvider(config shared.DbProviderConfig, logger *zap.Logger) (*Provider, error) {
	pgLogger := logger.Named("postgres")

	connStr, ok := config.ExtraDetails["conn_str"].(string)
	if !ok || connStr == "" {
		return nil, fmt.Errorf("conn_str is required for Postgres provider")
	}
	pgLogger.Info("initializing Postgres provider")

	gormDB, err := gorm.Open(postgres.Open(connStr), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}
	return newProvider(gormDB, pgLogger)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}
}

func newProvider(gormDB *gorm.DB, logger *zap.Logger) (*Provider, error) {
	if err := gormDB.AutoMigrate(&GormSnapshot{}, &GormPage{}, &GormFile{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "SnapshotStore",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, gorm.ErrDuplicatedKey)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	logger.Info("snapshot store initialized successfully")
	return &Provider{
		db:     gormDB,
		logger: logger,
		cb:     cb,
	}, nil
}

// exec runs fn behind the circuit breaker, retrying transient failures
func (p *Provider) exec(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	return retry.Do(
		func() error {
			_, err := p.cb.Execute(func() (interface{}, error) {
				return nil, fn(p.db.WithContext(ctx))
			})
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("retrying store operation", zap.String("op", op), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

func isRetryable(err error) bool {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (p *Provider) CreateSnapshot(ctx context.Context, snapshot *db_model.ModuleSnapshot) (int64, error) {
	row := GormSnapshot{
		Course:    snapshot.Course,
		Teacher:   snapshot.Teacher,
		Content:   datatypes.JSON(snapshot.Content),
		APIKey:    snapshot.APIKey,
		CanvasURL: snapshot.CanvasURL,
		CourseID:  snapshot.CourseID,
	}
	err := p.exec(ctx, "create_snapshot", func(tx *gorm.DB) error {
		row.ID = 0
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, apperrors.NewDuplicateError("Module already exists for this teacher and course.")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot: %w", err)
	}
	return row.ID, nil
}

func (p *Provider) FindSnapshotByTeacherAndCourse(ctx context.Context, teacher, course string) (*db_model.ModuleSnapshot, error) {
	return p.findSnapshot(ctx, "find_snapshot", "teacher = ? AND course = ?", teacher, course)
}

func (p *Provider) GetSnapshotByID(ctx context.Context, id int64) (*db_model.ModuleSnapshot, error) {
	return p.findSnapshot(ctx, "get_snapshot", "id = ?", id)
}

func (p *Provider) findSnapshot(ctx context.Context, op, query string, args ...interface{}) (*db_model.ModuleSnapshot, error) {
	var rows []GormSnapshot
	err := p.exec(ctx, op, func(tx *gorm.DB) error {
		rows = rows[:0]
		return tx.Where(query, args...).Limit(1).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toRecord(), nil
}

func (p *Provider) UpdateSnapshotContent(ctx context.Context, id int64, content []byte) error {
	var affected int64
	err := p.exec(ctx, "update_snapshot", func(tx *gorm.DB) error {
		res := tx.Model(&GormSnapshot{}).Where("id = ?", id).Updates(map[string]interface{}{
			"content":   datatypes.JSON(content),
			"updatedAt": time.Now().UTC(),
		})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("failed to update snapshot %d: %w", id, err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("No module found with this id.")
	}
	return nil
}

func (p *Provider) DeleteSnapshot(ctx context.Context, id int64) error {
	err := p.exec(ctx, "delete_snapshot", func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&GormSnapshot{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %d: %w", id, err)
	}
	return nil
}

func (p *Provider) InsertPage(ctx context.Context, itemID int64, title, pageType, body string) error {
	err := p.exec(ctx, "insert_page", func(tx *gorm.DB) error {
		return tx.Create(&GormPage{ModuleID: itemID, Title: title, Type: pageType, Content: body}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert page for item %d: %w", itemID, err)
	}
	return nil
}

func (p *Provider) InsertFile(ctx context.Context, itemID int64, title, url string) error {
	err := p.exec(ctx, "insert_file", func(tx *gorm.DB) error {
		return tx.Create(&GormFile{PageID: itemID, Title: title, File: url}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert file for item %d: %w", itemID, err)
	}
	return nil
}

// DeletePagesAndFilesByItemIDs removes files and pages for itemIDs in one transaction
func (p *Provider) DeletePagesAndFilesByItemIDs(ctx context.Context, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	err := p.exec(ctx, "purge_items", func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			for start := 0; start < len(itemIDs); start += purgeChunkSize {
				end := min(start+purgeChunkSize, len(itemIDs))
				chunk := itemIDs[start:end]
				if err := tx.Where("page_id IN ?", chunk).Delete(&GormFile{}).Error; err != nil {
					return err
				}
				if err := tx.Where("module_id IN ?", chunk).Delete(&GormPage{}).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to purge pages and files: %w", err)
	}
	return nil
}

func (p *Provider) ListPagesByItemID(ctx context.Context, itemID int64) ([]db_model.PageRecord, error) {
	var rows []GormPage
	err := p.exec(ctx, "list_pages", func(tx *gorm.DB) error {
		rows = rows[:0]
		return tx.Where("module_id = ?", itemID).Order("id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pages for item %d: %w", itemID, err)
	}
	records := make([]db_model.PageRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records, nil
}

func (p *Provider) ListFilesByItemID(ctx context.Context, itemID int64) ([]db_model.FileRecord, error) {
	var rows []GormFile
	err := p.exec(ctx, "list_files", func(tx *gorm.DB) error {
		rows = rows[:0]
		return tx.Where("page_id = ?", itemID).Order("id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files for item %d: %w", itemID, err)
	}
	records := make([]db_model.FileRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records, nil
}

func (p *Provider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
