package store

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/shaibs3/canvascache/internal/store/gormdb"
	"github.com/shaibs3/canvascache/internal/store/shared"
)

// ProviderFactory defines the interface for creating snapshot stores
type ProviderFactory interface {
	CreateProvider(configJSON string) (SnapshotStore, error)
}

// StoreFactory builds a SnapshotStore from a DB_CONFIG JSON document
type StoreFactory struct {
	logger *zap.Logger
}

func NewStoreFactory(logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		logger: logger.Named("factory"),
	}
}

// DefaultConfigJSON is used when DB_CONFIG is unset: a SQLite file next to the binary
func DefaultConfigJSON() string {
	b, _ := json.Marshal(DbProviderConfig{
		DbType:       DbTypeSQLite,
		ExtraDetails: map[string]interface{}{"path": "database.db"},
	})
	return string(b)
}

func (f *StoreFactory) CreateProvider(configJSON string) (SnapshotStore, error) {
	var config shared.DbProviderConfig
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		return nil, fmt.Errorf("failed to parse database configuration JSON: %w", err)
	}

	// extra_details may hold a connection string with credentials, so only the type is logged
	f.logger.Info("creating snapshot store", zap.String("db_type", config.DbType.String()))

	if !config.DbType.IsValid() {
		return nil, fmt.Errorf("unsupported database type: %s", config.DbType)
	}

	switch config.DbType {
	case shared.DbTypeSQLite:
		return checkedProvider(gormdb.NewSQLiteProvider(config, f.logger))
	case shared.DbTypePostgres:
		return checkedProvider(gormdb.NewPostgresProvider(config, f.logger))
	case shared.DbTypeMemory:
		f.logger.Info("using in-memory snapshot store; data is lost on restart")
		return NewInMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.DbType)
	}
}

// checkedProvider keeps a failed constructor from leaking a typed nil into the interface
func checkedProvider(p *gormdb.Provider, err error) (SnapshotStore, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
