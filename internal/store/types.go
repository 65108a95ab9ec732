package store

import "github.com/shaibs3/canvascache/internal/store/shared"

// Re-export shared types for convenience
type DbType = shared.DbType
type DbProviderConfig = shared.DbProviderConfig

const (
	DbTypeSQLite   = shared.DbTypeSQLite
	DbTypePostgres = shared.DbTypePostgres
	DbTypeMemory   = shared.DbTypeMemory
)
