package shared

// DbType names a snapshot store backend
type DbType string

const (
	DbTypeSQLite   DbType = "sqlite"
	DbTypePostgres DbType = "postgres"
	DbTypeMemory   DbType = "memory"
)

func (t DbType) String() string {
	return string(t)
}

func (t DbType) IsValid() bool {
	switch t {
	case DbTypeSQLite, DbTypePostgres, DbTypeMemory:
		return true
	}
	return false
}

// DbProviderConfig is the JSON shape of DB_CONFIG
type DbProviderConfig struct {
	DbType       DbType                 `json:"db_type"`
	ExtraDetails map[string]interface{} `json:"extra_details"`
}

// StringDetail returns a string extra detail or fallback when it is missing or blank
func (c DbProviderConfig) StringDetail(key, fallback string) string {
	if v, ok := c.ExtraDetails[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
