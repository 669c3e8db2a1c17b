package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/pushrelay"
	"github.com/coregx/pushrelay/model"
	"github.com/coregx/relica"
)

// VAPIDConfigRepository implements pushrelay.VAPIDConfigRepository using Relica.
type VAPIDConfigRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewVAPIDConfigRepository creates a new VAPIDConfigRepository with default table prefix.
func NewVAPIDConfigRepository(sqlDB *sql.DB, driverName string) *VAPIDConfigRepository {
	return &VAPIDConfigRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "push_"}
}

// NewVAPIDConfigRepositoryWithPrefix creates a new VAPIDConfigRepository with custom table prefix.
func NewVAPIDConfigRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *VAPIDConfigRepository {
	return &VAPIDConfigRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *VAPIDConfigRepository) tableName() string {
	return r.tablePrefix + "vapid_config"
}

// Load retrieves the VAPID configuration. The table holds one logical row;
// the newest wins if an operator has rotated keys by inserting a fresh one.
func (r *VAPIDConfigRepository) Load(ctx context.Context) (model.VAPIDConfig, error) {
	var cfg model.VAPIDConfig
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).OrderBy("id DESC").One(&cfg)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, pushrelay.ErrNoData
	}
	if err != nil {
		return cfg, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to load VAPID configuration", err)
	}
	return cfg, nil
}

// Save creates or updates the VAPID configuration.
func (r *VAPIDConfigRepository) Save(ctx context.Context, m model.VAPIDConfig) (model.VAPIDConfig, error) {
	if m.ID == 0 {
		err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert()
		if err != nil {
			return m, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to insert VAPID configuration", err)
		}
		return m, nil
	}

	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Update()
	if err != nil {
		return m, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to update VAPID configuration", err)
	}
	return m, nil
}
