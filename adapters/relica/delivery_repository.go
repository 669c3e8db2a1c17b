package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/pushrelay"
	"github.com/coregx/pushrelay/model"
	"github.com/coregx/relica"
)

// DeliveryRepository implements pushrelay.DeliveryRepository using Relica.
//
// Batch creation and claiming bypass the query builder and use the underlying
// *sql.DB directly: the batch needs a transaction and the claim needs the
// affected-row count of a conditional update.
type DeliveryRepository struct {
	db          *relica.DB
	sqlDB       *sql.DB
	driverName  string
	tablePrefix string
}

// NewDeliveryRepository creates a new DeliveryRepository with default table prefix.
func NewDeliveryRepository(sqlDB *sql.DB, driverName string) *DeliveryRepository {
	return NewDeliveryRepositoryWithPrefix(sqlDB, driverName, "push_")
}

// NewDeliveryRepositoryWithPrefix creates a new DeliveryRepository with custom table prefix.
func NewDeliveryRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *DeliveryRepository {
	return &DeliveryRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		sqlDB:       sqlDB,
		driverName:  driverName,
		tablePrefix: prefix,
	}
}

func (r *DeliveryRepository) tableName() string {
	return r.tablePrefix + "delivery"
}

// Load retrieves a ledger row by ID.
func (r *DeliveryRepository) Load(ctx context.Context, id int64) (model.Delivery, error) {
	var d model.Delivery
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return d, pushrelay.ErrNoData
	}
	if err != nil {
		return d, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to load delivery", err)
	}
	return d, nil
}

// Save updates an existing ledger row.
func (r *DeliveryRepository) Save(ctx context.Context, m *model.Delivery) (*model.Delivery, error) {
	if m.ID == 0 {
		err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Insert()
		if err != nil {
			return m, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to insert delivery", err)
		}
		return m, nil
	}

	err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Update()
	if err != nil {
		return m, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to update delivery", err)
	}
	return m, nil
}

// CreateBatch inserts one pending ledger row per subscription ID inside a
// single transaction. Either every row becomes visible or none do, so a
// concurrent dispatcher can never observe a half-created fan-out.
func (r *DeliveryRepository) CreateBatch(ctx context.Context, notificationID int64, subscriptionIDs []int64) (int, error) {
	if len(subscriptionIDs) == 0 {
		return 0, nil
	}

	tx, err := r.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to begin fan-out transaction", err)
	}

	query := rebind(r.driverName,
		"INSERT INTO "+r.tableName()+
			" (notification_id, subscription_id, status, created_at) VALUES (?, ?, ?, ?)")

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return 0, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to prepare fan-out insert", err)
	}
	defer stmt.Close()

	for _, subscriptionID := range subscriptionIDs {
		d := model.NewDelivery(notificationID, subscriptionID)
		if _, err := stmt.ExecContext(ctx, d.NotificationID, d.SubscriptionID, d.Status, d.CreatedAt); err != nil {
			_ = tx.Rollback()
			return 0, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to insert delivery row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to commit fan-out transaction", err)
	}

	return len(subscriptionIDs), nil
}

// FindPendingByNotification retrieves all pending rows for a notification.
func (r *DeliveryRepository) FindPendingByNotification(ctx context.Context, notificationID int64) ([]model.Delivery, error) {
	var deliveries []model.Delivery
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("notification_id = ? AND status = ?", notificationID, model.DeliveryStatusPending).
		OrderBy("created_at ASC").
		WithContext(ctx).
		All(&deliveries)
	if err != nil {
		return nil, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to find pending deliveries", err)
	}
	if len(deliveries) == 0 {
		return nil, pushrelay.ErrNoData
	}
	return deliveries, nil
}

// FindByNotification retrieves all ledger rows for a notification.
func (r *DeliveryRepository) FindByNotification(ctx context.Context, notificationID int64) ([]model.Delivery, error) {
	var deliveries []model.Delivery
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("notification_id = ?", notificationID).
		OrderBy("created_at ASC").
		WithContext(ctx).
		All(&deliveries)
	if err != nil {
		return nil, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to find deliveries", err)
	}
	if len(deliveries) == 0 {
		return nil, pushrelay.ErrNoData
	}
	return deliveries, nil
}

// Claim takes ownership of a pending row by stamping claimed_at. The update
// is guarded on the pending status and an unset claimed_at, so of two
// concurrent claimers exactly one sees an affected row and proceeds to
// deliver.
//
// The row stays pending until the claimer writes the terminal state, so a
// ledger reader only ever observes the single pending -> sent/failed
// transition. A stamped pending row is never claimable again.
func (r *DeliveryRepository) Claim(ctx context.Context, id int64) (bool, error) {
	query := rebind(r.driverName,
		"UPDATE "+r.tableName()+" SET claimed_at = ? WHERE id = ? AND status = ? AND claimed_at IS NULL")

	res, err := r.sqlDB.ExecContext(ctx, query,
		time.Now(), id, model.DeliveryStatusPending)
	if err != nil {
		return false, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to claim delivery", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to read claim result", err)
	}

	return affected == 1, nil
}
