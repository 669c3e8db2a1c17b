package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/pushrelay"
	"github.com/coregx/pushrelay/model"
	"github.com/coregx/relica"
)

// NotificationRepository implements pushrelay.NotificationRepository using Relica.
type NotificationRepository struct {
	db          *relica.DB
	sqlDB       *sql.DB
	driverName  string
	tablePrefix string
}

// NewNotificationRepository creates a new NotificationRepository with default table prefix.
func NewNotificationRepository(sqlDB *sql.DB, driverName string) *NotificationRepository {
	return NewNotificationRepositoryWithPrefix(sqlDB, driverName, "push_")
}

// NewNotificationRepositoryWithPrefix creates a new NotificationRepository with custom table prefix.
func NewNotificationRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *NotificationRepository {
	return &NotificationRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		sqlDB:       sqlDB,
		driverName:  driverName,
		tablePrefix: prefix,
	}
}

func (r *NotificationRepository) tableName() string {
	return r.tablePrefix + "notification"
}

// Load retrieves a notification by ID.
func (r *NotificationRepository) Load(ctx context.Context, id int64) (model.Notification, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return n, pushrelay.ErrNoData
	}
	if err != nil {
		return n, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to load notification", err)
	}
	return n, nil
}

// Save creates or updates a notification.
func (r *NotificationRepository) Save(ctx context.Context, m model.Notification) (model.Notification, error) {
	if m.ID == 0 {
		// Insert new notification using Model() API
		err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert()
		if err != nil {
			return m, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to insert notification", err)
		}
		// m.ID is auto-populated by Model().Insert()
		return m, nil
	}

	// Update existing notification
	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Update()
	if err != nil {
		return m, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to update notification", err)
	}
	return m, nil
}

// IncrementCounts adds the dispatch deltas to the aggregate counters.
//
// The increment happens in SQL so that concurrent dispatches of the same
// notification never lose a read-modify-write race on the counters.
func (r *NotificationRepository) IncrementCounts(ctx context.Context, id int64, sentDelta, failedDelta int) error {
	query := rebind(r.driverName,
		"UPDATE "+r.tableName()+
			" SET success_count = success_count + ?, failure_count = failure_count + ? WHERE id = ?")

	_, err := r.sqlDB.ExecContext(ctx, query, sentDelta, failedDelta, id)
	if err != nil {
		return pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to increment notification counts", err)
	}
	return nil
}
