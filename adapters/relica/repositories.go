package relica

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/coregx/pushrelay"
)

// Repositories holds all repository implementations.
type Repositories struct {
	Subscription pushrelay.SubscriptionRepository
	Notification pushrelay.NotificationRepository
	Delivery     pushrelay.DeliveryRepository
	VAPID        pushrelay.VAPIDConfigRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
// The table prefix defaults to "push_" but can be customized.
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return &Repositories{
		Subscription: NewSubscriptionRepository(db, driverName),
		Notification: NewNotificationRepository(db, driverName),
		Delivery:     NewDeliveryRepository(db, driverName),
		VAPID:        NewVAPIDConfigRepository(db, driverName),
	}
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Subscription: NewSubscriptionRepositoryWithPrefix(db, driverName, prefix),
		Notification: NewNotificationRepositoryWithPrefix(db, driverName, prefix),
		Delivery:     NewDeliveryRepositoryWithPrefix(db, driverName, prefix),
		VAPID:        NewVAPIDConfigRepositoryWithPrefix(db, driverName, prefix),
	}
}

// rebind converts "?" placeholders to the dialect's form for statements that
// bypass the query builder (transactions, conditional updates). PostgreSQL
// uses positional "$N" placeholders; MySQL and SQLite keep "?".
func rebind(driverName, query string) string {
	if driverName != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
