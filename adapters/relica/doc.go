// Package relica provides repository implementations using Relica query builder.
//
// Relica (github.com/coregx/relica) is a lightweight, type-safe database query builder
// for Go with zero production dependencies.
//
// This package provides production-ready implementations of all pushrelay repository interfaces:
//   - SubscriptionRepository
//   - NotificationRepository
//   - DeliveryRepository
//   - VAPIDConfigRepository
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/pushrelay"
//	    "github.com/coregx/pushrelay/adapters/relica"
//	    _ "github.com/go-sql-driver/mysql"
//	)
//
//	// Open database connection
//	db, err := sql.Open("mysql", "user:pass@tcp(localhost:3306)/push_db?parseTime=true")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create repositories (driverName should be "mysql", "postgres", or "sqlite3")
//	repos := relica.NewRepositories(db, "mysql")
//
//	// Create services
//	store, err := pushrelay.NewSubscriptionStore(
//	    pushrelay.WithStoreRepository(repos.Subscription),
//	    pushrelay.WithStoreLogger(logger),
//	)
package relica
