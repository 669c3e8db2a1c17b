// Package pushrelay provides a Web Push fan-out and delivery library for Go
// with per-category subscription preferences, a per-recipient delivery ledger,
// and automatic deactivation of expired push endpoints.
//
// Works both as a library for embedding in your application AND as a standalone
// service with REST API.
//
// # Features
//
//   - Endpoint-keyed subscription store with per-category preferences
//     (re-subscribing an endpoint updates keys/preferences in place)
//   - Atomic fan-out: one pending delivery ledger row per eligible recipient,
//     created as a unit so dispatch never observes a half-created batch
//   - Request-scoped dispatcher with bounded concurrency and per-attempt timeouts
//   - Per-recipient failure isolation: one dead endpoint never aborts the batch
//   - Permanent-failure handling: HTTP 404/410 from the push service soft-deletes
//     the subscription so future fan-outs skip it
//   - VAPID-authenticated, payload-encrypted delivery via the Web Push protocol
//   - Delivery audit trail: every send attempt terminates in a sent/failed row
//   - Pluggable architecture: bring your own Logger, PushGateway, DeliveryHooks
//   - Multi-Database Support: MySQL, PostgreSQL, SQLite via Relica adapters
//   - Embedded migrations for easy database setup
//
// # Quick Start
//
// # Option 1: As Embedded Library
//
// Connect to a database and create the repositories:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/pushrelay"
//	    "github.com/coregx/pushrelay/adapters/relica"
//	    pushgw "github.com/coregx/pushrelay/adapters/webpush"
//	    _ "github.com/go-sql-driver/mysql"
//	)
//
//	db, _ := sql.Open("mysql", "user:pass@tcp(localhost:3306)/push?parseTime=true")
//	repos := relica.NewRepositories(db, "mysql")
//
// Create the services with the Options Pattern:
//
//	store, _ := pushrelay.NewSubscriptionStore(
//	    pushrelay.WithStoreRepository(repos.Subscription),
//	    pushrelay.WithStoreLogger(logger),
//	)
//
//	dispatcher, _ := pushrelay.NewDispatcher(
//	    pushrelay.WithDispatcherRepositories(repos.Delivery, repos.Notification, repos.Subscription, repos.VAPID),
//	    pushrelay.WithGateway(pushgw.NewGateway()),
//	    pushrelay.WithDispatcherLogger(logger),
//	    pushrelay.WithConcurrency(8),
//	)
//
//	broadcaster, _ := pushrelay.NewBroadcaster(
//	    pushrelay.WithBroadcasterRepositories(repos.Notification, repos.Delivery),
//	    pushrelay.WithBroadcasterStore(store),
//	    pushrelay.WithBroadcasterDispatcher(dispatcher),
//	    pushrelay.WithBroadcasterLogger(logger),
//	)
//
// Broadcast a notification:
//
//	result, err := broadcaster.Broadcast(ctx, pushrelay.SendRequest{
//	    Title:    "New vacancy published",
//	    Body:     "Railway Group D recruitment is open",
//	    Category: model.CategoryNewJobs,
//	    URL:      "/jobs/railway-group-d",
//	})
//	// result.TotalRecipients == result.Sent + result.Failed
//
// # Option 2: As Standalone Service
//
// Run the standalone server:
//
//	cd cmd/pushrelay-server
//	go build && ./pushrelay-server
//
// Access the REST API at http://localhost:8080:
//
//	# Broadcast a notification
//	curl -X POST http://localhost:8080/push-notifications/send \
//	  -H "Content-Type: application/json" \
//	  -d '{"title":"New result","body":"SSC CGL result declared","category":"results","url":"/results/ssc-cgl"}'
//
// # Architecture
//
// The library follows the repository pattern with rich domain models:
//
//	┌─────────────────────────────────────┐
//	│         Application Layer           │
//	│  (SubscriptionStore, Broadcaster,   │
//	│   Dispatcher, REST API)             │
//	└─────────────┬───────────────────────┘
//	              │
//	┌─────────────▼───────────────────────┐
//	│         Domain Layer                │
//	│  (Subscription, Notification,       │
//	│   Delivery ledger, Preferences)     │
//	└─────────────┬───────────────────────┘
//	              │
//	┌─────────────▼───────────────────────┐
//	│       Relica Adapters               │
//	└─────────────┬───────────────────────┘
//	              │
//	┌─────────────▼───────────────────────┐
//	│    Database (MySQL/PostgreSQL/      │
//	│             SQLite)                 │
//	└─────────────────────────────────────┘
//
// # Send Flow
//
//  1. SUBSCRIBE
//     Client registers a push endpoint → SubscriptionStore upserts it
//     (keyed by endpoint) with its encryption keys and preferences.
//
//  2. FAN-OUT
//     Broadcaster creates a Notification record and, in one transaction,
//     a pending Delivery ledger row per active, category-opted-in
//     subscription. generalUpdates matches every active subscription.
//
//  3. DISPATCH
//     Dispatcher claims each pending row, encrypts the payload with the
//     recipient's p256dh/auth keys, and sends it through the Web Push
//     protocol under the server's VAPID identity.
//     → On success: row marked SENT with delivered_at
//     → On failure: row marked FAILED with the error message
//     → On 404/410: subscription additionally deactivated
//     Aggregate success/failure counts are written back onto the
//     Notification when the batch completes.
//
// # Database Schema
//
// The library requires 4 database tables (created via embedded migrations):
//
//	push_subscription  - Push endpoints with encryption keys and preferences
//	push_notification  - One row per send request, with aggregate counters
//	push_delivery      - Delivery ledger, one row per (notification, subscription)
//	push_vapid_config  - Single-row VAPID key pair and contact subject
//
// Supports MySQL, PostgreSQL, and SQLite via Relica adapters.
// Table prefix can be customized (default: "push_").
package pushrelay
