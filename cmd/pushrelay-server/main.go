// Package main provides the push relay server executable with the HTTP API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	wp "github.com/SherClockHolmes/webpush-go"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/coregx/pushrelay"
	"github.com/coregx/pushrelay/adapters/relica"
	"github.com/coregx/pushrelay/adapters/webpush"
	"github.com/coregx/pushrelay/cmd/pushrelay-server/internal/api"
	"github.com/coregx/pushrelay/cmd/pushrelay-server/internal/config"
	"github.com/coregx/pushrelay/model"
)

// SimpleLogger implements pushrelay.Logger for standard logging.
type SimpleLogger struct{}

func (l *SimpleLogger) Debugf(format string, args ...interface{}) {
	log.Printf("[DEBUG] "+format, args...)
}
func (l *SimpleLogger) Infof(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}
func (l *SimpleLogger) Warnf(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}
func (l *SimpleLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}
func (l *SimpleLogger) Info(message string) {
	log.Printf("[INFO] %s", message)
}

func main() {
	log.Println("🚀 Starting Push Relay Server v0.1.0...")

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("📝 Configuration loaded:")
	log.Printf("   Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("   Database: %s (%s:%d)", cfg.Database.Driver, cfg.Database.Host, cfg.Database.Port)
	log.Printf("   Dispatch concurrency: %d", cfg.Push.Concurrency)
	log.Printf("   Attempt timeout: %ds", cfg.Push.AttemptTimeout)

	// Connect to database
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Failed to close database: %v", closeErr)
		}
	}()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	// Create logger
	logger := &SimpleLogger{}

	// Create repositories using Relica adapters
	var repos *relica.Repositories
	if cfg.Database.Prefix != "" {
		repos = relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)
	} else {
		repos = relica.NewRepositories(db, cfg.Database.Driver)
	}
	log.Println("✅ Repositories initialized (Relica adapters)")

	// Make sure a VAPID key pair exists before the first dispatch
	vapid, err := ensureVAPID(context.Background(), repos.VAPID, cfg.VAPID)
	if err != nil {
		log.Fatalf("Failed to prepare VAPID configuration: %v", err)
	}
	log.Printf("✅ VAPID configured (public key: %s...)", truncateKey(vapid.PublicKey))

	// Create subscription store
	store, err := pushrelay.NewSubscriptionStore(
		pushrelay.WithStoreRepository(repos.Subscription),
		pushrelay.WithStoreLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create subscription store: %v", err)
	}
	log.Println("✅ Subscription store created")

	// Create Web Push gateway
	gateway := webpush.NewGateway(webpush.WithTTL(cfg.Push.TTL))

	// Create dispatcher
	dispatcher, err := pushrelay.NewDispatcher(
		pushrelay.WithDispatcherRepositories(repos.Delivery, repos.Notification, repos.Subscription, repos.VAPID),
		pushrelay.WithGateway(gateway),
		pushrelay.WithDispatcherLogger(logger),
		pushrelay.WithConcurrency(cfg.Push.Concurrency),
		pushrelay.WithAttemptTimeout(time.Duration(cfg.Push.AttemptTimeout)*time.Second),
		pushrelay.WithHooks(pushrelay.NewLoggingDeliveryHooks(logger)),
	)
	if err != nil {
		log.Fatalf("Failed to create dispatcher: %v", err)
	}
	log.Println("✅ Dispatcher created")

	// Create broadcaster
	broadcaster, err := pushrelay.NewBroadcaster(
		pushrelay.WithBroadcasterRepositories(repos.Notification, repos.Delivery),
		pushrelay.WithBroadcasterStore(store),
		pushrelay.WithBroadcasterDispatcher(dispatcher),
		pushrelay.WithBroadcasterLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create broadcaster: %v", err)
	}
	log.Println("✅ Broadcaster created")

	// Create API handler and routes
	handler := api.NewHandler(store, broadcaster, logger)
	mux := http.NewServeMux()
	handler.Register(mux)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("🌐 HTTP server listening on %s", addr)
		log.Println("📡 API Endpoints:")
		log.Println("   POST   /push-notifications/send")
		log.Println("   POST   /push-notifications/subscribe")
		log.Println("   DELETE /push-notifications/unsubscribe")
		log.Println("   PUT    /push-notifications/preferences")
		log.Println("   GET    /push-notifications/stats")
		log.Println("   POST   /push-notifications/test")
		log.Println()
		log.Println("✅ Push Relay Server is ready!")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Graceful shutdown with timeout; in-flight dispatches run to completion
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

// ensureVAPID returns the stored VAPID configuration, seeding it from the
// environment or a freshly generated key pair when the table is empty.
func ensureVAPID(ctx context.Context, repo pushrelay.VAPIDConfigRepository, seed config.VAPIDConfig) (model.VAPIDConfig, error) {
	existing, err := repo.Load(ctx)
	if err == nil {
		return existing, nil
	}
	if !pushrelay.IsNoData(err) {
		return model.VAPIDConfig{}, err
	}

	publicKey, privateKey := seed.PublicKey, seed.PrivateKey
	if publicKey == "" {
		log.Println("🔑 No VAPID keys found, generating a new pair...")
		privateKey, publicKey, err = wp.GenerateVAPIDKeys()
		if err != nil {
			return model.VAPIDConfig{}, err
		}
	}

	cfg := model.NewVAPIDConfig(publicKey, privateKey, seed.Subject)
	return repo.Save(ctx, cfg)
}

func truncateKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12]
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, logger pushrelay.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
