/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fleet billing server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and parse command-line flags
  2. Initialize SQLite store
  3. Wire the engine (migrator, sweeper, action layer)
  4. Configure HTTP router and start the sweep scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: billing.db, env DATABASE_PATH)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  PORT                HTTP port
  DATABASE_PATH       SQLite path
  NOTIFY_WEBHOOK_URL  Carrier webhook for reminders; log-only when unset
  LOG_LEVEL           logrus level (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/billing.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Daily sweep scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/loggier/fleet-billing/api"
	"github.com/loggier/fleet-billing/billing"
	"github.com/loggier/fleet-billing/fleet"
	"github.com/loggier/fleet-billing/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "billing.db"), "SQLite database path")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(envStr("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(lvl)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the engine
	notifier := newNotifier(envStr("NOTIFY_WEBHOOK_URL", ""), log)
	migrator := billing.NewMigrator(store, store, log)
	sweeper := billing.NewSweeper(store, store, notifier, log)
	service := fleet.NewService(store, migrator, sweeper, log)
	handler := api.NewHandler(service, store, store, log)
	router := api.NewRouter(handler)

	scheduler := api.NewSweepScheduler(sweeper, log)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}

// newNotifier returns the reminder delivery path. With a webhook URL it
// posts the notice to the carrier; without one it only logs, which is
// what dev environments want.
func newNotifier(webhookURL string, log *logrus.Logger) billing.Notifier {
	if webhookURL == "" {
		return billing.NotifierFunc(func(_ context.Context, template billing.Template, clientID billing.ClientID, unitID billing.UnitID) error {
			log.WithFields(logrus.Fields{
				"template": template,
				"client":   clientID,
				"unit":     unitID,
			}).Info("notification (log only, no webhook configured)")
			return nil
		})
	}

	client := &http.Client{Timeout: 10 * time.Second}
	return billing.NotifierFunc(func(ctx context.Context, template billing.Template, clientID billing.ClientID, unitID billing.UnitID) error {
		body, err := json.Marshal(map[string]string{
			"template":  string(template),
			"client_id": string(clientID),
			"unit_id":   string(unitID),
		})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned %s", resp.Status)
		}
		return nil
	})
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
